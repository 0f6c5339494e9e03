package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jrundle/nd-coin/ndcrypto"
	"github.com/jrundle/nd-coin/node"
	"go.uber.org/zap"
)

const (
	catalogAddr  = "catalog.cse.nd.edu:9097"
	directoryURL = "http://catalog.cse.nd.edu:9097"
	keysDir      = ".keys"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <display_name> [-m <num_miners>]\n", os.Args[0])
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "" || os.Args[1][0] == '-' {
		usage()
	}
	displayName := os.Args[1]

	fs := flag.NewFlagSet("nd-coin", flag.ExitOnError)
	numMiners := fs.Int("m", 1, "number of miner goroutines")
	if err := fs.Parse(os.Args[2:]); err != nil {
		usage()
	}
	if *numMiners < 1 {
		usage()
	}

	base, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer base.Sync()
	logger := base.Sugar().With("display_name", displayName)

	priv, err := ndcrypto.LoadOrGenerateKeyPair(keysDir)
	if err != nil {
		logger.Fatalw("load or generate keys", "error", err)
	}

	cfg := node.Config{
		DisplayName:  displayName,
		NumMiners:    *numMiners,
		DataDir:      ".",
		CatalogAddr:  catalogAddr,
		DirectoryURL: directoryURL,
	}
	if err := node.Run(cfg, priv, logger); err != nil {
		logger.Fatalw("node exited", "error", err)
	}
}
