package node

import (
	"context"
	"crypto/ecdsa"
	"net"
	"os"
	"path/filepath"
	"syscall"

	"github.com/jrundle/nd-coin/blockchain"
	"github.com/jrundle/nd-coin/miner"
	"github.com/jrundle/nd-coin/ndcrypto"
	"github.com/jrundle/nd-coin/network"
	"github.com/jrundle/nd-coin/wallet"
	"github.com/pkg/errors"
	"github.com/vrecan/death/v3"
	"go.uber.org/zap"
)

// Config carries everything Run needs that isn't a key: the node's
// announced display name, how many miner goroutines to start, where
// persisted state lives, and the catalog/directory endpoints.
type Config struct {
	DisplayName  string
	NumMiners    int
	DataDir      string
	CatalogAddr  string
	DirectoryURL string
}

// Run loads the persisted chain, wires every goroutine together, and
// blocks in the wallet REPL until it exits or the process receives
// SIGINT/SIGTERM. On the way out it stops every goroutine and flushes
// the UTXO accelerator.
func Run(cfg Config, priv *ecdsa.PrivateKey, logger *zap.SugaredLogger) error {
	chain, err := blockchain.LoadChain(cfg.DataDir)
	if err != nil {
		return errors.Wrap(err, "load chain")
	}
	if head := chain.Head(); head != nil {
		logger.Infow("chain loaded", "height", head.Block.Height)
	} else {
		logger.Infow("no persisted chain, starting from scratch")
	}

	utxo, err := blockchain.OpenUTXOIndex(filepath.Join(cfg.DataDir, ".utxo"))
	if err != nil {
		return errors.Wrap(err, "open utxo accelerator")
	}
	defer utxo.Close()
	if err := utxo.Reindex(chain); err != nil {
		return errors.Wrap(err, "rebuild utxo accelerator")
	}

	pubKey := ndcrypto.PublicKeyBytes(&priv.PublicKey)
	w := wallet.New(priv, filepath.Join(cfg.DataDir, "wallet", "pending-txns.txt"), utxo)

	queues := NewQueues(cfg.NumMiners)
	events := make([]*ChainEvent, cfg.NumMiners)
	for i := range events {
		events[i] = NewChainEvent()
	}

	peers := network.NewPeerSet(pubKey)
	directory := network.NewDirectoryClient(cfg.DirectoryURL)
	egress := network.NewEgress(peers, directory, logger.With("component", "egress"))

	ingress, err := network.NewIngress(newIngressHandler(chain, queues, logger.With("component", "ingress")), logger.With("component", "ingress"))
	if err != nil {
		return errors.Wrap(err, "create ingress")
	}
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	port := ln.Addr().(*net.TCPAddr).Port
	logger.Infow("listening", "port", port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := ingress.Serve(ctx, ln); err != nil {
			logger.Errorw("ingress stopped", "error", err)
		}
	}()
	go egress.Run(ctx, queues.Out)
	go network.RunBeacon(ctx, cfg.CatalogAddr, port, pubKey, cfg.DisplayName, logger.With("component", "beacon"))

	maintainer := NewMaintainer(chain, utxo, cfg.DataDir, events, queues.Out, logger.With("component", "maintainer"))
	go maintainer.Run(ctx, queues.Blocks)

	for i := 0; i < cfg.NumMiners; i++ {
		others := make([]*ChainEvent, 0, cfg.NumMiners-1)
		for j, ev := range events {
			if j != i {
				others = append(others, ev)
			}
		}
		loop := NewMinerLoop(miner.New(priv, miner.Random), chain, queues.MinerTxn[i], events[i], others, queues.Blocks, queues.Out, logger)
		go loop.Run(ctx)
	}

	replDone := make(chan struct{})
	go func() {
		repl := NewREPL(w, chain, peers, queues, os.Stdin, os.Stdout, logger.With("component", "wallet"))
		repl.Run()
		close(replDone)
	}()

	signalled := make(chan struct{})
	d := death.NewDeath(syscall.SIGINT, syscall.SIGTERM)
	go d.WaitForDeathWithFunc(func() {
		close(signalled)
	})

	select {
	case <-replDone:
	case <-signalled:
	}
	cancel()
	logger.Infow("shutting down")
	return nil
}
