package node

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jrundle/nd-coin/blockchain"
	"github.com/jrundle/nd-coin/network"
	"github.com/jrundle/nd-coin/wallet"
	"go.uber.org/zap"
)

// REPL is the node's one blocking thread: a line-oriented wallet
// console reading send/balance/peers/pending commands, each of which
// takes its own chain snapshot rather than holding any lock across
// commands.
type REPL struct {
	wallet *wallet.Wallet
	chain  *blockchain.BlockChain
	peers  *network.PeerSet
	txns   *Queues
	in     io.Reader
	out    io.Writer
	logger *zap.SugaredLogger
}

// NewREPL returns a REPL reading commands from in and writing
// responses to out.
func NewREPL(w *wallet.Wallet, chain *blockchain.BlockChain, peers *network.PeerSet, txns *Queues, in io.Reader, out io.Writer, logger *zap.SugaredLogger) *REPL {
	return &REPL{wallet: w, chain: chain, peers: peers, txns: txns, in: in, out: out, logger: logger}
}

func (r *REPL) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format, args...)
}

// Run blocks reading lines from in until EOF or a "quit" command.
func (r *REPL) Run() {
	r.printUsage()
	scanner := bufio.NewScanner(r.in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "send":
			r.cmdSend(fields[1:])
		case "balance":
			r.cmdBalance()
		case "peers":
			r.cmdPeers()
		case "pending":
			r.cmdPending()
		case "help":
			r.printUsage()
		case "quit", "exit":
			return
		default:
			r.printf("unknown command %q, type help for usage\n", fields[0])
		}
	}
}

func (r *REPL) printUsage() {
	r.printf("commands:\n")
	r.printf("  send <dest_pub_hex> <amount> - create and broadcast a transfer\n")
	r.printf("  balance                      - show confirmed balance\n")
	r.printf("  peers                        - list known peers\n")
	r.printf("  pending                      - list unconfirmed transfers this wallet sent\n")
	r.printf("  help                         - show this message\n")
	r.printf("  quit                         - exit\n")
}

func (r *REPL) cmdSend(args []string) {
	if len(args) != 2 {
		r.printf("usage: send <dest_pub_hex> <amount>\n")
		return
	}
	destKey, err := hex.DecodeString(args[0])
	if err != nil {
		r.printf("invalid destination public key: %v\n", err)
		return
	}
	amount, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil || amount == 0 {
		r.printf("invalid amount %q\n", args[1])
		return
	}

	snapshot := r.chain.Snapshot()
	if err := r.wallet.LoadTransactions(snapshot); err != nil {
		r.printf("load wallet state failed: %v\n", err)
		return
	}

	txn, err := r.wallet.CreateTxn(destKey, amount)
	if err != nil {
		r.printf("create transfer failed: %v\n", err)
		return
	}
	if err := r.wallet.AddPending(txn); err != nil {
		r.printf("record pending transfer failed: %v\n", err)
		return
	}

	r.txns.BroadcastTxn(txn)
	frame, err := network.EncodeTransaction(txn)
	if err != nil {
		r.logger.Errorw("encode transaction for broadcast", "error", err)
	} else {
		select {
		case r.txns.Out <- frame:
		default:
			r.logger.Warnw("egress queue full, dropping transaction broadcast")
		}
	}
	r.printf("sent txn %s\n", hex.EncodeToString(txn.TxnID[:]))
}

func (r *REPL) cmdBalance() {
	snapshot := r.chain.Snapshot()
	if err := r.wallet.LoadTransactions(snapshot); err != nil {
		r.printf("load wallet state failed: %v\n", err)
		return
	}
	_, total := r.wallet.GetBalance(snapshot)
	r.printf("balance for %s: %d\n", wallet.DisplayID(r.wallet.PubKeyBytes()), total)
}

func (r *REPL) cmdPeers() {
	peers := r.peers.Snapshot()
	if len(peers) == 0 {
		r.printf("no known peers\n")
		return
	}
	for _, p := range peers {
		r.printf("%s  %s:%d  %s\n", wallet.DisplayID(p.PubKey), p.Address, p.Port, p.DisplayName)
	}
}

func (r *REPL) cmdPending() {
	recs, err := r.wallet.Pending()
	if err != nil {
		r.printf("load pending transfers failed: %v\n", err)
		return
	}
	if len(recs) == 0 {
		r.printf("no pending transfers\n")
		return
	}
	for _, rec := range recs {
		r.printf("%s  to=%s  amount=%d\n", rec.TxnID, displayOrHex(rec.To), rec.Amount)
	}
}

// displayOrHex renders a hex public key as its short display id,
// falling back to the raw hex when it doesn't decode.
func displayOrHex(pubHex string) string {
	raw, err := hex.DecodeString(pubHex)
	if err != nil {
		return pubHex
	}
	return wallet.DisplayID(raw)
}
