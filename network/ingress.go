package network

import (
	"context"
	"net"

	lru "github.com/hashicorp/golang-lru"
	"github.com/jrundle/nd-coin/blockchain"
	"go.uber.org/zap"
)

// seenTxnCacheSize bounds the LRU of recently-seen transaction ids at
// ingress. It is purely a load-shedding accelerator against duplicate
// rebroadcasts from several peers hitting every miner's queue at
// once — consensus-relevant double-spend rejection still happens in
// BlockChain.VerifyTransaction regardless of what this cache drops.
const seenTxnCacheSize = 4096

// Handler receives decoded messages off the wire. Implementations
// deposit them into the appropriate queue; Serve itself holds no
// chain or queue state.
type Handler interface {
	HandleBlock(b *blockchain.Block)
	HandleBlockList(blocks []*blockchain.Block)
	HandleTransaction(t *blockchain.Transaction)
	HandleBlockRequest(req BlockRequest)
}

// Ingress accepts connections, reads exactly one framed message per
// connection, and dispatches it to a Handler.
type Ingress struct {
	handler Handler
	logger  *zap.SugaredLogger
	seen    *lru.Cache
}

// NewIngress returns an Ingress dispatching decoded messages to
// handler.
func NewIngress(handler Handler, logger *zap.SugaredLogger) (*Ingress, error) {
	cache, err := lru.New(seenTxnCacheSize)
	if err != nil {
		return nil, err
	}
	return &Ingress{handler: handler, logger: logger, seen: cache}, nil
}

// Serve accepts connections on ln until ctx is cancelled. Each
// connection is handled in its own goroutine and closed after its one
// message is processed. The caller owns ln's creation so it can learn
// the bound port before the catalog beacon starts announcing it.
func (in *Ingress) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				in.logger.Warnw("accept failed", "error", err)
				continue
			}
		}
		go in.handleConn(conn)
	}
}

func (in *Ingress) handleConn(conn net.Conn) {
	defer conn.Close()

	raw, err := ReadFrame(conn)
	if err != nil {
		in.logger.Debugw("dropping malformed frame", "peer", conn.RemoteAddr(), "error", err)
		return
	}

	msg, err := Decode(raw)
	if err != nil {
		in.logger.Debugw("dropping undecodable message", "peer", conn.RemoteAddr(), "error", err)
		return
	}

	switch {
	case msg.Block != nil:
		in.handler.HandleBlock(msg.Block)
	case msg.BlockList != nil:
		in.handler.HandleBlockList(msg.BlockList)
	case msg.Transaction != nil:
		id := msg.Transaction.TxnID
		if in.seen.Contains(id) {
			in.logger.Debugw("dropping duplicate transaction", "txn_id", id)
			return
		}
		in.seen.Add(id, struct{}{})
		in.handler.HandleTransaction(msg.Transaction)
	case msg.BlockRequest != nil:
		in.handler.HandleBlockRequest(*msg.BlockRequest)
	}
}
