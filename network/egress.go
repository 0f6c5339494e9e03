package network

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jrundle/nd-coin/blockchain"
	"go.uber.org/zap"
)

// EgressPollInterval is how often the outbound queue is drained and
// fanned out to the current peer set.
const EgressPollInterval = 200 * time.Millisecond

// dialTimeout bounds one outbound connection attempt so a dead peer
// doesn't stall a broadcast round.
const dialTimeout = 2 * time.Second

// Egress maintains one cached outbound TCP connection per peer pub
// key and fans out queued frames to the current peer set, refreshing
// it before every round via directory.
type Egress struct {
	peers     *PeerSet
	directory *DirectoryClient
	logger    *zap.SugaredLogger

	mu    sync.Mutex
	conns map[string]net.Conn
}

// NewEgress returns an Egress broadcasting to peers, refreshing that
// set from directory before each fan-out.
func NewEgress(peers *PeerSet, directory *DirectoryClient, logger *zap.SugaredLogger) *Egress {
	return &Egress{
		peers:     peers,
		directory: directory,
		logger:    logger,
		conns:     make(map[string]net.Conn),
	}
}

// Run drains out, a channel of already-framed-or-to-be-framed payloads,
// every EgressPollInterval, until ctx is cancelled. Each tick refreshes
// the peer set and broadcasts every payload queued since the last tick
// to every currently known peer.
func (e *Egress) Run(ctx context.Context, out <-chan []byte) {
	ticker := time.NewTicker(EgressPollInterval)
	defer ticker.Stop()
	defer e.closeAll()

	var pending [][]byte
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-out:
			pending = append(pending, payload)
		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			e.refreshPeers(ctx)
			peers := e.peers.Snapshot()
			for _, payload := range pending {
				e.broadcast(peers, payload)
			}
			pending = nil
		}
	}
}

func (e *Egress) refreshPeers(ctx context.Context) {
	if e.directory == nil {
		return
	}
	entries, err := e.directory.Query(ctx)
	if err != nil {
		e.logger.Debugw("directory refresh failed", "error", err)
		return
	}
	e.peers.Update(entries)
}

// broadcast sends payload as one frame to every peer in peers,
// reusing or establishing a cached connection per peer pub key and
// dropping the cache entry on any write failure so the next round
// redials.
func (e *Egress) broadcast(peers []*blockchain.Peer, payload []byte) {
	for _, p := range peers {
		addr := fmt.Sprintf("%s:%d", p.Address, p.Port)
		conn, err := e.conn(addr, p.PubKeyHex)
		if err != nil {
			e.logger.Debugw("dial peer failed", "peer", p.DisplayName, "addr", addr, "error", err)
			continue
		}
		if err := WriteFrame(conn, payload); err != nil {
			e.logger.Debugw("send to peer failed", "peer", p.DisplayName, "addr", addr, "error", err)
			e.drop(p.PubKeyHex)
		}
	}
}

func (e *Egress) conn(addr, key string) (net.Conn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.conns[key]; ok {
		return c, nil
	}
	c, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, err
	}
	e.conns[key] = c
	return c, nil
}

func (e *Egress) drop(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.conns[key]; ok {
		c.Close()
		delete(e.conns, key)
	}
}

func (e *Egress) closeAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, c := range e.conns {
		c.Close()
		delete(e.conns, k)
	}
}
