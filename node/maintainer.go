package node

import (
	"context"
	"encoding/hex"

	"github.com/jrundle/nd-coin/blockchain"
	"github.com/jrundle/nd-coin/network"
	"go.uber.org/zap"
)

// Maintainer is the chain's sole writer: it drains the
// block queue, calls InsertBlock, persists on success, rebuilds the
// UTXO accelerator, and raises every miner's chain-modified event so
// stale mining work is abandoned.
type Maintainer struct {
	chain   *blockchain.BlockChain
	utxo    *blockchain.UTXOIndex
	dataDir string
	events  []*ChainEvent
	out     chan<- []byte
	logger  *zap.SugaredLogger
}

// NewMaintainer returns a Maintainer writing persisted blocks under
// dataDir/chain and signaling events on every accepted block.
func NewMaintainer(chain *blockchain.BlockChain, utxo *blockchain.UTXOIndex, dataDir string, events []*ChainEvent, out chan<- []byte, logger *zap.SugaredLogger) *Maintainer {
	return &Maintainer{chain: chain, utxo: utxo, dataDir: dataDir, events: events, out: out, logger: logger}
}

// Run drains blocks until ctx is cancelled. A block is persisted
// before the chain-modified event fires, so any reader waking from
// that event and snapshotting under the chain lock sees the block both
// in memory and on disk.
func (m *Maintainer) Run(ctx context.Context, blocks <-chan *blockchain.Block) {
	for {
		select {
		case <-ctx.Done():
			return
		case block, ok := <-blocks:
			if !ok {
				return
			}
			m.ingest(block)
		}
	}
}

func (m *Maintainer) ingest(block *blockchain.Block) {
	result, err := m.chain.InsertBlock(block)
	switch result {
	case blockchain.Inserted:
		if err := blockchain.AppendBlock(m.dataDir, block); err != nil {
			m.logger.Errorw("persist accepted block", "height", block.Height, "error", err)
		}
		if err := m.utxo.Reindex(m.chain); err != nil {
			m.logger.Errorw("reindex utxo accelerator", "error", err)
		}
		m.logger.Infow("block inserted", "height", block.Height, "hash", block.BlockHash)
		for _, ev := range m.events {
			ev.Signal()
		}
	case blockchain.MissingPredecessor:
		m.logger.Debugw("block has unknown predecessor, requesting catch-up", "height", block.Height)
		m.requestPredecessor(block)
	case blockchain.Rejected:
		m.logger.Debugw("block rejected", "height", block.Height, "error", err)
	}
}

// requestPredecessor broadcasts a block_request for the ancestor the
// dropped block needed. Best-effort: a later block carrying the same
// ancestor would trigger this path again anyway.
func (m *Maintainer) requestPredecessor(block *blockchain.Block) {
	if block.Height == 0 {
		return
	}
	req := network.BlockRequest{
		PrevHash: hex.EncodeToString(block.PrevHash[:]),
		Height:   block.Height - 1,
	}
	frame, err := network.EncodeBlockRequest(req)
	if err != nil {
		m.logger.Errorw("encode block_request", "error", err)
		return
	}
	select {
	case m.out <- frame:
	default:
		m.logger.Debugw("egress queue full, dropping block_request", "height", req.Height)
	}
}
