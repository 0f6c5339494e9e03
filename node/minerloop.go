package node

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jrundle/nd-coin/blockchain"
	"github.com/jrundle/nd-coin/miner"
	"github.com/jrundle/nd-coin/network"
	"go.uber.org/zap"
)

// MinerLoop drives one mining thread: snapshot the chain
// under its lock, accept pending transactions up to MaxTxnCount or
// MinerWaitTimeout, search a nonce, and on success push the solved
// block to the block queue and egress while waking every other
// miner's stale search.
type MinerLoop struct {
	id     string
	m      *miner.Miner
	chain  *blockchain.BlockChain
	txns   <-chan *blockchain.Transaction
	event  *ChainEvent
	others []*ChainEvent
	blocks chan<- *blockchain.Block
	out    chan<- []byte
	logger *zap.SugaredLogger
}

// NewMinerLoop returns a MinerLoop. others is every ChainEvent except
// this loop's own, signaled when this miner finds a block so sibling
// miners abandon stale searches.
func NewMinerLoop(m *miner.Miner, chain *blockchain.BlockChain, txns <-chan *blockchain.Transaction, event *ChainEvent, others []*ChainEvent, blocks chan<- *blockchain.Block, out chan<- []byte, logger *zap.SugaredLogger) *MinerLoop {
	id := uuid.NewString()
	return &MinerLoop{
		id:     id,
		m:      m,
		chain:  chain,
		txns:   txns,
		event:  event,
		others: others,
		blocks: blocks,
		out:    out,
		logger: logger.With("miner_id", id[:8]),
	}
}

// Run mines continuously until ctx is cancelled. Each round: snapshot,
// accept transactions, search a nonce, cooperatively aborting the
// search the instant the chain-modified event fires so stale work
// never gets broadcast.
func (l *MinerLoop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		snapshot := l.chain.Snapshot()
		head := snapshot.Head()

		var prevHash [32]byte
		var nextHeight uint32
		if head != nil {
			prevHash = head.Block.BlockHash
			nextHeight = head.Block.Height + 1
		}
		// head == nil means no genesis has been inserted yet: mine
		// height 0 with the zero predecessor hash, same as any other
		// block (blockchain.InsertBlock treats Height == 0 specially).

		if err := l.m.ResetPendingTxns(); err != nil {
			l.logger.Errorw("reset pending set", "error", err)
			continue
		}

		if !l.acceptTxns(ctx, snapshot) {
			continue
		}

		block := l.m.ComposeBlock(prevHash, nextHeight)
		stop := l.event.Wait()
		solved, found := l.m.FindNonce(block, stop)
		if !found {
			continue
		}

		l.logger.Infow("mined block", "height", solved.Height, "hash", solved.BlockHash, "txns", len(solved.Transactions))
		l.publish(solved)
		for _, ev := range l.others {
			ev.Signal()
		}
	}
}

// acceptTxns streams pending transactions from the miner's queue into
// its pool, verifying each against snapshot before admission. It
// returns false if the chain-modified event fired or ctx was
// cancelled before a block could be composed — the caller should take
// a fresh snapshot rather than mine against stale state.
func (l *MinerLoop) acceptTxns(ctx context.Context, snapshot *blockchain.BlockChain) bool {
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		if l.m.NumPendingTxns() >= blockchain.MaxTxnCount {
			return true
		}
		if timer == nil && l.m.NumPendingTxns() > 1 {
			timer = time.NewTimer(blockchain.MinerWaitTimeout)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			return false
		case <-l.event.Wait():
			return false
		case <-timerC:
			return true
		case txn, ok := <-l.txns:
			if !ok {
				return true
			}
			if err := snapshot.VerifyTransaction(txn, false); err != nil {
				l.logger.Debugw("dropping invalid pending transaction", "error", err)
				continue
			}
			l.m.AddPendingTxn(txn)
		}
	}
}

func (l *MinerLoop) publish(block *blockchain.Block) {
	select {
	case l.blocks <- block:
	default:
		l.logger.Warnw("block queue full, dropping own mined block", "height", block.Height)
	}

	frame, err := network.EncodeBlock(block)
	if err != nil {
		l.logger.Errorw("encode mined block for broadcast", "error", err)
		return
	}
	select {
	case l.out <- frame:
	default:
		l.logger.Warnw("egress queue full, dropping broadcast of own mined block", "height", block.Height)
	}
}
