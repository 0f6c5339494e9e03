package node

import "github.com/jrundle/nd-coin/blockchain"

// queueDepth bounds every channel below: generous enough that a
// bursty ingress goroutine doesn't block on a slow-draining miner
// under ordinary operation, without letting a stuck consumer grow
// memory unboundedly.
const queueDepth = 256

// Queues holds every multi-producer/single-consumer channel the node
// wires between its threads: one block queue into the maintainer, one
// transaction queue per miner (so a slow miner never blocks another),
// and one outbound frame queue into egress.
type Queues struct {
	Blocks   chan *blockchain.Block
	MinerTxn []chan *blockchain.Transaction
	Out      chan []byte
}

// NewQueues allocates a Queues with one transaction channel per miner.
func NewQueues(numMiners int) *Queues {
	q := &Queues{
		Blocks:   make(chan *blockchain.Block, queueDepth),
		MinerTxn: make([]chan *blockchain.Transaction, numMiners),
		Out:      make(chan []byte, queueDepth),
	}
	for i := range q.MinerTxn {
		q.MinerTxn[i] = make(chan *blockchain.Transaction, queueDepth)
	}
	return q
}

// BroadcastTxn pushes txn onto every miner's queue, non-blocking: a
// full queue (a miner stuck far behind) drops the push for that miner
// rather than stalling the sender. Ordering across miners is resolved
// by proof-of-work and reorg, never at the queue layer.
func (q *Queues) BroadcastTxn(txn *blockchain.Transaction) {
	for _, ch := range q.MinerTxn {
		select {
		case ch <- txn:
		default:
		}
	}
}
