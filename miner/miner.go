// Package miner implements the coinbase construction, pending-
// transaction pool, and nonce search a mining thread drives against a
// chain snapshot. It holds no lock of its own and touches no shared
// state: every method operates on the Miner's own pending set or on a
// *blockchain.Block the caller supplies, so a miner goroutine can run
// freely against its private copy of the chain.
package miner

import (
	"crypto/ecdsa"
	"crypto/rand"
	"math/big"

	"github.com/jrundle/nd-coin/blockchain"
	"github.com/pkg/errors"
)

// Strategy selects how NextNonce produces candidate nonces.
type Strategy int

const (
	// Random chooses a uniformly distributed 256-bit integer on every
	// call.
	Random Strategy = iota
	// Increment starts at zero and counts up by one on every call. A
	// nonce of zero on the first call is a legitimate candidate, never
	// a sentinel meaning "no nonce found" — callers must branch on
	// NextNonce's ok return, not on the nonce value.
	Increment
)

// Miner owns one pending-transaction pool and nonce-search strategy.
// priv belongs to the wallet whose coinbase reward this miner mines
// toward.
type Miner struct {
	priv     *ecdsa.PrivateKey
	strategy Strategy
	pending  []*blockchain.Transaction
	counter  *big.Int
}

// New returns a miner that mints coinbase rewards to priv's public key
// and searches nonces using strategy.
func New(priv *ecdsa.PrivateKey, strategy Strategy) *Miner {
	return &Miner{priv: priv, strategy: strategy, counter: new(big.Int)}
}

// ResetPendingTxns clears the pending set and inserts a fresh, signed
// coinbase transaction at index 0. It must be called before the first
// AddPendingTxn of a new mining round.
func (m *Miner) ResetPendingTxns() error {
	coinbase := &blockchain.Transaction{
		Outputs: []blockchain.TxnOutput{{Amount: blockchain.MiningReward}},
	}
	if err := blockchain.SignTransaction(coinbase, m.priv); err != nil {
		return errors.Wrap(err, "sign coinbase")
	}
	m.pending = []*blockchain.Transaction{coinbase}
	return nil
}

// AddPendingTxn appends txn to the pending set. Callers are expected
// to have already verified txn against a chain snapshot.
func (m *Miner) AddPendingTxn(txn *blockchain.Transaction) {
	m.pending = append(m.pending, txn)
}

// NumPendingTxns returns the current pending set size, coinbase
// included.
func (m *Miner) NumPendingTxns() int {
	return len(m.pending)
}

// ComposeBlock packages the current pending set into a block awaiting
// a nonce: prevHash/height come from the chain snapshot's head, and
// the nonce starts at the zero value until a search installs one.
func (m *Miner) ComposeBlock(prevHash [32]byte, height uint32) *blockchain.Block {
	txns := make([]*blockchain.Transaction, len(m.pending))
	copy(txns, m.pending)
	return &blockchain.Block{
		PrevHash:     prevHash,
		Height:       height,
		Transactions: txns,
	}
}

// NextNonce produces the next candidate nonce for the miner's
// strategy. ok is false only if the Increment strategy has exhausted
// the full 256-bit space (in practice unreachable) or the Random
// strategy fails to read from the system randomness source; a genuine zero
// nonce under Increment's first call reports ok=true, never treated
// as "no nonce found".
func (m *Miner) NextNonce() (nonce [32]byte, ok bool) {
	switch m.strategy {
	case Increment:
		if m.counter.BitLen() > 256 {
			return nonce, false
		}
		m.counter.FillBytes(nonce[:])
		m.counter.Add(m.counter, big.NewInt(1))
		return nonce, true
	default:
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nonce, false
		}
		copy(nonce[:], buf)
		return nonce, true
	}
}

// ValidNonce recomputes block's hash with nonce substituted in and
// reports whether the result satisfies the PoW predicate.
func ValidNonce(block *blockchain.Block, nonce [32]byte) bool {
	hash := blockchain.ComputeBlockHash(block.PrevHash, block.Height, nonce, block.Transactions)
	return blockchain.SatisfiesPoW(hash)
}

// FindNonce searches for a nonce satisfying the PoW predicate,
// checking stop before every attempt so a chain-modified signal aborts
// the search within one iteration. On success it returns block with Nonce and BlockHash
// filled in; on cancellation it returns false.
func (m *Miner) FindNonce(block *blockchain.Block, stop <-chan struct{}) (*blockchain.Block, bool) {
	for {
		select {
		case <-stop:
			return nil, false
		default:
		}
		nonce, ok := m.NextNonce()
		if !ok {
			return nil, false
		}
		hash := blockchain.ComputeBlockHash(block.PrevHash, block.Height, nonce, block.Transactions)
		if blockchain.SatisfiesPoW(hash) {
			block.Nonce = nonce
			block.BlockHash = hash
			return block, true
		}
	}
}
