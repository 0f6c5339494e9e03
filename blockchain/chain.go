package blockchain

import (
	"bytes"
	"sync"

	"github.com/jrundle/nd-coin/ndcrypto"
	"github.com/pkg/errors"
)

// InsertResult is the explicit result variant InsertBlock returns: a
// value the caller must branch on, never an exception-style escape.
type InsertResult int

const (
	// Inserted means the block is now part of the chain (it may or may
	// not have become the new head).
	Inserted InsertResult = iota
	// Rejected means the block failed verification or is older than
	// the reorg horizon.
	Rejected
	// MissingPredecessor means the block's predecessor is not yet
	// known; the caller may queue a block_request for it.
	MissingPredecessor
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "Inserted"
	case Rejected:
		return "Rejected"
	case MissingPredecessor:
		return "MissingPredecessor"
	default:
		return "Unknown"
	}
}

// BlockChain is the multi-branch chain-state engine: levels (height to
// map of block hash to node), a transaction index over the active
// branch, and the single lock that guards all of it. The maintainer is
// the only writer; every other activity calls Snapshot to obtain an
// independent deep copy.
type BlockChain struct {
	mu        sync.Mutex
	levels    map[uint32]map[[32]byte]*ChainNode
	head      *ChainNode
	maxHeight uint32
	arena     *txnArena
}

// New returns an empty chain with no genesis block yet inserted.
func New() *BlockChain {
	return &BlockChain{
		levels: make(map[uint32]map[[32]byte]*ChainNode),
		arena:  newTxnArena(),
	}
}

// Head returns the current head node. It is nil until a genesis block
// has been inserted.
func (bc *BlockChain) Head() *ChainNode {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.head
}

// Transactions returns a copy of the txn_id → LinkedTransaction mapping
// over the current head's branch.
func (bc *BlockChain) Transactions() map[[32]byte]*LinkedTransaction {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	out := make(map[[32]byte]*LinkedTransaction, len(bc.arena.byTxnID))
	for id, idx := range bc.arena.byTxnID {
		out[id] = bc.arena.get(idx)
	}
	return out
}

// BranchBlocks returns the active branch's blocks at or above
// fromHeight, ordered low to high. It is how the node answers a
// catch-up request from a peer that is missing an ancestor.
func (bc *BlockChain) BranchBlocks(fromHeight uint32) []*Block {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	var out []*Block
	for n := bc.head; n != nil && n.Block.Height >= fromHeight; n = n.Parent {
		out = append(out, n.Block)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// InsertBlock runs the insert state machine: reorg-horizon check,
// predecessor resolution, move-head, verify, apply, and the
// new-max-height head decision.
func (bc *BlockChain) InsertBlock(block *Block) (InsertResult, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if block.Height == 0 {
		return bc.insertGenesis(block)
	}
	if bc.head == nil {
		return Rejected, errors.New("chain has no genesis block yet")
	}

	if int64(block.Height) < int64(bc.head.Block.Height)-int64(MaxBlocksBehind) {
		return Rejected, errors.Errorf("block height %d is older than the reorg horizon", block.Height)
	}

	if lvl, ok := bc.levels[block.Height]; ok {
		if _, exists := lvl[block.BlockHash]; exists {
			return Inserted, nil
		}
	}

	predLevel, ok := bc.levels[block.Height-1]
	if !ok {
		return MissingPredecessor, nil
	}
	predNode, ok := predLevel[block.PrevHash]
	if !ok {
		return MissingPredecessor, nil
	}

	priorHead := bc.head
	priorMaxHeight := bc.maxHeight

	bc.moveHead(predNode)

	if err := bc.verifyBlock(block); err != nil {
		bc.moveHead(priorHead)
		bc.maxHeight = priorMaxHeight
		return Rejected, err
	}

	newNode := &ChainNode{Parent: predNode, Block: block}
	bc.addToLevels(newNode)
	bc.head = newNode

	if block.Height > bc.maxHeight {
		bc.maxHeight = block.Height
	} else {
		bc.moveHead(priorHead)
	}

	bc.pruneOldBranches()
	return Inserted, nil
}

func (bc *BlockChain) insertGenesis(block *Block) (InsertResult, error) {
	if bc.head != nil {
		if lvl, ok := bc.levels[0]; ok {
			if _, exists := lvl[block.BlockHash]; exists {
				return Inserted, nil
			}
		}
		return Rejected, errors.New("competing genesis block rejected")
	}
	if err := bc.verifyBlock(block); err != nil {
		return Rejected, err
	}
	node := &ChainNode{Parent: nil, Block: block}
	bc.addToLevels(node)
	bc.head = node
	bc.maxHeight = 0
	return Inserted, nil
}

func (bc *BlockChain) addToLevels(node *ChainNode) {
	lvl, ok := bc.levels[node.Block.Height]
	if !ok {
		lvl = make(map[[32]byte]*ChainNode)
		bc.levels[node.Block.Height] = lvl
	}
	lvl[node.Block.BlockHash] = node
}

// pruneOldBranches drops levels strictly below the reorg horizon:
// older-branch blocks may be discarded once they can no
// longer be reorged to.
func (bc *BlockChain) pruneOldBranches() {
	if bc.head == nil {
		return
	}
	horizon := int64(bc.head.Block.Height) - int64(MaxBlocksBehind)
	if horizon <= 0 {
		return
	}
	for h := range bc.levels {
		if int64(h) < horizon {
			delete(bc.levels, h)
		}
	}
}

// VerifyTransaction checks a transaction against the chain's current
// state (whatever branch is presently applied into the arena): id
// integrity, single-sender inputs, amount conservation, unspent
// predecessors, and output signatures.
func (bc *BlockChain) VerifyTransaction(t *Transaction, isCoinbase bool) error {
	if ComputeTxnID(t) != t.TxnID {
		return errors.Wrap(ErrInvalidTransaction, "txn id does not match contents")
	}

	if isCoinbase {
		if len(t.Inputs) != 0 {
			return errors.Wrap(ErrInvalidTransaction, "coinbase must have zero inputs")
		}
		if len(t.Outputs) != 1 {
			return errors.Wrap(ErrInvalidTransaction, "coinbase must have exactly one output")
		}
		if t.Outputs[0].Amount != MiningReward {
			return errors.Wrap(ErrInvalidTransaction, "coinbase amount does not match mining reward")
		}
		pub, err := ndcrypto.PublicKeyFromBytes(t.Outputs[0].PubKey)
		if err != nil {
			return errors.Wrap(ErrInvalidTransaction, "coinbase output has malformed public key")
		}
		if !VerifyOutputSignatures(t, pub) {
			return errors.Wrap(ErrInvalidTransaction, "coinbase signature does not verify")
		}
		return nil
	}

	if len(t.Outputs) == 0 {
		return errors.Wrap(ErrInvalidTransaction, "transaction has no outputs")
	}

	var senderPub []byte
	var sumIn uint64
	for _, in := range t.Inputs {
		idx, ok := bc.arena.indexOf(in.TxnID)
		if !ok {
			return errors.Wrap(ErrInvalidTransaction, "input references unknown predecessor transaction")
		}
		pred := bc.arena.get(idx)
		if pred == nil || int(in.Index) >= len(pred.Txn.Outputs) {
			return errors.Wrap(ErrInvalidTransaction, "input references out-of-range output index")
		}
		coin := pred.Txn.Outputs[in.Index]
		if coin.Spent {
			return errors.Wrap(ErrInvalidTransaction, "coin already spent")
		}
		if senderPub == nil {
			senderPub = coin.PubKey
		} else if !bytes.Equal(senderPub, coin.PubKey) {
			return errors.Wrap(ErrInvalidTransaction, "inputs do not share a single sender key")
		}
		sumIn += coin.Amount
	}

	var sumOut uint64
	for _, o := range t.Outputs {
		sumOut += o.Amount
	}
	if sumIn != sumOut {
		return errors.Wrap(ErrInvalidTransaction, "sum of inputs does not equal sum of outputs")
	}

	pub, err := ndcrypto.PublicKeyFromBytes(senderPub)
	if err != nil {
		return errors.Wrap(ErrInvalidTransaction, "sender key is malformed")
	}
	if !VerifyOutputSignatures(t, pub) {
		return errors.Wrap(ErrInvalidTransaction, "signature does not verify")
	}
	return nil
}

// verifyBlock checks hash and proof-of-work first, then runs a
// per-transaction verify-and-temporarily-apply pass, reverting
// this block's own prefix on failure.
func (bc *BlockChain) verifyBlock(block *Block) error {
	if recomputed := ComputeBlockHash(block.PrevHash, block.Height, block.Nonce, block.Transactions); recomputed != block.BlockHash {
		return errors.Wrap(ErrInvalidBlock, "block hash does not match contents")
	}
	if !SatisfiesPoW(block.BlockHash) {
		return errors.Wrap(ErrInvalidBlock, "block hash does not satisfy proof-of-work predicate")
	}
	if len(block.Transactions) == 0 {
		return errors.Wrap(ErrInvalidBlock, "block has no transactions")
	}

	seen := make(map[[32]byte]bool, len(block.Transactions))
	for _, t := range block.Transactions {
		if seen[t.TxnID] {
			return errors.Wrap(ErrInvalidBlock, "duplicate txn id within block")
		}
		seen[t.TxnID] = true
	}

	applied := 0
	for i, t := range block.Transactions {
		if err := bc.VerifyTransaction(t, i == 0); err != nil {
			bc.revertAppliedPrefix(block.Transactions, applied)
			return errors.Wrap(ErrInvalidBlock, err.Error())
		}
		bc.applyTxn(t)
		applied++
	}
	return nil
}

func (bc *BlockChain) revertAppliedPrefix(txns []*Transaction, n int) {
	for i := n - 1; i >= 0; i-- {
		bc.revertTxn(txns[i])
	}
}

// applyTxn installs t's LinkedTransaction in the arena, marking every
// consumed coin spent and every produced output unspent.
func (bc *BlockChain) applyTxn(t *Transaction) {
	linkedInputs := make([]LinkedTxnInput, len(t.Inputs))
	for i, in := range t.Inputs {
		predIdx, ok := bc.arena.indexOf(in.TxnID)
		if !ok {
			fatalInvariantViolation("apply: predecessor transaction missing from arena after verification")
		}
		pred := bc.arena.get(predIdx)
		pred.Txn.Outputs[in.Index].Spent = true
		linkedInputs[i] = LinkedTxnInput{TxnInput: in, PredecessorIdx: predIdx}
	}
	for i := range t.Outputs {
		t.Outputs[i].Spent = false
	}
	bc.arena.put(&LinkedTransaction{Txn: t, Inputs: linkedInputs})
}

// revertTxn is the symmetric inverse of applyTxn: it unsets spent on
// the coins t had consumed and removes t from the arena.
func (bc *BlockChain) revertTxn(t *Transaction) {
	idx, ok := bc.arena.indexOf(t.TxnID)
	if !ok {
		fatalInvariantViolation("revert: transaction missing from arena")
	}
	lt := bc.arena.get(idx)
	for _, li := range lt.Inputs {
		pred := bc.arena.get(li.PredecessorIdx)
		pred.Txn.Outputs[li.TxnInput.Index].Spent = false
	}
	bc.arena.remove(t.TxnID)
}

// Snapshot returns a deep copy of the chain's active branch (genesis
// through head), suitable for a miner or the wallet to read without
// blocking the maintainer. Only the active branch is copied: miners
// and the wallet only ever reason about the head's transaction index,
// never about blocks sitting on a shorter alternative branch.
func (bc *BlockChain) Snapshot() *BlockChain {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	var chain []*ChainNode
	for n := bc.head; n != nil; n = n.Parent {
		chain = append(chain, n)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	snap := New()
	var parent *ChainNode
	for _, n := range chain {
		b := cloneBlock(n.Block)
		nn := &ChainNode{Parent: parent, Block: b}
		snap.addToLevels(nn)
		for _, t := range b.Transactions {
			snap.applyTxn(t)
		}
		snap.head = nn
		snap.maxHeight = b.Height
		parent = nn
	}
	return snap
}

func cloneBlock(b *Block) *Block {
	nb := &Block{PrevHash: b.PrevHash, Height: b.Height, Nonce: b.Nonce, BlockHash: b.BlockHash}
	nb.Transactions = make([]*Transaction, len(b.Transactions))
	for i, t := range b.Transactions {
		nb.Transactions[i] = cloneTxn(t)
	}
	return nb
}

func cloneTxn(t *Transaction) *Transaction {
	nt := &Transaction{TxnID: t.TxnID}
	nt.Inputs = append([]TxnInput(nil), t.Inputs...)
	nt.Outputs = make([]TxnOutput, len(t.Outputs))
	for i, o := range t.Outputs {
		nt.Outputs[i] = TxnOutput{
			PubKey:    append([]byte(nil), o.PubKey...),
			Amount:    o.Amount,
			Signature: append([]byte(nil), o.Signature...),
			Spent:     o.Spent,
		}
	}
	return nt
}
