// Package blockchain implements the chain-state engine: the
// block/transaction data model, proof-of-work predicate, and the
// multi-branch chain with reorg described by the node's consensus
// rules. It is the part of the node where real state-machine
// engineering lives; everything else (mining, wallet, network) reads
// or writes through the contract this package exposes.
package blockchain

// TxnInput references a prior transaction's output by transaction id
// and output index. It is wire-identical across implementations: the
// 32-byte txn id and the u32 index are bit-exact fields.
type TxnInput struct {
	TxnID [32]byte
	Index uint32
}

// TxnOutput is a "coin": an amount locked to a public key, optionally
// signed to prove the transaction that created it is authentic. Spent
// is local bookkeeping only — it is never part of the wire format or
// the hash.
type TxnOutput struct {
	PubKey    []byte
	Amount    uint64
	Signature []byte
	Spent     bool
}

// Transaction is a signed transfer (or coinbase mint) of coins. TxnID
// is the double-SHA-256 hash of the canonical JSON of Inputs and
// Outputs; see canon.go.
type Transaction struct {
	TxnID   [32]byte
	Inputs  []TxnInput
	Outputs []TxnOutput
}

// IsCoinbase reports whether txn is a coinbase mint: no inputs and
// exactly one output.
func (t *Transaction) IsCoinbase() bool {
	return len(t.Inputs) == 0 && len(t.Outputs) == 1
}

// Block is one proof-of-work-sealed unit of the chain: a previous
// hash, height, nonce, and an ordered, non-empty list of transactions
// whose first element is always the coinbase.
type Block struct {
	PrevHash     [32]byte
	Height       uint32
	Nonce        [32]byte // big-endian 256-bit nonce
	Transactions []*Transaction
	BlockHash    [32]byte
}

// ChainNode is one node in the chain's tree of branches: a block plus
// a back-pointer to its predecessor node. Genesis has a nil Parent.
type ChainNode struct {
	Parent *ChainNode
	Block  *Block
}

// LinkedTxnInput augments a TxnInput with a direct, already-resolved
// reference to the predecessor transaction — held as a stable arena
// index rather than a pointer, so the transaction graph never forms a
// reference cycle (arena.go).
type LinkedTxnInput struct {
	TxnInput
	PredecessorIdx int
}

// LinkedTransaction is the chain-internal view of a Transaction with
// its inputs resolved to LinkedTxnInput. It is what BlockChain's
// transaction index actually stores.
type LinkedTransaction struct {
	Txn    *Transaction
	Inputs []LinkedTxnInput
}

// Peer describes one remote participant as seen through the directory
// service or catalog beacon. PubKeyHex is set at decode time so
// logging and display code never has to re-encode PubKey on every use.
type Peer struct {
	PubKey        []byte
	PubKeyHex     string
	Address       string
	Port          int
	DisplayName   string
	LastHeardFrom int64
}
