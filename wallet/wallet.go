// Package wallet implements the node's local wallet: UTXO selection
// over a chain snapshot, transfer construction with change, balance
// computation, and a pending-transfer journal. It never mutates the
// chain directly — every read goes through a snapshot the wallet
// thread took under the chain's lock.
package wallet

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"sort"

	"github.com/jrundle/nd-coin/blockchain"
	"github.com/jrundle/nd-coin/ndcrypto"
	"github.com/pkg/errors"
)

// ownedCoin is one unspent output known to belong to the wallet, kept
// in the order LoadTransactions discovered it so FindCoins has a
// stable selection order across calls.
type ownedCoin struct {
	txnID  [32]byte
	index  uint32
	amount uint64
}

// Coin identifies one spendable output by the transaction that created
// it and its output index.
type Coin struct {
	TxnID [32]byte
	Index uint32
}

// Wallet holds one owner's keys, the coins LoadTransactions last found
// for that owner, an optional spent-coin accelerator index, and the
// path to its pending-transfer journal.
type Wallet struct {
	priv        *ecdsa.PrivateKey
	pubKeyBytes []byte
	coins       []ownedCoin
	utxo        *blockchain.UTXOIndex
	pendingPath string
}

// New returns a wallet for priv, persisting its pending-transfer
// journal at pendingPath. utxo may be nil; when present, balance and
// coin-selection queries go through the index instead of rescanning
// the loaded snapshot. The maintainer rebuilds the index before
// raising the chain-modified event, so a wallet snapshotting after
// the event sees index and chain agree; at worst the index briefly
// trails the live chain, and every selection is still re-verified by
// the chain before a block carrying it is accepted.
func New(priv *ecdsa.PrivateKey, pendingPath string, utxo *blockchain.UTXOIndex) *Wallet {
	return &Wallet{
		priv:        priv,
		pubKeyBytes: ndcrypto.PublicKeyBytes(&priv.PublicKey),
		utxo:        utxo,
		pendingPath: pendingPath,
	}
}

// PubKeyBytes returns the wallet's raw wire-format public key.
func (w *Wallet) PubKeyBytes() []byte {
	return w.pubKeyBytes
}

// LoadTransactions scans bc's current branch, retaining only the
// wallet's unspent outputs, and reconciles the pending-transfer
// journal against what is now confirmed on chain. The scan order is
// the txn id's byte order, so repeated calls against an unchanged
// snapshot select the same coins in the same order.
func (w *Wallet) LoadTransactions(bc *blockchain.BlockChain) error {
	all := bc.Transactions()

	ids := make([][32]byte, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	coins := make([]ownedCoin, 0, len(ids))
	for _, id := range ids {
		lt := all[id]
		for i, o := range lt.Txn.Outputs {
			if o.Spent || !bytes.Equal(o.PubKey, w.pubKeyBytes) {
				continue
			}
			coins = append(coins, ownedCoin{txnID: id, index: uint32(i), amount: o.Amount})
		}
	}
	w.coins = coins

	return w.reconcilePending(all)
}

// reconcilePending drops any pending record whose txn_id now appears
// in the chain, rewriting the journal only when something changed.
func (w *Wallet) reconcilePending(all map[[32]byte]*blockchain.LinkedTransaction) error {
	recs, err := LoadPending(w.pendingPath)
	if err != nil {
		return err
	}

	kept := make([]PendingRecord, 0, len(recs))
	changed := false
	for _, rec := range recs {
		id, err := pendingTxnID(rec)
		if err != nil {
			return err
		}
		if _, confirmed := all[id]; confirmed {
			changed = true
			continue
		}
		kept = append(kept, rec)
	}
	if changed {
		if err := RewritePending(w.pendingPath, kept); err != nil {
			return err
		}
	}
	return nil
}

// FindCoins selects coins worth at least target, through the
// accelerator index when one is attached and otherwise by walking the
// loaded coins in order. It returns nil if the wallet's total falls
// short.
func (w *Wallet) FindCoins(target uint64) []Coin {
	coins, _ := w.findCoins(target)
	return coins
}

func (w *Wallet) findCoins(target uint64) ([]Coin, uint64) {
	if w.utxo != nil {
		total, inputs, err := w.utxo.FindSpendableOutputs(w.pubKeyBytes, target)
		if err == nil {
			if total < target {
				return nil, 0
			}
			out := make([]Coin, len(inputs))
			for i, in := range inputs {
				out[i] = Coin{TxnID: in.TxnID, Index: in.Index}
			}
			return out, total
		}
	}

	var sum uint64
	var out []Coin
	for _, c := range w.coins {
		out = append(out, Coin{TxnID: c.txnID, Index: c.index})
		sum += c.amount
		if sum >= target {
			return out, sum
		}
	}
	return nil, 0
}

// CreateTxn builds a signed transaction spending exactly enough of the
// wallet's loaded coins to pay amount to destPubKey, returning any
// excess to the wallet itself as a second output. It returns
// ErrInsufficientFunds (with no side effects) if the wallet's loaded
// coins fall short of amount.
func (w *Wallet) CreateTxn(destPubKey []byte, amount uint64) (*blockchain.Transaction, error) {
	coins, sum := w.findCoins(amount)
	if coins == nil {
		return nil, blockchain.ErrInsufficientFunds
	}

	inputs := make([]blockchain.TxnInput, len(coins))
	for i, c := range coins {
		inputs[i] = blockchain.TxnInput{TxnID: c.TxnID, Index: c.Index}
	}

	outputs := []blockchain.TxnOutput{{PubKey: destPubKey, Amount: amount}}
	if change := sum - amount; change > 0 {
		outputs = append(outputs, blockchain.TxnOutput{PubKey: w.pubKeyBytes, Amount: change})
	}

	txn := &blockchain.Transaction{Inputs: inputs, Outputs: outputs}
	if err := blockchain.SignTransaction(txn, w.priv); err != nil {
		return nil, errors.Wrap(err, "sign transfer")
	}
	return txn, nil
}

// GetBalance returns every transaction on bc's branch in which the
// wallet appears as either sender or recipient, ordered by txn id,
// and the wallet's total unspent balance — read from the accelerator
// index when one is attached, summed from the snapshot otherwise.
func (w *Wallet) GetBalance(bc *blockchain.BlockChain) ([]*blockchain.Transaction, uint64) {
	all := bc.Transactions()

	ids := make([][32]byte, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	var total uint64
	var involved []*blockchain.Transaction
	for _, id := range ids {
		lt := all[id]
		isInvolved := false

		for _, o := range lt.Txn.Outputs {
			if !bytes.Equal(o.PubKey, w.pubKeyBytes) {
				continue
			}
			isInvolved = true
			if !o.Spent {
				total += o.Amount
			}
		}

		for _, li := range lt.Inputs {
			pred, ok := all[li.TxnID]
			if !ok || int(li.Index) >= len(pred.Txn.Outputs) {
				continue
			}
			if bytes.Equal(pred.Txn.Outputs[li.Index].PubKey, w.pubKeyBytes) {
				isInvolved = true
			}
		}

		if isInvolved {
			involved = append(involved, lt.Txn)
		}
	}

	if w.utxo != nil {
		if idxTotal, err := w.utxo.GetBalance(w.pubKeyBytes); err == nil {
			total = idxTotal
		}
	}
	return involved, total
}

// AddPending appends a pending-transfer record for a transaction the
// wallet just created and broadcast, so a restart can reconcile it
// against the chain later. It assumes txn's first output is the
// payment (its own possible second output is change, not the payee).
func (w *Wallet) AddPending(txn *blockchain.Transaction) error {
	if len(txn.Outputs) == 0 {
		return errors.New("transaction has no outputs to record as pending")
	}
	rec := PendingRecord{
		TxnID:  hex.EncodeToString(txn.TxnID[:]),
		From:   hex.EncodeToString(w.pubKeyBytes),
		To:     hex.EncodeToString(txn.Outputs[0].PubKey),
		Amount: txn.Outputs[0].Amount,
	}
	return AppendPending(w.pendingPath, rec)
}

// Pending returns the wallet's currently unconfirmed transfer records.
func (w *Wallet) Pending() ([]PendingRecord, error) {
	return LoadPending(w.pendingPath)
}
