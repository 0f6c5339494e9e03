package blockchain

// txnArena owns every LinkedTransaction currently reachable from the
// active branch, addressed by a stable integer index. Replacing
// pointer cycles between a transaction and the predecessors its
// inputs resolve to with an arena + index keeps the graph acyclic from Go's perspective, which matters once
// blocks are reverted and transactions need to be removed without
// leaving dangling back-references.
type txnArena struct {
	entries []*LinkedTransaction
	byTxnID map[[32]byte]int
	free    []int
}

func newTxnArena() *txnArena {
	return &txnArena{byTxnID: make(map[[32]byte]int)}
}

// put installs lt and returns its stable index, reusing a freed slot
// when one is available.
func (a *txnArena) put(lt *LinkedTransaction) int {
	var idx int
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
		a.entries[idx] = lt
	} else {
		idx = len(a.entries)
		a.entries = append(a.entries, lt)
	}
	a.byTxnID[lt.Txn.TxnID] = idx
	return idx
}

// get resolves a stable index back to its LinkedTransaction, or nil if
// the slot has been freed.
func (a *txnArena) get(idx int) *LinkedTransaction {
	if idx < 0 || idx >= len(a.entries) {
		return nil
	}
	return a.entries[idx]
}

// indexOf looks up the arena slot for a transaction id, if resident.
func (a *txnArena) indexOf(txnID [32]byte) (int, bool) {
	idx, ok := a.byTxnID[txnID]
	return idx, ok
}

// remove frees the slot for txnID, making it eligible for reuse.
func (a *txnArena) remove(txnID [32]byte) {
	idx, ok := a.byTxnID[txnID]
	if !ok {
		return
	}
	a.entries[idx] = nil
	delete(a.byTxnID, txnID)
	a.free = append(a.free, idx)
}
