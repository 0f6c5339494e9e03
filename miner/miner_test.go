package miner_test

import (
	"testing"

	"github.com/jrundle/nd-coin/blockchain"
	"github.com/jrundle/nd-coin/miner"
	"github.com/jrundle/nd-coin/ndcrypto"
	"github.com/stretchr/testify/require"
)

func TestResetPendingTxnsInsertsSignedCoinbaseAtIndexZero(t *testing.T) {
	priv, err := ndcrypto.GenerateKey()
	require.NoError(t, err)

	m := miner.New(priv, miner.Increment)
	require.NoError(t, m.ResetPendingTxns())
	require.Equal(t, 1, m.NumPendingTxns())

	block := m.ComposeBlock([32]byte{}, 0)
	require.Len(t, block.Transactions, 1)
	coinbase := block.Transactions[0]
	require.True(t, coinbase.IsCoinbase())
	require.Equal(t, blockchain.ComputeTxnID(coinbase), coinbase.TxnID)
}

func TestAddPendingTxnAppendsAfterCoinbase(t *testing.T) {
	priv, err := ndcrypto.GenerateKey()
	require.NoError(t, err)

	m := miner.New(priv, miner.Random)
	require.NoError(t, m.ResetPendingTxns())

	txn := &blockchain.Transaction{Outputs: []blockchain.TxnOutput{{Amount: 1}}}
	m.AddPendingTxn(txn)
	require.Equal(t, 2, m.NumPendingTxns())

	block := m.ComposeBlock([32]byte{}, 1)
	require.Same(t, txn, block.Transactions[1])
}

func TestIncrementStrategyProducesZeroFirstAndCountsUp(t *testing.T) {
	priv, err := ndcrypto.GenerateKey()
	require.NoError(t, err)
	m := miner.New(priv, miner.Increment)

	first, ok := m.NextNonce()
	require.True(t, ok, "a genuine zero nonce must not be mistaken for search exhaustion")
	require.Equal(t, [32]byte{}, first)

	second, ok := m.NextNonce()
	require.True(t, ok)
	require.Equal(t, [32]byte{31: 1}, second)
}

func TestFindNonceProducesBlockSatisfyingPoW(t *testing.T) {
	priv, err := ndcrypto.GenerateKey()
	require.NoError(t, err)
	m := miner.New(priv, miner.Increment)
	require.NoError(t, m.ResetPendingTxns())

	block := m.ComposeBlock([32]byte{}, 0)
	stop := make(chan struct{})
	solved, ok := m.FindNonce(block, stop)
	require.True(t, ok)
	require.True(t, blockchain.SatisfiesPoW(solved.BlockHash))
	require.True(t, miner.ValidNonce(solved, solved.Nonce))
}

func TestFindNonceAbortsWhenStopClosed(t *testing.T) {
	priv, err := ndcrypto.GenerateKey()
	require.NoError(t, err)
	m := miner.New(priv, miner.Increment)
	require.NoError(t, m.ResetPendingTxns())

	block := m.ComposeBlock([32]byte{}, 0)
	stop := make(chan struct{})
	close(stop)
	_, ok := m.FindNonce(block, stop)
	require.False(t, ok)
}

func TestMinedBlockIsAcceptedByChain(t *testing.T) {
	priv, err := ndcrypto.GenerateKey()
	require.NoError(t, err)
	m := miner.New(priv, miner.Increment)
	require.NoError(t, m.ResetPendingTxns())

	block := m.ComposeBlock([32]byte{}, 0)
	solved, ok := m.FindNonce(block, make(chan struct{}))
	require.True(t, ok)

	bc := blockchain.New()
	result, err := bc.InsertBlock(solved)
	require.NoError(t, err)
	require.Equal(t, blockchain.Inserted, result)
	require.Equal(t, solved.BlockHash, bc.Head().Block.BlockHash)
}
