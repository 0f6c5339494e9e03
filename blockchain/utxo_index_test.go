package blockchain_test

import (
	"testing"

	"github.com/jrundle/nd-coin/blockchain"
	"github.com/jrundle/nd-coin/ndcrypto"
	"github.com/stretchr/testify/require"
)

func openIndex(t *testing.T) *blockchain.UTXOIndex {
	t.Helper()
	idx, err := blockchain.OpenUTXOIndex(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestReindexAndGetBalance(t *testing.T) {
	minerKey := genKey(t)
	receiverKey := genKey(t)
	genesis := mineGenesis(t, minerKey)

	bc := blockchain.New()
	_, err := bc.InsertBlock(genesis)
	require.NoError(t, err)

	idx := openIndex(t)
	require.NoError(t, idx.Reindex(bc))

	minerPub := ndcrypto.PublicKeyBytes(&minerKey.PublicKey)
	balance, err := idx.GetBalance(minerPub)
	require.NoError(t, err)
	require.Equal(t, uint64(blockchain.MiningReward), balance)

	receiverPub := ndcrypto.PublicKeyBytes(&receiverKey.PublicKey)
	balance, err = idx.GetBalance(receiverPub)
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestReindexDropsSpentCoins(t *testing.T) {
	minerKey := genKey(t)
	receiverKey := genKey(t)
	genesis := mineGenesis(t, minerKey)

	bc := blockchain.New()
	_, err := bc.InsertBlock(genesis)
	require.NoError(t, err)

	receiverPub := ndcrypto.PublicKeyBytes(&receiverKey.PublicKey)
	transfer := &blockchain.Transaction{
		Inputs: []blockchain.TxnInput{{TxnID: genesis.Transactions[0].TxnID, Index: 0}},
		Outputs: []blockchain.TxnOutput{
			{PubKey: receiverPub, Amount: blockchain.MiningReward},
		},
	}
	require.NoError(t, blockchain.SignTransaction(transfer, minerKey))
	block1 := mineBlock(t, genesis.BlockHash, 1, []*blockchain.Transaction{coinbaseTxn(t, minerKey), transfer})
	_, err = bc.InsertBlock(block1)
	require.NoError(t, err)

	idx := openIndex(t)
	require.NoError(t, idx.Reindex(bc))

	minerPub := ndcrypto.PublicKeyBytes(&minerKey.PublicKey)
	balance, err := idx.GetBalance(minerPub)
	require.NoError(t, err)
	// The genesis coinbase was spent; only block 1's coinbase remains.
	require.Equal(t, uint64(blockchain.MiningReward), balance)

	balance, err = idx.GetBalance(receiverPub)
	require.NoError(t, err)
	require.Equal(t, uint64(blockchain.MiningReward), balance)
}

func TestFindSpendableOutputsStopsAtTarget(t *testing.T) {
	minerKey := genKey(t)
	genesis := mineGenesis(t, minerKey)
	block1 := mineBlock(t, genesis.BlockHash, 1, []*blockchain.Transaction{coinbaseTxn(t, minerKey)})

	bc := blockchain.New()
	_, err := bc.InsertBlock(genesis)
	require.NoError(t, err)
	_, err = bc.InsertBlock(block1)
	require.NoError(t, err)

	idx := openIndex(t)
	require.NoError(t, idx.Reindex(bc))

	minerPub := ndcrypto.PublicKeyBytes(&minerKey.PublicKey)
	total, inputs, err := idx.FindSpendableOutputs(minerPub, blockchain.MiningReward)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.Equal(t, uint64(blockchain.MiningReward), total)

	total, inputs, err = idx.FindSpendableOutputs(minerPub, blockchain.MiningReward+1)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	require.Equal(t, uint64(2*blockchain.MiningReward), total)
}
