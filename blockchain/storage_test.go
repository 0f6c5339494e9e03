package blockchain_test

import (
	"testing"

	"github.com/jrundle/nd-coin/blockchain"
	"github.com/stretchr/testify/require"
)

func TestAppendBlockLoadChainRoundTrip(t *testing.T) {
	minerKey := genKey(t)
	genesis := mineGenesis(t, minerKey)
	block1 := mineBlock(t, genesis.BlockHash, 1, []*blockchain.Transaction{coinbaseTxn(t, minerKey)})

	dir := t.TempDir()
	require.NoError(t, blockchain.AppendBlock(dir, genesis))
	require.NoError(t, blockchain.AppendBlock(dir, block1))

	bc, err := blockchain.LoadChain(dir)
	require.NoError(t, err)

	head := bc.Head()
	require.NotNil(t, head)
	require.Equal(t, block1.BlockHash, head.Block.BlockHash)
	require.Equal(t, uint32(1), head.Block.Height)
}

func TestLoadChainStopsAtFirstMissingHeight(t *testing.T) {
	minerKey := genKey(t)
	genesis := mineGenesis(t, minerKey)
	block1 := mineBlock(t, genesis.BlockHash, 1, []*blockchain.Transaction{coinbaseTxn(t, minerKey)})
	block2 := mineBlock(t, block1.BlockHash, 2, []*blockchain.Transaction{coinbaseTxn(t, minerKey)})

	dir := t.TempDir()
	require.NoError(t, blockchain.AppendBlock(dir, genesis))
	// Height 1 never persisted; height 2 must not be reachable.
	require.NoError(t, blockchain.AppendBlock(dir, block2))

	bc, err := blockchain.LoadChain(dir)
	require.NoError(t, err)
	require.Equal(t, uint32(0), bc.Head().Block.Height)
}

func TestLoadChainEmptyDirHasNoHead(t *testing.T) {
	bc, err := blockchain.LoadChain(t.TempDir())
	require.NoError(t, err)
	require.Nil(t, bc.Head())
}
