package network_test

import (
	"testing"

	"github.com/jrundle/nd-coin/blockchain"
	"github.com/jrundle/nd-coin/ndcrypto"
	"github.com/jrundle/nd-coin/network"
	"github.com/stretchr/testify/require"
)

func testBlock(t *testing.T) *blockchain.Block {
	t.Helper()
	priv, err := ndcrypto.GenerateKey()
	require.NoError(t, err)

	coinbase := &blockchain.Transaction{Outputs: []blockchain.TxnOutput{{Amount: blockchain.MiningReward}}}
	require.NoError(t, blockchain.SignTransaction(coinbase, priv))

	b := &blockchain.Block{Height: 3, Transactions: []*blockchain.Transaction{coinbase}}
	b.BlockHash = blockchain.ComputeBlockHash(b.PrevHash, b.Height, b.Nonce, b.Transactions)
	return b
}

func TestEncodeDecodeBlock(t *testing.T) {
	b := testBlock(t)
	frame, err := network.EncodeBlock(b)
	require.NoError(t, err)

	decoded, err := network.Decode(frame)
	require.NoError(t, err)
	require.NotNil(t, decoded.Block)
	require.Equal(t, b.BlockHash, decoded.Block.BlockHash)
	require.Equal(t, b.Height, decoded.Block.Height)
}

func TestEncodeDecodeBlockList(t *testing.T) {
	blocks := []*blockchain.Block{testBlock(t), testBlock(t)}
	frame, err := network.EncodeBlockList(blocks)
	require.NoError(t, err)

	decoded, err := network.Decode(frame)
	require.NoError(t, err)
	require.Len(t, decoded.BlockList, 2)
	require.Equal(t, blocks[0].BlockHash, decoded.BlockList[0].BlockHash)
	require.Equal(t, blocks[1].BlockHash, decoded.BlockList[1].BlockHash)
}

func TestEncodeDecodeTransaction(t *testing.T) {
	priv, err := ndcrypto.GenerateKey()
	require.NoError(t, err)
	txn := &blockchain.Transaction{Outputs: []blockchain.TxnOutput{{Amount: blockchain.MiningReward}}}
	require.NoError(t, blockchain.SignTransaction(txn, priv))

	frame, err := network.EncodeTransaction(txn)
	require.NoError(t, err)

	decoded, err := network.Decode(frame)
	require.NoError(t, err)
	require.NotNil(t, decoded.Transaction)
	require.Equal(t, txn.TxnID, decoded.Transaction.TxnID)
}

func TestEncodeDecodeBlockRequest(t *testing.T) {
	req := network.BlockRequest{PrevHash: "ab", Height: 7}
	frame, err := network.EncodeBlockRequest(req)
	require.NoError(t, err)

	decoded, err := network.Decode(frame)
	require.NoError(t, err)
	require.NotNil(t, decoded.BlockRequest)
	require.Equal(t, req, *decoded.BlockRequest)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := network.Decode([]byte(`{"type":"gossip","data":{}}`))
	require.ErrorIs(t, err, network.ErrUnknownMessageType)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := network.Decode([]byte(`{"type":`))
	require.ErrorIs(t, err, blockchain.ErrMalformedMessage)
}
