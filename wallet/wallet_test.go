package wallet_test

import (
	"crypto/ecdsa"
	"path/filepath"
	"testing"

	"github.com/jrundle/nd-coin/blockchain"
	"github.com/jrundle/nd-coin/ndcrypto"
	"github.com/jrundle/nd-coin/wallet"
	"github.com/stretchr/testify/require"
)

func genKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	priv, err := ndcrypto.GenerateKey()
	require.NoError(t, err)
	return priv
}

func incNonce(n [32]byte) [32]byte {
	for i := 31; i >= 0; i-- {
		if n[i] == 0xFF {
			n[i] = 0
			continue
		}
		n[i]++
		break
	}
	return n
}

func mineBlock(t *testing.T, prevHash [32]byte, height uint32, txns []*blockchain.Transaction) *blockchain.Block {
	t.Helper()
	var nonce [32]byte
	for {
		hash := blockchain.ComputeBlockHash(prevHash, height, nonce, txns)
		if blockchain.SatisfiesPoW(hash) {
			return &blockchain.Block{
				PrevHash:     prevHash,
				Height:       height,
				Nonce:        nonce,
				Transactions: txns,
				BlockHash:    hash,
			}
		}
		nonce = incNonce(nonce)
	}
}

func coinbaseTxn(t *testing.T, priv *ecdsa.PrivateKey, amount uint64) *blockchain.Transaction {
	t.Helper()
	txn := &blockchain.Transaction{Outputs: []blockchain.TxnOutput{{Amount: amount}}}
	require.NoError(t, blockchain.SignTransaction(txn, priv))
	return txn
}

func TestLoadTransactionsAndBalanceAfterGenesis(t *testing.T) {
	minerPriv := genKey(t)
	genesis := mineBlock(t, [32]byte{}, 0, []*blockchain.Transaction{coinbaseTxn(t, minerPriv, blockchain.MiningReward)})

	bc := blockchain.New()
	_, err := bc.InsertBlock(genesis)
	require.NoError(t, err)

	w := wallet.New(minerPriv, filepath.Join(t.TempDir(), "pending-txns.txt"), nil)
	require.NoError(t, w.LoadTransactions(bc))

	_, total := w.GetBalance(bc)
	require.Equal(t, uint64(blockchain.MiningReward), total)
}

func TestCreateTxnInsufficientFunds(t *testing.T) {
	minerPriv := genKey(t)
	receiverPriv := genKey(t)
	genesis := mineBlock(t, [32]byte{}, 0, []*blockchain.Transaction{coinbaseTxn(t, minerPriv, blockchain.MiningReward)})

	bc := blockchain.New()
	_, err := bc.InsertBlock(genesis)
	require.NoError(t, err)

	w := wallet.New(minerPriv, filepath.Join(t.TempDir(), "pending-txns.txt"), nil)
	require.NoError(t, w.LoadTransactions(bc))

	_, err = w.CreateTxn(ndcrypto.PublicKeyBytes(&receiverPriv.PublicKey), blockchain.MiningReward+1)
	require.ErrorIs(t, err, blockchain.ErrInsufficientFunds)
}

func TestCreateTxnProducesChangeOutput(t *testing.T) {
	minerPriv := genKey(t)
	receiverPriv := genKey(t)
	genesis := mineBlock(t, [32]byte{}, 0, []*blockchain.Transaction{coinbaseTxn(t, minerPriv, blockchain.MiningReward)})

	bc := blockchain.New()
	_, err := bc.InsertBlock(genesis)
	require.NoError(t, err)

	w := wallet.New(minerPriv, filepath.Join(t.TempDir(), "pending-txns.txt"), nil)
	require.NoError(t, w.LoadTransactions(bc))

	txn, err := w.CreateTxn(ndcrypto.PublicKeyBytes(&receiverPriv.PublicKey), 40)
	require.NoError(t, err)
	require.Len(t, txn.Outputs, 2)
	require.Equal(t, uint64(40), txn.Outputs[0].Amount)
	require.Equal(t, uint64(blockchain.MiningReward-40), txn.Outputs[1].Amount)
}

func TestPendingReconciliationDropsConfirmedEntries(t *testing.T) {
	minerPriv := genKey(t)
	receiverPriv := genKey(t)
	genesis := mineBlock(t, [32]byte{}, 0, []*blockchain.Transaction{coinbaseTxn(t, minerPriv, blockchain.MiningReward)})

	bc := blockchain.New()
	_, err := bc.InsertBlock(genesis)
	require.NoError(t, err)

	pendingPath := filepath.Join(t.TempDir(), "pending-txns.txt")
	w := wallet.New(minerPriv, pendingPath, nil)
	require.NoError(t, w.LoadTransactions(bc))

	transfer, err := w.CreateTxn(ndcrypto.PublicKeyBytes(&receiverPriv.PublicKey), 40)
	require.NoError(t, err)
	require.NoError(t, w.AddPending(transfer))

	pending, err := w.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	block1 := mineBlock(t, genesis.BlockHash, 1, []*blockchain.Transaction{coinbaseTxn(t, minerPriv, blockchain.MiningReward), transfer})
	_, err = bc.InsertBlock(block1)
	require.NoError(t, err)

	require.NoError(t, w.LoadTransactions(bc))
	pending, err = w.Pending()
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestWalletQueriesAttachedIndex(t *testing.T) {
	minerPriv := genKey(t)
	receiverPriv := genKey(t)
	genesis := mineBlock(t, [32]byte{}, 0, []*blockchain.Transaction{coinbaseTxn(t, minerPriv, blockchain.MiningReward)})

	bc := blockchain.New()
	_, err := bc.InsertBlock(genesis)
	require.NoError(t, err)

	idx, err := blockchain.OpenUTXOIndex(t.TempDir())
	require.NoError(t, err)
	defer idx.Close()
	require.NoError(t, idx.Reindex(bc))

	w := wallet.New(minerPriv, filepath.Join(t.TempDir(), "pending-txns.txt"), idx)
	require.NoError(t, w.LoadTransactions(bc))

	coins := w.FindCoins(blockchain.MiningReward)
	require.Len(t, coins, 1)
	require.Equal(t, genesis.Transactions[0].TxnID, coins[0].TxnID)
	require.Nil(t, w.FindCoins(blockchain.MiningReward+1))

	_, total := w.GetBalance(bc)
	require.Equal(t, uint64(blockchain.MiningReward), total)

	txn, err := w.CreateTxn(ndcrypto.PublicKeyBytes(&receiverPriv.PublicKey), 40)
	require.NoError(t, err)
	require.Len(t, txn.Outputs, 2)
	require.Equal(t, uint64(blockchain.MiningReward-40), txn.Outputs[1].Amount)
	require.NoError(t, bc.VerifyTransaction(txn, false))
}
