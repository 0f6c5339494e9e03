package blockchain

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"math/big"

	"github.com/jrundle/nd-coin/ndcrypto"
	"github.com/pkg/errors"
)

// jsonTxnInput and jsonTxnOutput mirror the canonical wire shapes.
// Field declaration order is what Go's encoding/json honors
// for struct values, so a hand-written canonicalizer on top of tagged
// structs would be pure duplication for a format this small.
type jsonTxnInput struct {
	TxnID string `json:"txn_id"`
	Index uint32 `json:"index"`
}

type jsonTxnOutput struct {
	PubKey    string `json:"pub_key"`
	Amount    uint64 `json:"amount"`
	Signature string `json:"signature"`
}

type jsonTransaction struct {
	TxnID   string          `json:"txn_id"`
	Inputs  []jsonTxnInput  `json:"inputs"`
	Outputs []jsonTxnOutput `json:"outputs"`
}

type jsonBlock struct {
	Hash         string            `json:"hash"`
	PrevHash     string            `json:"prev_hash"`
	Height       uint32            `json:"height"`
	Nonce        *big.Int          `json:"nonce"`
	Transactions []jsonTransaction `json:"transactions"`
}

func toJSONInput(in TxnInput) jsonTxnInput {
	return jsonTxnInput{TxnID: hex.EncodeToString(in.TxnID[:]), Index: in.Index}
}

func toJSONOutput(out TxnOutput) jsonTxnOutput {
	return jsonTxnOutput{
		PubKey:    hex.EncodeToString(out.PubKey),
		Amount:    out.Amount,
		Signature: hex.EncodeToString(out.Signature),
	}
}

// inputsJSON and outputsJSON return the canonical JSON array encoding
// of a transaction's inputs or outputs, the two halves ComputeTxnID
// concatenates.
func inputsJSON(inputs []TxnInput) []byte {
	arr := make([]jsonTxnInput, len(inputs))
	for i, in := range inputs {
		arr[i] = toJSONInput(in)
	}
	b, _ := json.Marshal(arr)
	return b
}

func outputsJSON(outputs []TxnOutput) []byte {
	arr := make([]jsonTxnOutput, len(outputs))
	for i, out := range outputs {
		arr[i] = toJSONOutput(out)
	}
	b, _ := json.Marshal(arr)
	return b
}

// ComputeTxnID computes a transaction's id: double-SHA-256 of its
// canonical inputs JSON concatenated with its canonical outputs JSON.
func ComputeTxnID(t *Transaction) [32]byte {
	payload := append(inputsJSON(t.Inputs), outputsJSON(t.Outputs)...)
	return ndcrypto.Hash(payload)
}

// signInputsBytes concatenates each input's canonical JSON object
// back to back, with no surrounding array brackets — the byte string
// output signatures bind to. It is deliberately distinct from the
// array encoding ComputeTxnID hashes; a coinbase's zero inputs
// contribute nothing, so its outputs sign over the public key alone.
func signInputsBytes(inputs []TxnInput) []byte {
	var buf []byte
	for _, in := range inputs {
		b, _ := json.Marshal(toJSONInput(in))
		buf = append(buf, b...)
	}
	return buf
}

// OutputSignPayload computes the digest signed for output o within
// transaction t: double-SHA-256 of the per-input canonical JSON
// concatenation followed by o's raw public key bytes.
func OutputSignPayload(t *Transaction, o *TxnOutput) [32]byte {
	payload := append(signInputsBytes(t.Inputs), o.PubKey...)
	return ndcrypto.Hash(payload)
}

// SignTransaction signs every output of t with priv, setting each
// output's PubKey to the signer's own encoded key when it is not
// already set (the coinbase case) and computing TxnID afterward.
// Re-signing with identical inputs signs the same payloads, since each
// depends only on the inputs and the output's own pub_key, not on any
// prior signature. ndcrypto.Sign is randomized, so each call still
// produces new signature bytes and therefore a new TxnID.
func SignTransaction(t *Transaction, priv *ecdsa.PrivateKey) error {
	pubBytes := ndcrypto.PublicKeyBytes(&priv.PublicKey)
	for i := range t.Outputs {
		if len(t.Outputs[i].PubKey) == 0 {
			t.Outputs[i].PubKey = pubBytes
		}
		digest := OutputSignPayload(t, &t.Outputs[i])
		sig, err := ndcrypto.Sign(priv, digest)
		if err != nil {
			return errors.Wrap(err, "sign output")
		}
		t.Outputs[i].Signature = sig
	}
	t.TxnID = ComputeTxnID(t)
	return nil
}

// VerifyOutputSignatures checks every output's signature against the
// sender's public key: for ordinary transactions
// that is the consumed coin's own key (resolved by the caller per
// input); for a coinbase it is the coinbase output's own key. It
// returns false on the first failing output, never panics.
func VerifyOutputSignatures(t *Transaction, senderPub *ecdsa.PublicKey) bool {
	for i := range t.Outputs {
		digest := OutputSignPayload(t, &t.Outputs[i])
		if !ndcrypto.Verify(senderPub, digest, t.Outputs[i].Signature) {
			return false
		}
	}
	return true
}

// TransactionToJSON renders a single transaction in the same canonical
// shape used inside a block, for the wire's standalone "transaction"
// message.
func TransactionToJSON(t *Transaction) ([]byte, error) {
	jt := jsonTransaction{
		TxnID:   hex.EncodeToString(t.TxnID[:]),
		Inputs:  mapInputs(t.Inputs),
		Outputs: mapOutputs(t.Outputs),
	}
	return json.Marshal(jt)
}

// TransactionFromJSON parses a standalone canonical-JSON transaction
// message.
func TransactionFromJSON(data []byte) (*Transaction, error) {
	var jt jsonTransaction
	if err := json.Unmarshal(data, &jt); err != nil {
		return nil, errors.Wrap(err, "unmarshal transaction")
	}
	return transactionFromJSON(jt)
}

// ToCanonicalJSON renders a block as the canonical JSON line persisted
// to chain/<height> and sent on the wire.
func ToCanonicalJSON(b *Block) ([]byte, error) {
	txns := make([]jsonTransaction, len(b.Transactions))
	for i, t := range b.Transactions {
		txns[i] = jsonTransaction{
			TxnID:   hex.EncodeToString(t.TxnID[:]),
			Inputs:  mapInputs(t.Inputs),
			Outputs: mapOutputs(t.Outputs),
		}
	}
	jb := jsonBlock{
		Hash:         hex.EncodeToString(b.BlockHash[:]),
		PrevHash:     hex.EncodeToString(b.PrevHash[:]),
		Height:       b.Height,
		Nonce:        new(big.Int).SetBytes(b.Nonce[:]),
		Transactions: txns,
	}
	return json.Marshal(jb)
}

func mapInputs(inputs []TxnInput) []jsonTxnInput {
	out := make([]jsonTxnInput, len(inputs))
	for i, in := range inputs {
		out[i] = toJSONInput(in)
	}
	return out
}

func mapOutputs(outputs []TxnOutput) []jsonTxnOutput {
	out := make([]jsonTxnOutput, len(outputs))
	for i, o := range outputs {
		out[i] = toJSONOutput(o)
	}
	return out
}

// FromCanonicalJSON parses one canonical-JSON block line back into a
// Block.
func FromCanonicalJSON(data []byte) (*Block, error) {
	var jb jsonBlock
	if err := json.Unmarshal(data, &jb); err != nil {
		return nil, errors.Wrap(err, "unmarshal block")
	}
	b := &Block{Height: jb.Height}
	if err := decodeHex32(jb.Hash, &b.BlockHash); err != nil {
		return nil, errors.Wrap(err, "block hash")
	}
	if err := decodeHex32(jb.PrevHash, &b.PrevHash); err != nil {
		return nil, errors.Wrap(err, "prev hash")
	}
	if jb.Nonce == nil || jb.Nonce.Sign() < 0 || jb.Nonce.BitLen() > 256 {
		return nil, errors.New("nonce must be an unsigned 256-bit integer")
	}
	jb.Nonce.FillBytes(b.Nonce[:])
	b.Transactions = make([]*Transaction, len(jb.Transactions))
	for i, jt := range jb.Transactions {
		t, err := transactionFromJSON(jt)
		if err != nil {
			return nil, err
		}
		b.Transactions[i] = t
	}
	return b, nil
}

func transactionFromJSON(jt jsonTransaction) (*Transaction, error) {
	t := &Transaction{
		Inputs:  make([]TxnInput, len(jt.Inputs)),
		Outputs: make([]TxnOutput, len(jt.Outputs)),
	}
	if err := decodeHex32(jt.TxnID, &t.TxnID); err != nil {
		return nil, errors.Wrap(err, "txn id")
	}
	for i, ji := range jt.Inputs {
		var txnID [32]byte
		if err := decodeHex32(ji.TxnID, &txnID); err != nil {
			return nil, errors.Wrap(err, "input txn id")
		}
		t.Inputs[i] = TxnInput{TxnID: txnID, Index: ji.Index}
	}
	for i, jo := range jt.Outputs {
		pub, err := hex.DecodeString(jo.PubKey)
		if err != nil {
			return nil, errors.Wrap(err, "output pub key")
		}
		sig, err := hex.DecodeString(jo.Signature)
		if err != nil {
			return nil, errors.Wrap(err, "output signature")
		}
		t.Outputs[i] = TxnOutput{PubKey: pub, Amount: jo.Amount, Signature: sig}
	}
	return t, nil
}

func decodeHex32(s string, out *[32]byte) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != 32 {
		return errors.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return nil
}

// transactionsEqual reports structural equality, used by the
// serialization round-trip test.
func transactionsEqual(a, b *Transaction) bool {
	if a.TxnID != b.TxnID || len(a.Inputs) != len(b.Inputs) || len(a.Outputs) != len(b.Outputs) {
		return false
	}
	for i := range a.Inputs {
		if a.Inputs[i] != b.Inputs[i] {
			return false
		}
	}
	for i := range a.Outputs {
		if a.Outputs[i].Amount != b.Outputs[i].Amount ||
			!bytes.Equal(a.Outputs[i].PubKey, b.Outputs[i].PubKey) ||
			!bytes.Equal(a.Outputs[i].Signature, b.Outputs[i].Signature) {
			return false
		}
	}
	return true
}

// blocksEqual reports structural equality of two blocks, used by the
// serialization round-trip test.
func blocksEqual(a, b *Block) bool {
	if a.BlockHash != b.BlockHash || a.PrevHash != b.PrevHash || a.Height != b.Height || a.Nonce != b.Nonce {
		return false
	}
	if len(a.Transactions) != len(b.Transactions) {
		return false
	}
	for i := range a.Transactions {
		if !transactionsEqual(a.Transactions[i], b.Transactions[i]) {
			return false
		}
	}
	return true
}
