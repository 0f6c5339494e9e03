package network

import (
	"encoding/json"

	"github.com/jrundle/nd-coin/blockchain"
	"github.com/pkg/errors"
)

// The four wire message types.
const (
	TypeBlock        = "block"
	TypeBlockList    = "block-list"
	TypeTransaction  = "transaction"
	TypeBlockRequest = "block_request"
)

// envelope is the wire shape of every message: {"type": ..., "data": ...}.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// BlockRequest is the payload of a "block_request" message, used for
// incremental catch-up: a peer that received a
// block whose predecessor it doesn't have broadcasts one to its peers.
type BlockRequest struct {
	PrevHash string `json:"prev_hash"`
	Height   uint32 `json:"height"`
}

func marshalEnvelope(msgType string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "marshal message data")
	}
	return json.Marshal(envelope{Type: msgType, Data: raw})
}

// EncodeBlock wraps a single block in a "block" envelope using the
// chain's canonical JSON shape.
func EncodeBlock(b *blockchain.Block) ([]byte, error) {
	data, err := blockchain.ToCanonicalJSON(b)
	if err != nil {
		return nil, errors.Wrap(err, "encode block")
	}
	return marshalEnvelope(TypeBlock, json.RawMessage(data))
}

// EncodeBlockList wraps an ordered list of blocks in a "block-list"
// envelope, used when responding to catch-up requests with more than
// one block at a time.
func EncodeBlockList(blocks []*blockchain.Block) ([]byte, error) {
	parts := make([]json.RawMessage, len(blocks))
	for i, b := range blocks {
		data, err := blockchain.ToCanonicalJSON(b)
		if err != nil {
			return nil, errors.Wrap(err, "encode block list entry")
		}
		parts[i] = json.RawMessage(data)
	}
	return marshalEnvelope(TypeBlockList, parts)
}

// EncodeTransaction wraps a single transaction in a "transaction"
// envelope.
func EncodeTransaction(t *blockchain.Transaction) ([]byte, error) {
	data, err := blockchain.TransactionToJSON(t)
	if err != nil {
		return nil, errors.Wrap(err, "encode transaction")
	}
	return marshalEnvelope(TypeTransaction, json.RawMessage(data))
}

// EncodeBlockRequest wraps a block_request payload.
func EncodeBlockRequest(req BlockRequest) ([]byte, error) {
	return marshalEnvelope(TypeBlockRequest, req)
}

// Decoded is the result of parsing one wire frame: exactly one of its
// fields is set, matching the envelope's Type.
type Decoded struct {
	Block        *blockchain.Block
	BlockList    []*blockchain.Block
	Transaction  *blockchain.Transaction
	BlockRequest *BlockRequest
}

// Decode parses a raw frame payload into its envelope and, per the
// type field, the concrete message it carries. A malformed envelope or
// an unrecognized type both return ErrMalformedMessage /
// ErrUnknownMessageType rather than panicking — ingress is expected to
// drop the message and keep running.
func Decode(raw []byte) (Decoded, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Decoded{}, errors.Wrap(blockchain.ErrMalformedMessage, err.Error())
	}

	switch env.Type {
	case TypeBlock:
		b, err := blockchain.FromCanonicalJSON(env.Data)
		if err != nil {
			return Decoded{}, errors.Wrap(blockchain.ErrMalformedMessage, err.Error())
		}
		return Decoded{Block: b}, nil

	case TypeBlockList:
		var parts []json.RawMessage
		if err := json.Unmarshal(env.Data, &parts); err != nil {
			return Decoded{}, errors.Wrap(blockchain.ErrMalformedMessage, err.Error())
		}
		blocks := make([]*blockchain.Block, len(parts))
		for i, p := range parts {
			b, err := blockchain.FromCanonicalJSON(p)
			if err != nil {
				return Decoded{}, errors.Wrap(blockchain.ErrMalformedMessage, err.Error())
			}
			blocks[i] = b
		}
		return Decoded{BlockList: blocks}, nil

	case TypeTransaction:
		t, err := blockchain.TransactionFromJSON(env.Data)
		if err != nil {
			return Decoded{}, errors.Wrap(blockchain.ErrMalformedMessage, err.Error())
		}
		return Decoded{Transaction: t}, nil

	case TypeBlockRequest:
		var req BlockRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return Decoded{}, errors.Wrap(blockchain.ErrMalformedMessage, err.Error())
		}
		return Decoded{BlockRequest: &req}, nil

	default:
		return Decoded{}, errors.Wrapf(ErrUnknownMessageType, "type %q", env.Type)
	}
}
