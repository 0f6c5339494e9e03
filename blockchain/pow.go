package blockchain

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/jrundle/nd-coin/ndcrypto"
)

// blockHashInput builds the exact byte sequence a block hash commits
// to:
// prev_hash ‖ height_be32 ‖ nonce_be256 ‖ canonical_json(transactions).
func blockHashInput(prevHash [32]byte, height uint32, nonce [32]byte, transactions []*Transaction) []byte {
	buf := make([]byte, 0, 32+4+32+256)
	buf = append(buf, prevHash[:]...)

	var heightBE [4]byte
	binary.BigEndian.PutUint32(heightBE[:], height)
	buf = append(buf, heightBE[:]...)

	buf = append(buf, nonce[:]...)

	txnsJSON := make([]jsonTransaction, len(transactions))
	for i, t := range transactions {
		txnsJSON[i] = jsonTransaction{
			TxnID:   hex.EncodeToString(t.TxnID[:]),
			Inputs:  mapInputs(t.Inputs),
			Outputs: mapOutputs(t.Outputs),
		}
	}
	b, _ := json.Marshal(txnsJSON)
	return append(buf, b...)
}

// ComputeBlockHash recomputes a block's hash from its header fields
// and transaction list.
func ComputeBlockHash(prevHash [32]byte, height uint32, nonce [32]byte, transactions []*Transaction) [32]byte {
	return ndcrypto.Hash(blockHashInput(prevHash, height, nonce, transactions))
}

// leadingZeroBits counts the number of leading zero bits in h.
func leadingZeroBits(h [32]byte) int {
	count := 0
	for _, b := range h {
		if b == 0 {
			count += 8
			continue
		}
		for bit := 7; bit >= 0; bit-- {
			if b&(1<<uint(bit)) != 0 {
				return count
			}
			count++
		}
	}
	return count
}

// SatisfiesPoW reports whether h begins with at least MinZeros zero
// bits, the proof-of-work predicate every chain block must satisfy.
func SatisfiesPoW(h [32]byte) bool {
	return leadingZeroBits(h) >= MinZeros
}
