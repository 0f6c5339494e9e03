// Package ndcrypto wraps the handful of cryptographic primitives the
// rest of the node depends on: double-SHA-256 hashing and ECDSA
// signing over a SECP256k1-class curve.
package ndcrypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
)

// KeySize is the byte width of one coordinate (or one signature half)
// on the curve used throughout the wire protocol.
const KeySize = 32

// curve returns the fixed SECP256k1-class curve every key on this
// chain is generated against.
func curve() *btcec.KoblitzCurve {
	return btcec.S256()
}

// Hash returns the double-SHA-256 digest of data, the hash function
// every other invariant in this codebase (txn ids, block hashes,
// signature payloads) is built from.
func Hash(data []byte) [32]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// GenerateKey produces a fresh ECDSA private key on the node's fixed
// curve.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(curve(), rand.Reader)
}

// Sign signs digest (expected to already be a Hash output) with priv
// and returns the raw r‖s signature, each half zero-padded to
// KeySize bytes so the encoding is fixed-width on the wire.
func Sign(priv *ecdsa.PrivateKey, digest [32]byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		return nil, err
	}
	sig := make([]byte, 2*KeySize)
	r.FillBytes(sig[:KeySize])
	s.FillBytes(sig[KeySize:])
	return sig, nil
}

// Verify checks a raw r‖s signature against a public key and digest.
// It never panics: malformed keys or signatures simply fail to
// verify, matching the "verification must never throw" requirement.
func Verify(pub *ecdsa.PublicKey, digest [32]byte, sig []byte) bool {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return false
	}
	if len(sig) != 2*KeySize {
		return false
	}
	r := new(big.Int).SetBytes(sig[:KeySize])
	s := new(big.Int).SetBytes(sig[KeySize:])
	return safeVerify(pub, digest, r, s)
}

// safeVerify isolates the call into ecdsa.Verify behind a recover, since
// a pathological public key (off-curve, zero point) can make the
// underlying curve arithmetic panic; verification must degrade to
// "false", never crash the caller.
func safeVerify(pub *ecdsa.PublicKey, digest [32]byte, r, s *big.Int) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return ecdsa.Verify(pub, digest[:], r, s)
}
