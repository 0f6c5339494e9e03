package wallet

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
)

// DisplayID derives a short, human-friendly identifier from a raw
// wire public key, for CLI output only. It is never part of the wire
// format, a hash input, or a signature payload — those always carry
// the raw hex public key. The derivation is the usual SHA-256 →
// RIPEMD-160 → Base58 address pipeline minus the version byte and
// checksum, since this is a display label, not a spendable address.
func DisplayID(pubKey []byte) string {
	shaHash := sha256.Sum256(pubKey)
	hasher := ripemd160.New()
	hasher.Write(shaHash[:])
	return base58.Encode(hasher.Sum(nil))
}
