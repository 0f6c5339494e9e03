package ndcrypto

import (
	"crypto/ecdsa"
	"encoding/pem"
	"math/big"
	"os"

	"github.com/pkg/errors"
)

// PublicKeyBytes encodes a public key as the fixed-width X‖Y wire
// format used by every TxnOutput.pub_key and Peer.pub_key field.
func PublicKeyBytes(pub *ecdsa.PublicKey) []byte {
	out := make([]byte, 2*KeySize)
	pub.X.FillBytes(out[:KeySize])
	pub.Y.FillBytes(out[KeySize:])
	return out
}

// PublicKeyFromBytes reconstructs a public key from the wire
// encoding. It does not validate that the point lies on the curve;
// callers that need that guarantee should rely on Verify returning
// false for a bogus point rather than trusting this constructor.
func PublicKeyFromBytes(raw []byte) (*ecdsa.PublicKey, error) {
	if len(raw) != 2*KeySize {
		return nil, errors.Errorf("public key must be %d bytes, got %d", 2*KeySize, len(raw))
	}
	return &ecdsa.PublicKey{
		Curve: curve(),
		X:     new(big.Int).SetBytes(raw[:KeySize]),
		Y:     new(big.Int).SetBytes(raw[KeySize:]),
	}, nil
}

// SavePEM writes a private key to disk as a PEM block holding just the
// private scalar D; the curve is fixed at build time, so the public
// key is always recomputed from D on load rather than stored
// alongside it. x509's EC key marshaling only recognizes the NIST
// curves, not this chain's SECP256k1-class curve, so a minimal
// custom block is used instead.
func SavePEM(path string, priv *ecdsa.PrivateKey) error {
	d := make([]byte, KeySize)
	priv.D.FillBytes(d)
	block := &pem.Block{Type: "ND-COIN PRIVATE KEY", Bytes: d}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0600)
}

// LoadPEM reads a private key previously written by SavePEM and
// rederives its public key.
func LoadPEM(path string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read key file")
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block found in key file")
	}
	d := new(big.Int).SetBytes(block.Bytes)
	x, y := curve().ScalarBaseMult(block.Bytes)
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve(), X: x, Y: y},
		D:         d,
	}, nil
}

// LoadOrGenerateKeyPair loads an existing key pair from keysDir, or
// generates and persists a fresh one if none exists yet.
func LoadOrGenerateKeyPair(keysDir string) (*ecdsa.PrivateKey, error) {
	privPath := keysDir + "/ecdsa_key"
	if _, err := os.Stat(privPath); err == nil {
		return LoadPEM(privPath)
	}
	if err := os.MkdirAll(keysDir, 0700); err != nil {
		return nil, errors.Wrap(err, "create keys directory")
	}
	priv, err := GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generate key pair")
	}
	if err := SavePEM(privPath, priv); err != nil {
		return nil, err
	}
	pubBlock := &pem.Block{Type: "PUBLIC KEY", Bytes: PublicKeyBytes(&priv.PublicKey)}
	if err := os.WriteFile(keysDir+"/ecdsa_key.pub", pem.EncodeToMemory(pubBlock), 0644); err != nil {
		return nil, errors.Wrap(err, "write public key file")
	}
	return priv, nil
}
