package ndcrypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)

	digest := Hash([]byte("transfer 40 coins"))
	sig, err := Sign(priv, digest)
	require.NoError(t, err)

	require.True(t, Verify(&priv.PublicKey, digest, sig))
}

func TestVerifyRejectsTamperedDigest(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)

	digest := Hash([]byte("transfer 40 coins"))
	sig, err := Sign(priv, digest)
	require.NoError(t, err)

	tampered := Hash([]byte("transfer 400 coins"))
	require.False(t, Verify(&priv.PublicKey, tampered, sig))
}

func TestVerifyNeverPanicsOnMalformedInput(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)
	digest := Hash([]byte("x"))

	require.False(t, Verify(&priv.PublicKey, digest, nil))
	require.False(t, Verify(&priv.PublicKey, digest, []byte{0x01, 0x02}))
	require.False(t, Verify(nil, digest, make([]byte, 2*KeySize)))

	garbage := make([]byte, 2*KeySize)
	for i := range garbage {
		garbage[i] = 0xff
	}
	require.False(t, Verify(&priv.PublicKey, digest, garbage))
}

func TestPublicKeyBytesRoundTrip(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)

	raw := PublicKeyBytes(&priv.PublicKey)
	require.Len(t, raw, 2*KeySize)

	pub, err := PublicKeyFromBytes(raw)
	require.NoError(t, err)
	require.Equal(t, priv.PublicKey.X, pub.X)
	require.Equal(t, priv.PublicKey.Y, pub.Y)
}

func TestSavePEMLoadPEMRoundTrip(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "ecdsa_key")
	require.NoError(t, SavePEM(path, priv))

	loaded, err := LoadPEM(path)
	require.NoError(t, err)
	require.Equal(t, priv.D, loaded.D)
	require.Equal(t, priv.PublicKey.X, loaded.PublicKey.X)
	require.Equal(t, priv.PublicKey.Y, loaded.PublicKey.Y)
}

func TestLoadOrGenerateKeyPairPersists(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrGenerateKeyPair(dir)
	require.NoError(t, err)

	second, err := LoadOrGenerateKeyPair(dir)
	require.NoError(t, err)
	require.Equal(t, first.D, second.D)

	_, err = os.Stat(filepath.Join(dir, "ecdsa_key.pub"))
	require.NoError(t, err)
}
