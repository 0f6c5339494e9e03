package blockchain

import "testing"

func TestLeadingZeroBits(t *testing.T) {
	cases := []struct {
		name string
		h    [32]byte
		want int
	}{
		{"all zero", [32]byte{}, 256},
		{"msb set", [32]byte{0x80}, 0},
		{"one leading zero byte", [32]byte{0x00, 0xFF}, 8},
		{"partial byte", [32]byte{0x01}, 7},
		{"partial mid byte", [32]byte{0x00, 0x0F}, 12},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := leadingZeroBits(c.h); got != c.want {
				t.Fatalf("leadingZeroBits(%x) = %d, want %d", c.h, got, c.want)
			}
		})
	}
}

func TestSatisfiesPoWBoundary(t *testing.T) {
	var justEnough [32]byte
	justEnough[2] = 0x40 // 17 leading zero bits then a 1, one short of MinZeros when MinZeros==18
	if SatisfiesPoW(justEnough) {
		t.Fatalf("hash with 17 leading zero bits unexpectedly satisfies MinZeros=%d", MinZeros)
	}

	var enough [32]byte
	// Two zero bytes (16 bits) plus 0x20 in the third byte puts the
	// first set bit at position 18, giving exactly 18 leading zeros.
	enough[2] = 0x20
	if !SatisfiesPoW(enough) {
		t.Fatalf("hash with >= %d leading zero bits should satisfy PoW", MinZeros)
	}
}

func TestComputeBlockHashDeterministic(t *testing.T) {
	txn := &Transaction{
		Outputs: []TxnOutput{{PubKey: []byte("k"), Amount: MiningReward}},
	}
	txn.TxnID = ComputeTxnID(txn)

	var prevHash, nonce [32]byte
	h1 := ComputeBlockHash(prevHash, 0, nonce, []*Transaction{txn})
	h2 := ComputeBlockHash(prevHash, 0, nonce, []*Transaction{txn})
	if h1 != h2 {
		t.Fatalf("ComputeBlockHash is not deterministic: %x != %x", h1, h2)
	}

	nonce[31] = 1
	h3 := ComputeBlockHash(prevHash, 0, nonce, []*Transaction{txn})
	if h1 == h3 {
		t.Fatalf("changing the nonce did not change the hash")
	}
}
