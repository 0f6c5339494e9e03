package network

import (
	"encoding/hex"
	"sync"

	"github.com/jrundle/nd-coin/blockchain"
)

// PeerSet is the node's in-memory view of the network, keyed by hex
// public key and keeping the most recently seen entry per key — the directory and catalog beacon are best-effort
// advisory sources, not a liveness guarantee.
type PeerSet struct {
	mu      sync.Mutex
	peers   map[string]*blockchain.Peer
	selfKey string
}

// NewPeerSet returns an empty peer set that will never keep an entry
// for selfPubKey (a node never treats itself as a remote peer).
func NewPeerSet(selfPubKey []byte) *PeerSet {
	return &PeerSet{
		peers:   make(map[string]*blockchain.Peer),
		selfKey: hex.EncodeToString(selfPubKey),
	}
}

// Update merges entries into the set, keeping the most recently
// heard-from entry per pub key and always excluding the node's own key.
func (ps *PeerSet) Update(entries []*blockchain.Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for _, p := range entries {
		if p.PubKeyHex == "" {
			p.PubKeyHex = hex.EncodeToString(p.PubKey)
		}
		if p.PubKeyHex == ps.selfKey {
			continue
		}
		existing, ok := ps.peers[p.PubKeyHex]
		if !ok || p.LastHeardFrom >= existing.LastHeardFrom {
			ps.peers[p.PubKeyHex] = p
		}
	}
}

// Snapshot returns the current peer set as a slice, safe to iterate
// without holding the set's lock.
func (ps *PeerSet) Snapshot() []*blockchain.Peer {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]*blockchain.Peer, 0, len(ps.peers))
	for _, p := range ps.peers {
		out = append(out, p)
	}
	return out
}
