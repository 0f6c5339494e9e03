package network

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrundle/nd-coin/blockchain"
	"github.com/pkg/errors"
)

// CatalogType and CatalogProject filter the directory's response down
// to this project's own peers.
const (
	CatalogType    = "crypto"
	CatalogProject = "nd-coin"
)

// directoryQueryTimeout bounds one directory HTTP round trip; the
// directory is best-effort, so a hung request must not block the
// caller indefinitely.
const directoryQueryTimeout = 5 * time.Second

// directoryEntry is the JSON shape one element of the directory's
// /query.json array takes.
type directoryEntry struct {
	Type        string `json:"type"`
	Owner       string `json:"owner"`
	Address     string `json:"address"`
	Port        int    `json:"port"`
	Project     string `json:"project"`
	PubKey        string  `json:"pub_key"`
	DisplayName   string  `json:"display_name"`
	LastHeardFrom float64 `json:"lastheardfrom"`
}

// DirectoryClient queries a catalog/directory HTTP endpoint for the
// current peer set.
type DirectoryClient struct {
	baseURL string
	client  *http.Client
}

// NewDirectoryClient returns a client against baseURL (e.g.
// "http://directory.example:8080").
func NewDirectoryClient(baseURL string) *DirectoryClient {
	return &DirectoryClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: directoryQueryTimeout},
	}
}

// Query performs one GET /query.json and returns the entries matching
// CatalogType and CatalogProject, decoded into blockchain.Peer values.
// Directory refresh is best-effort: callers should
// log and continue on error rather than treat it as fatal.
func (d *DirectoryClient) Query(ctx context.Context) ([]*blockchain.Peer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/query.json", nil)
	if err != nil {
		return nil, errors.Wrap(err, "build directory request")
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "query directory")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("directory returned status %s", resp.Status)
	}

	var entries []directoryEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, errors.Wrap(err, "decode directory response")
	}

	var peers []*blockchain.Peer
	for _, e := range entries {
		if e.Type != CatalogType || e.Project != CatalogProject {
			continue
		}
		raw, err := hex.DecodeString(e.PubKey)
		if err != nil {
			continue
		}
		peers = append(peers, &blockchain.Peer{
			PubKey:        raw,
			PubKeyHex:     e.PubKey,
			Address:       e.Address,
			Port:          e.Port,
			DisplayName:   e.DisplayName,
			LastHeardFrom: int64(e.LastHeardFrom),
		})
	}
	return peers, nil
}
