package wallet

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// PendingRecord is one line of the pending-transfer journal
// (wallet/pending-txns.txt): txn_id/from/to are hex,
// amount is a plain integer.
type PendingRecord struct {
	TxnID  string `json:"txn_id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// AppendPending writes rec as a new line to path, creating the file
// and its parent directory if necessary. The pending file is appended
// only by the wallet thread.
func AppendPending(path string, rec PendingRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create wallet directory")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open pending file")
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode pending record")
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "write pending record")
	}
	return nil
}

// LoadPending reads every record currently in path. A missing file is
// not an error: it simply means nothing is pending yet.
func LoadPending(path string) ([]PendingRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open pending file")
	}
	defer f.Close()

	var out []PendingRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec PendingRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, errors.Wrap(err, "decode pending record")
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan pending file")
	}
	return out, nil
}

// RewritePending truncates path and writes exactly recs back to it.
// This only happens during the wallet thread's
// reconciliation pass (LoadTransactions), never concurrently with an
// AppendPending.
func RewritePending(path string, recs []PendingRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create wallet directory")
	}
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open pending file")
	}
	defer f.Close()

	for _, rec := range recs {
		line, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrap(err, "encode pending record")
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return errors.Wrap(err, "write pending record")
		}
	}
	return nil
}

func pendingTxnID(rec PendingRecord) ([32]byte, error) {
	var id [32]byte
	raw, err := hex.DecodeString(rec.TxnID)
	if err != nil {
		return id, errors.Wrap(err, "decode pending txn id")
	}
	if len(raw) != 32 {
		return id, errors.Errorf("pending txn id must be 32 bytes, got %d", len(raw))
	}
	copy(id[:], raw)
	return id, nil
}
