package blockchain

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// blockFilePath returns the flat-file path a block of the given height
// is persisted under: chain/<height>, one canonical-JSON block per
// line (a height can hold more than one competing block across chain
// history, though only the active branch's block is ever the first
// line written during normal operation).
func blockFilePath(dir string, height uint32) string {
	return filepath.Join(dir, "chain", fmt.Sprintf("%d", height))
}

// AppendBlock persists block's canonical JSON as a new line under
// dir/chain/<height>.
func AppendBlock(dir string, block *Block) error {
	path := blockFilePath(dir, block.Height)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create chain directory")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open block file")
	}
	defer f.Close()

	data, err := ToCanonicalJSON(block)
	if err != nil {
		return errors.Wrap(err, "encode block")
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, "write block")
	}
	return nil
}

// LoadChain replays dir/chain/<height> files starting at height 0,
// inserting every block found at each height in file order, and stops
// at the first missing height. It is best-effort past genesis: a
// height whose file exists but whose every block is rejected (e.g. a
// branch that never became the persisted head) simply contributes no
// insertion, and loading continues to the next height unless the
// height itself is entirely absent.
func LoadChain(dir string) (*BlockChain, error) {
	bc := New()
	for height := uint32(0); ; height++ {
		path := blockFilePath(dir, height)
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "open chain file for height %d", height)
		}

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			block, err := FromCanonicalJSON(line)
			if err != nil {
				f.Close()
				return nil, errors.Wrapf(err, "decode block at height %d", height)
			}
			result, err := bc.InsertBlock(block)
			if result != Inserted && height == 0 {
				f.Close()
				return nil, errors.Wrap(err, "replay genesis block")
			}
			// A non-genesis block that doesn't insert (a branch that
			// never became the persisted head) contributes nothing
			// and replay continues.
		}
		scanErr := scanner.Err()
		f.Close()
		if scanErr != nil {
			return nil, errors.Wrapf(scanErr, "scan chain file for height %d", height)
		}
	}
	return bc, nil
}
