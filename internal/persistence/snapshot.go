package persistence

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrCorruptSnapshot = errors.New("snapshot corrupt")

const (
	// opSelectDB opens the key-table section of a snapshot.
	opSelectDB = 0xFE
	// opResizeDB precedes the hash-table and expire-table sizes.
	opResizeDB = 0xFB
	// resizeHeaderLen covers the resize opcode, both one-byte table sizes
	// and the value-type byte of the first entry.
	resizeHeaderLen = 4
)

// Source provides the raw bytes of a snapshot file. A missing file must be
// reported with an error matching os.ErrNotExist.
type Source interface {
	ReadSnapshot(dir, name string) ([]byte, error)
}

// DirSource reads snapshots from the local filesystem.
type DirSource struct{}

func (DirSource) ReadSnapshot(dir, name string) ([]byte, error) {
	return os.ReadFile(SnapshotPath(dir, name))
}

func SnapshotPath(dir, name string) string {
	return filepath.Join(dir, name)
}

type SnapshotReader struct {
	src Source
}

func NewSnapshotReader(src Source) *SnapshotReader {
	if src == nil {
		src = DirSource{}
	}
	return &SnapshotReader{src: src}
}

// ListKeys returns the keys recorded in dir/name. found is false when no
// snapshot file exists.
//
// Only the first key of the first database is recovered; see ExtractKeys.
func (r *SnapshotReader) ListKeys(dir, name string) (keys []string, found bool, err error) {
	data, err := r.src.ReadSnapshot(dir, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read snapshot: %w", err)
	}
	keys, err = ExtractKeys(data)
	if err != nil {
		return nil, true, err
	}
	return keys, true, nil
}

// ExtractKeys performs a single best-effort scan of a snapshot: it finds
// the first database section, then its resize header, and reads the one
// length-prefixed key that follows. Values, further keys, further
// databases and the checksum are not interpreted. A snapshot without a
// database section yields no keys.
func ExtractKeys(data []byte) ([]string, error) {
	db := bytes.IndexByte(data, opSelectDB)
	if db < 0 {
		return []string{}, nil
	}
	resize := bytes.IndexByte(data[db+1:], opResizeDB)
	if resize < 0 {
		return []string{}, nil
	}
	pos := db + 1 + resize + resizeHeaderLen
	if pos >= len(data) {
		return nil, fmt.Errorf("%w: truncated key header", ErrCorruptSnapshot)
	}
	n := int(data[pos])
	start := pos + 1
	if start+n > len(data) {
		return nil, fmt.Errorf("%w: key length %d exceeds file", ErrCorruptSnapshot, n)
	}
	return []string{string(data[start : start+n])}, nil
}
