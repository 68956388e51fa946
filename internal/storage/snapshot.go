package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"dof_filter/internal/dof"
)

// SnapshotVersion is bumped whenever the snapshot layout changes.
const SnapshotVersion = 1

// ErrSnapshotVersion is returned when a snapshot was written by an
// incompatible version.
var ErrSnapshotVersion = errors.New("unsupported snapshot version")

// Snapshot is a parsed DOF file stored as zstd-compressed msgpack, so that
// later runs can skip fixed-width parsing.
type Snapshot struct {
	Version int          `msgpack:"v"`
	Created time.Time    `msgpack:"created"`
	Source  string       `msgpack:"source"`
	Stats   dof.Stats    `msgpack:"stats"`
	Records []dof.Record `msgpack:"records"`
}

// WriteSnapshot encodes s to w. Version is filled in.
func WriteSnapshot(w io.Writer, s Snapshot) error {
	s.Version = SnapshotVersion

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	if err := msgpack.NewEncoder(zw).Encode(&s); err != nil {
		_ = zw.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return zw.Close()
}

// ReadSnapshot decodes a snapshot written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("zstd reader: %w", err)
	}
	defer zr.Close()

	var s Snapshot
	if err := msgpack.NewDecoder(zr).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrSnapshotVersion, s.Version)
	}
	return s, nil
}

// SaveSnapshot writes s to path.
func SaveSnapshot(path string, s Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := WriteSnapshot(f, s); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadSnapshot reads a snapshot from path.
func LoadSnapshot(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return ReadSnapshot(f)
}
