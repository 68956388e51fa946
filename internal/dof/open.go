package dof

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// ErrNoDataFile is returned when a zip archive holds no DOF file.
var ErrNoDataFile = errors.New("no .dat file in archive")

// stackCloser closes a decoder and then the file beneath it.
type stackCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens a DOF file for reading. Files ending in .gz or .zst are
// decompressed; a .zip archive yields its first .dat entry (the FAA
// distributes DOF.DAT and the state files zipped). The caller must Close the
// result.
func Open(path string) (io.ReadCloser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".zip" {
		return openZip(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dof file: %w", err)
	}

	switch ext {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		return &stackCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("zstd %s: %w", path, err)
		}
		dec := zr.IOReadCloser()
		return &stackCloser{Reader: dec, closers: []io.Closer{dec, f}}, nil
	}

	return f, nil
}

func openZip(path string) (io.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open dof file: %w", err)
	}

	var entry *zip.File
	for _, f := range zr.File {
		if strings.EqualFold(filepath.Ext(f.Name), ".dat") {
			entry = f
			break
		}
	}
	if entry == nil {
		_ = zr.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrNoDataFile)
	}

	rc, err := entry.Open()
	if err != nil {
		_ = zr.Close()
		return nil, fmt.Errorf("open %s in %s: %w", entry.Name, path, err)
	}
	return &stackCloser{Reader: rc, closers: []io.Closer{rc, zr}}, nil
}
