// Package eeprom stores the persisted registers in a file on hosted builds.
package eeprom

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// FileStore is a core.PersistentStore backed by a regular file. A missing or
// short file reads as erased (0xFF). Every write is synced before WriteAt
// returns.
type FileStore struct {
	f    *os.File
	size int64
}

// Open opens or creates the store file. size bounds the addressable range.
func Open(path string, size int) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open eeprom file: %w", err)
	}
	return &FileStore{f: f, size: int64(size)}, nil
}

// ReadAt implements io.ReaderAt. Bytes past the end of the file read as
// 0xFF up to the store size.
func (s *FileStore) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= s.size {
		return 0, io.EOF
	}
	want := len(p)
	if rest := s.size - off; int64(want) > rest {
		want = int(rest)
	}

	n, err := s.f.ReadAt(p[:want], off)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("read eeprom file: %w", err)
	}
	for i := n; i < want; i++ {
		p[i] = 0xFF
	}
	if want < len(p) {
		return want, io.EOF
	}
	return want, nil
}

// WriteAt implements io.WriterAt.
func (s *FileStore) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > s.size {
		return 0, fmt.Errorf("eeprom write at %d+%d out of bounds", off, len(p))
	}

	// Pad a short file so that a hole does not read back as zeros.
	if st, err := s.f.Stat(); err == nil && st.Size() < off {
		pad := make([]byte, off-st.Size())
		for i := range pad {
			pad[i] = 0xFF
		}
		if _, err := s.f.WriteAt(pad, st.Size()); err != nil {
			return 0, fmt.Errorf("pad eeprom file: %w", err)
		}
	}

	n, err := s.f.WriteAt(p, off)
	if err != nil {
		return n, fmt.Errorf("write eeprom file: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return n, fmt.Errorf("sync eeprom file: %w", err)
	}
	return n, nil
}

// Close closes the file.
func (s *FileStore) Close() error {
	return s.f.Close()
}
