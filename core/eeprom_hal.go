package core

import (
	"errors"
	"io"
)

// PersistentStore is the byte-addressable non-volatile memory backing the
// persisted registers. Offsets match register addresses; the magic marker
// sits at MagicOffset.
//
// Writes must be durable when WriteAt returns: the register table relies on
// it to report a committed write to the bus controller.
type PersistentStore interface {
	io.ReaderAt
	io.WriterAt
}

// MemoryStore is a RAM-backed PersistentStore. It is used by tests and by
// targets without usable non-volatile memory.
type MemoryStore struct {
	data []byte

	// Writes counts WriteAt calls.
	Writes int
}

// NewMemoryStore returns an erased store of the given size (0xFF filled, like
// a blank EEPROM).
func NewMemoryStore(size int) *MemoryStore {
	data := make([]byte, size)
	for i := range data {
		data[i] = 0xFF
	}
	return &MemoryStore{data: data}
}

// ReadAt implements io.ReaderAt.
func (m *MemoryStore) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt.
func (m *MemoryStore) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, errors.New("memory store: write out of bounds")
	}
	m.Writes++
	return copy(m.data[off:], p), nil
}

// Bytes exposes the raw content.
func (m *MemoryStore) Bytes() []byte {
	return m.data
}
