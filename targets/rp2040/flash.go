//go:build rp2040

package main

import (
	"errors"
	"machine"

	"tofnode/core"
)

// flashStore keeps the persisted registers in the first erase block of the
// flash data area. Flash is erased per block, so every write rewrites the
// block from a RAM shadow.
type flashStore struct {
	shadow [core.PersistentStoreSize]byte
	loaded bool
}

func newFlashStore() *flashStore {
	return &flashStore{}
}

func (s *flashStore) load() error {
	if s.loaded {
		return nil
	}
	if _, err := machine.Flash.ReadAt(s.shadow[:], 0); err != nil {
		return err
	}
	s.loaded = true
	return nil
}

func (s *flashStore) ReadAt(p []byte, off int64) (int, error) {
	if err := s.load(); err != nil {
		return 0, err
	}
	if off < 0 || off >= int64(len(s.shadow)) {
		return 0, errors.New("flash store: read out of bounds")
	}
	return copy(p, s.shadow[off:]), nil
}

func (s *flashStore) WriteAt(p []byte, off int64) (int, error) {
	if err := s.load(); err != nil {
		return 0, err
	}
	if off < 0 || off+int64(len(p)) > int64(len(s.shadow)) {
		return 0, errors.New("flash store: write out of bounds")
	}
	copy(s.shadow[off:], p)

	if err := machine.Flash.EraseBlocks(0, 1); err != nil {
		return 0, err
	}
	// Writes must cover whole pages.
	page := machine.Flash.WriteBlockSize()
	buf := make([]byte, (int64(len(s.shadow))+page-1)/page*page)
	for i := range buf {
		buf[i] = 0xFF
	}
	copy(buf, s.shadow[:])
	if _, err := machine.Flash.WriteAt(buf, 0); err != nil {
		return 0, err
	}
	return len(p), nil
}
