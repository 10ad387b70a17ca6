package core

import (
	"bytes"
	"errors"
	"testing"
)

func newTestTable(t *testing.T) (*RegisterTable, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(PersistentStoreSize)
	regs := NewRegisterTable(store)
	if err := regs.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return regs, store
}

// failingStore accepts reads and rejects every write once armed.
type failingStore struct {
	*MemoryStore
	fail bool
}

func (f *failingStore) WriteAt(p []byte, off int64) (int, error) {
	if f.fail {
		return 0, errors.New("eeprom worn out")
	}
	return f.MemoryStore.WriteAt(p, off)
}

func TestInitFreshStoreWritesDefaults(t *testing.T) {
	regs, store := newTestTable(t)

	for addr, spec := range Schema {
		if !spec.Persisted {
			continue
		}
		if got := regs.Byte(uint8(addr)); got != spec.Default {
			t.Errorf("register 0x%02X = %d, want default %d", addr, got, spec.Default)
		}
		if got := store.Bytes()[addr]; got != spec.Default {
			t.Errorf("store 0x%02X = %d, want default %d", addr, got, spec.Default)
		}
	}

	if !bytes.Equal(store.Bytes()[MagicOffset:MagicOffset+4], magic[:]) {
		t.Errorf("magic marker not written: % X", store.Bytes()[MagicOffset:])
	}

	if got := regs.U16(RegModelNumber); got != ModelNumber {
		t.Errorf("model number = 0x%04X, want 0x%04X", got, ModelNumber)
	}
	if got := regs.U16(RegMainMaxRange); got != 700 {
		t.Errorf("main max range = %d, want 700", got)
	}
}

func TestInitKeepsInitialisedStore(t *testing.T) {
	store := NewMemoryStore(PersistentStoreSize)
	first := NewRegisterTable(store)
	if err := first.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := first.Write(RegID, []byte{42}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	writes := store.Writes

	second := NewRegisterTable(store)
	if err := second.Init(); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	if got := second.Byte(RegID); got != 42 {
		t.Errorf("id after reboot = %d, want 42", got)
	}
	if store.Writes != writes {
		t.Errorf("Init rewrote an initialised store (%d writes)", store.Writes-writes)
	}
}

func TestInitVolatileState(t *testing.T) {
	store := NewMemoryStore(PersistentStoreSize)
	regs := NewRegisterTable(store)
	if err := regs.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := regs.Write(RegAutoStart, []byte{0}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := regs.Write(RegLock, []byte{1}); err != nil {
		t.Fatalf("lock failed: %v", err)
	}

	if err := regs.Init(); err != nil {
		t.Fatalf("re-Init failed: %v", err)
	}
	if regs.Locked() {
		t.Error("lock survived a reboot")
	}
	if regs.Byte(RegMainEnabled) != 0 || regs.Byte(RegAuxEnabled) != 0 {
		t.Error("enable registers should mirror auto-start = 0")
	}

	regs.Write(RegAutoStart, []byte{1})
	regs.Init()
	if regs.Byte(RegMainEnabled) != 1 || regs.Byte(RegAuxEnabled) != 1 {
		t.Error("enable registers should mirror auto-start = 1")
	}
	for addr := PersistedAreaSize; addr < RegisterSize; addr++ {
		if addr == RegMainEnabled || addr == RegAuxEnabled {
			continue
		}
		if v := regs.Byte(uint8(addr)); v != 0 {
			t.Errorf("volatile register 0x%02X = %d after boot", addr, v)
		}
	}
}

func TestWriteReadLegalValues(t *testing.T) {
	regs, _ := newTestTable(t)

	for addr, spec := range Schema {
		if !spec.Writable || addr == RegLock {
			continue
		}
		for _, v := range []byte{spec.Min, spec.Max, spec.Min + (spec.Max-spec.Min)/2} {
			if err := regs.Write(uint8(addr), []byte{v}); err != nil {
				t.Fatalf("Write(0x%02X, %d) failed: %v", addr, v, err)
			}
			if got := regs.Read(uint8(addr), 1); got[0] != v {
				t.Errorf("Read(0x%02X) = %d, want %d", addr, got[0], v)
			}
		}
	}
}

func TestWritePartialFailure(t *testing.T) {
	regs, store := newTestTable(t)

	// return delay ok, return level out of range, main min range ok
	err := regs.Write(RegReturnDelayTime, []byte{10, 3, 40})
	if !errors.Is(err, ErrRange) {
		t.Fatalf("expected ErrRange, got %v", err)
	}

	if got := regs.Byte(RegReturnDelayTime); got != 10 {
		t.Errorf("return delay = %d, want 10", got)
	}
	if got := regs.Byte(RegStatusReturnLevel); got != 2 {
		t.Errorf("return level = %d, want unchanged 2", got)
	}
	if got := regs.Byte(RegMainMinRange); got != 40 {
		t.Errorf("main min range = %d, want 40", got)
	}

	if store.Bytes()[RegReturnDelayTime] != 10 || store.Bytes()[RegMainMinRange] != 40 {
		t.Error("committed bytes were not written through")
	}
	if store.Bytes()[RegStatusReturnLevel] != 2 {
		t.Error("rejected byte reached the store")
	}
}

func TestWriteReadOnlyRejected(t *testing.T) {
	regs, _ := newTestTable(t)

	if err := regs.Write(RegFirmwareVersion, []byte{9}); !errors.Is(err, ErrRange) {
		t.Errorf("firmware version write: expected ErrRange, got %v", err)
	}
	if regs.Byte(RegFirmwareVersion) != FirmwareVersion {
		t.Error("read-only register modified")
	}
}

func TestWritePastEnd(t *testing.T) {
	regs, _ := newTestTable(t)

	err := regs.Write(RegInputVoltage, []byte{0, 1, 0})
	if !errors.Is(err, ErrRange) {
		t.Fatalf("expected ErrRange, got %v", err)
	}
	if !regs.Locked() {
		t.Error("in-range lock byte should still be applied")
	}
}

func TestReadPastEnd(t *testing.T) {
	regs, _ := newTestTable(t)
	regs.PutByteInternal(RegInputVoltage, 82)

	got := regs.Read(RegInputVoltage, 4)
	want := []byte{82, 0, 0, 0}
	if !bytes.Equal(got, want) {
		t.Errorf("Read = % X, want % X", got, want)
	}

	if got := regs.Read(0xF0, 3); !bytes.Equal(got, []byte{0, 0, 0}) {
		t.Errorf("Read outside table = % X, want zeros", got)
	}
}

func TestLockBlocksExternalWrites(t *testing.T) {
	regs, _ := newTestTable(t)

	if err := regs.Write(RegLock, []byte{1}); err != nil {
		t.Fatalf("lock write failed: %v", err)
	}

	for addr, spec := range Schema {
		if !spec.Writable {
			continue
		}
		if err := regs.Write(uint8(addr), []byte{spec.Min}); !errors.Is(err, ErrRange) {
			t.Errorf("write to 0x%02X while locked: expected ErrRange, got %v", addr, err)
		}
	}
	if got := regs.Read(RegID, 1); got[0] != 1 {
		t.Errorf("read while locked = %d, want 1", got[0])
	}

	regs.PutByteInternal(RegLock, 0)
	if err := regs.Write(RegID, []byte{5}); err != nil {
		t.Errorf("write after unlock failed: %v", err)
	}
}

func TestWriteInternal(t *testing.T) {
	regs, _ := newTestTable(t)

	regs.PutU16Internal(RegMainRange, 1234)
	if got := regs.U16(RegMainRange); got != 1234 {
		t.Errorf("main range = %d, want 1234", got)
	}
	if err := regs.Write(RegMainRange, []byte{1}); !errors.Is(err, ErrRange) {
		t.Errorf("external write to live register: expected ErrRange, got %v", err)
	}

	regs.PutByteInternal(RegMainMCSLR, 255)
	if got := regs.Byte(RegMainMCSLR); got != MaxMeasureCount {
		t.Errorf("measure count = %d, want clamped %d", got, MaxMeasureCount)
	}

	regs.PutByteInternal(RegID, 77)
	if got := regs.Byte(RegID); got != 1 {
		t.Errorf("internal write touched persisted register: id = %d", got)
	}

	regs.WriteInternal(RegLock, []byte{1, 2, 3})
	if !regs.Locked() {
		t.Error("internal write to lock ignored")
	}
}

func TestChangeFlags(t *testing.T) {
	regs, _ := newTestTable(t)

	if regs.TakeChanged(ChangedID) {
		t.Fatal("flag raised after boot")
	}

	regs.Write(RegID, []byte{3, 254}) // baud code 254 is out of range
	if !regs.TakeChanged(ChangedID) {
		t.Error("id flag not raised")
	}
	if regs.TakeChanged(ChangedID) {
		t.Error("id flag not cleared after take")
	}
	if regs.TakeChanged(ChangedBaudrate) {
		t.Error("rejected baud write raised its flag")
	}

	regs.Write(RegReturnDelayTime, []byte{0, 1})
	if !regs.TakeChanged(ChangedReturnDelay) || !regs.TakeChanged(ChangedReturnLevel) {
		t.Error("return delay/level flags not raised")
	}
}

func TestResetToFactoryDefaults(t *testing.T) {
	regs, store := newTestTable(t)
	regs.Write(RegID, []byte{9})
	regs.Write(RegMainPeriod, []byte{50, 0, 0, 0})

	if err := regs.ResetToFactoryDefaults(); err != nil {
		t.Fatalf("ResetToFactoryDefaults failed: %v", err)
	}
	if regs.Byte(RegID) != 1 || regs.U32(RegMainPeriod) != 0 {
		t.Error("table not reset")
	}
	if store.Bytes()[RegID] != 1 {
		t.Error("store not reset")
	}
}

func TestWriteStoreFailure(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(PersistentStoreSize)}
	regs := NewRegisterTable(store)
	if err := regs.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	store.fail = true

	err := regs.Write(RegID, []byte{8})
	if err == nil {
		t.Fatal("expected store error")
	}
	if errors.Is(err, ErrRange) {
		t.Errorf("store failure reported as range error: %v", err)
	}

	if err := regs.Write(RegMainEnabled, []byte{0}); err != nil {
		t.Errorf("volatile write should not touch the store: %v", err)
	}
}
