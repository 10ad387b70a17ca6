// Register table: the single copy of device state exposed to the bus
package core

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrRange reports that at least one byte of an external write was rejected
// (address outside the table, read-only register, value outside the legal
// range, or table locked). Every other byte of the request was applied.
var ErrRange = errors.New("register range error")

// ChangeFlag names a register whose external modification needs a side
// effect outside the table.
type ChangeFlag uint8

const (
	ChangedID ChangeFlag = iota
	ChangedBaudrate
	ChangedReturnDelay
	ChangedReturnLevel
	changeFlagCount
)

// RegisterTable holds the current value of every register and mirrors the
// persisted ones into a PersistentStore.
//
// There is no internal locking: all calls must come from one logical owner.
type RegisterTable struct {
	data    [RegisterSize]byte
	store   PersistentStore
	changed [changeFlagCount]bool
}

// persistedSpan is one past the highest persisted address.
var persistedSpan = func() int {
	n := 0
	for addr, spec := range Schema {
		if spec.Persisted {
			n = addr + 1
		}
	}
	return n
}()

// NewRegisterTable creates a table backed by store. Init must be called
// before use.
func NewRegisterTable(store PersistentStore) *RegisterTable {
	return &RegisterTable{store: store}
}

// Init loads the table at boot. A store without the magic marker is first
// reset to factory defaults. Volatile registers start at zero except the
// enable registers, which mirror the auto-start register.
func (r *RegisterTable) Init() error {
	ok, err := r.checkMagic()
	if err != nil {
		return err
	}
	if !ok {
		if err := r.ResetToFactoryDefaults(); err != nil {
			return err
		}
	}

	buf := make([]byte, persistedSpan)
	if _, err := r.store.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("register table: load persisted area: %w", err)
	}

	for addr := range r.data {
		spec := Schema[addr]
		if spec.Persisted {
			r.data[addr] = clamp(buf[addr], spec)
		} else {
			r.data[addr] = clamp(0, spec)
		}
	}
	r.data[RegMainEnabled] = r.data[RegAutoStart]
	r.data[RegAuxEnabled] = r.data[RegAutoStart]

	r.changed = [changeFlagCount]bool{}
	return nil
}

// ResetToFactoryDefaults rewrites every persisted register with its schema
// default, then writes the magic marker.
func (r *RegisterTable) ResetToFactoryDefaults() error {
	buf := make([]byte, persistedSpan)
	for addr := range buf {
		spec := Schema[addr]
		if !spec.Persisted {
			continue
		}
		buf[addr] = spec.Default
		r.data[addr] = spec.Default
	}
	if _, err := r.store.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("register table: write factory defaults: %w", err)
	}
	if _, err := r.store.WriteAt(magic[:], MagicOffset); err != nil {
		return fmt.Errorf("register table: write magic marker: %w", err)
	}
	return nil
}

func (r *RegisterTable) checkMagic() (bool, error) {
	var buf [len(magic)]byte
	if _, err := r.store.ReadAt(buf[:], MagicOffset); err != nil {
		return false, fmt.Errorf("register table: read magic marker: %w", err)
	}
	return buf == magic, nil
}

// Read returns size bytes starting at addr. Bytes past the end of the table
// read as zero.
func (r *RegisterTable) Read(addr, size uint8) []byte {
	out := make([]byte, size)
	if int(addr) < RegisterSize {
		copy(out, r.data[addr:])
	}
	return out
}

// Write is the external (bus) write path. Each byte is checked on its own:
// rejected bytes leave the register unchanged, accepted bytes are committed
// and, when persisted, written through to the store before Write returns.
//
// The result is nil when every byte was applied. Otherwise it matches
// ErrRange, a store error, or both.
func (r *RegisterTable) Write(addr uint8, payload []byte) error {
	locked := r.data[RegLock] != 0
	rangeErr := false
	var storeErrs []error

	for i, v := range payload {
		a := int(addr) + i
		if a >= RegisterSize {
			rangeErr = true
			break
		}
		spec := Schema[a]
		if locked || !spec.Writable || v < spec.Min || v > spec.Max {
			rangeErr = true
			continue
		}

		r.data[a] = v
		if spec.Persisted {
			if _, err := r.store.WriteAt([]byte{v}, int64(a)); err != nil {
				storeErrs = append(storeErrs, fmt.Errorf("persist register 0x%02X: %w", a, err))
			}
		}
		r.markChanged(a)
	}

	if rangeErr {
		storeErrs = append(storeErrs, ErrRange)
	}
	return errors.Join(storeErrs...)
}

// WriteInternal is the trusted write path used by the acquisition code to
// publish live values. Values are clamped to the legal range; persisted
// registers and bytes past the end are skipped. Lock and writability are
// not consulted.
func (r *RegisterTable) WriteInternal(addr uint8, payload []byte) {
	for i, v := range payload {
		a := int(addr) + i
		if a >= RegisterSize {
			return
		}
		spec := Schema[a]
		if spec.Persisted {
			continue
		}
		r.data[a] = clamp(v, spec)
	}
}

// TakeChanged reports whether flag was raised since the last call and
// clears it.
func (r *RegisterTable) TakeChanged(flag ChangeFlag) bool {
	if flag >= changeFlagCount {
		return false
	}
	v := r.changed[flag]
	r.changed[flag] = false
	return v
}

func (r *RegisterTable) markChanged(addr int) {
	switch addr {
	case RegID:
		r.changed[ChangedID] = true
	case RegBaudrate:
		r.changed[ChangedBaudrate] = true
	case RegReturnDelayTime:
		r.changed[ChangedReturnDelay] = true
	case RegStatusReturnLevel:
		r.changed[ChangedReturnLevel] = true
	}
}

// Locked reports whether external writes are currently refused.
func (r *RegisterTable) Locked() bool {
	return r.data[RegLock] != 0
}

// Snapshot returns a copy of the whole table.
func (r *RegisterTable) Snapshot() [RegisterSize]byte {
	return r.data
}

// Byte returns one register.
func (r *RegisterTable) Byte(addr uint8) byte {
	if int(addr) >= RegisterSize {
		return 0
	}
	return r.data[addr]
}

// U16 returns a little-endian 16-bit register.
func (r *RegisterTable) U16(addr uint8) uint16 {
	return binary.LittleEndian.Uint16(r.Read(addr, 2))
}

// U32 returns a little-endian 32-bit register.
func (r *RegisterTable) U32(addr uint8) uint32 {
	return binary.LittleEndian.Uint32(r.Read(addr, 4))
}

// PutByteInternal writes one register through the trusted path.
func (r *RegisterTable) PutByteInternal(addr uint8, v byte) {
	r.WriteInternal(addr, []byte{v})
}

// PutU16Internal writes a little-endian 16-bit register through the trusted
// path.
func (r *RegisterTable) PutU16Internal(addr uint8, v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	r.WriteInternal(addr, buf[:])
}

func clamp(v byte, spec RegisterSpec) byte {
	if v < spec.Min {
		return spec.Min
	}
	if v > spec.Max {
		return spec.Max
	}
	return v
}
