// Package bus is the device side of the register bus: it takes decoded
// requests, applies them to the register table and builds the status reply.
// Framing, addressing and checksums belong to the transport.
package bus

import (
	"errors"
	"fmt"
	"time"

	"tofnode/core"
)

// Op is a decoded bus instruction.
type Op uint8

const (
	OpPing         Op = 0x01
	OpRead         Op = 0x02
	OpWrite        Op = 0x03
	OpFactoryReset Op = 0x06
	OpReboot       Op = 0x08
)

// BroadcastID addresses every device on the bus. Broadcast requests are
// executed but never answered.
const BroadcastID = 0xFE

// Status return levels.
const (
	ReturnPingOnly  = 0 // only ping is answered
	ReturnReadsOnly = 1 // ping and read are answered
	ReturnAll       = 2
)

var (
	// ErrInstruction is returned for an unknown Op.
	ErrInstruction = errors.New("bus: unknown instruction")

	// ErrChecksum is returned for a request the transport flagged as
	// corrupt. It is not executed.
	ErrChecksum = errors.New("bus: checksum mismatch")
)

// Request is one decoded bus packet.
type Request struct {
	ID      uint8
	Op      Op
	Address uint8
	Length  uint8 // read length
	Payload []byte
	Corrupt bool // failed the transport's integrity check
}

// Response is the reply to a Request. When Silent is set the transport must
// not transmit anything.
type Response struct {
	ID     uint8
	Status uint8
	Data   []byte
	Delay  time.Duration // wait before transmitting
	Silent bool
}

// Link is the transport whose rate follows the baudrate register.
type Link interface {
	SetBaud(baud uint32) error
}

// StatusSource contributes bits to the status byte.
type StatusSource interface {
	Status() uint8
}

// Handler serves requests against a register table. It is not safe for
// concurrent use; Server serializes access when several transports share it.
type Handler struct {
	regs     *core.RegisterTable
	channels *core.ChannelSet
	link     Link
	extra    []StatusSource

	id          uint8
	returnDelay time.Duration
	returnLevel uint8
}

// NewHandler creates a handler. link may be nil when the transport has no
// configurable rate. extra status sources (the supply monitor) are ORed
// into every status byte.
func NewHandler(regs *core.RegisterTable, channels *core.ChannelSet, link Link, extra ...StatusSource) *Handler {
	h := &Handler{
		regs:     regs,
		channels: channels,
		link:     link,
		extra:    extra,
	}
	h.loadIdentity()
	return h
}

func (h *Handler) loadIdentity() {
	h.id = h.regs.Byte(core.RegID)
	h.returnDelay = returnDelay(h.regs.Byte(core.RegReturnDelayTime))
	h.returnLevel = h.regs.Byte(core.RegStatusReturnLevel)
}

// returnDelay converts the return delay register (2 us units).
func returnDelay(v byte) time.Duration {
	return time.Duration(v) * 2 * time.Microsecond
}

// ID returns the address the handler answers to.
func (h *Handler) ID() uint8 {
	return h.id
}

// Accepts reports whether a request addressed to id is for this device.
func (h *Handler) Accepts(id uint8) bool {
	return id == h.id || id == BroadcastID
}

// Handle executes req and builds the reply. Identity and rate changes made
// by the request are left pending until ApplyPending, so the transport can
// still send the reply with the old ID at the old rate.
func (h *Handler) Handle(req Request) (Response, error) {
	if req.Corrupt {
		return h.respond(req, nil, ErrChecksum), ErrChecksum
	}

	var (
		data   []byte
		reqErr error
	)

	switch req.Op {
	case OpPing:
	case OpRead:
		data = h.read(req.Address, req.Length)
	case OpWrite:
		reqErr = h.regs.Write(req.Address, req.Payload)
	case OpFactoryReset:
		reqErr = h.FactoryReset()
	case OpReboot:
		reqErr = h.SoftReset()
	default:
		reqErr = fmt.Errorf("%w 0x%02X", ErrInstruction, uint8(req.Op))
	}

	return h.respond(req, data, reqErr), reqErr
}

func (h *Handler) respond(req Request, data []byte, reqErr error) Response {
	return Response{
		ID:     h.id,
		Status: h.status(reqErr),
		Data:   data,
		Delay:  h.returnDelay,
		Silent: !h.answers(req),
	}
}

// Exchange handles req, passes the reply to send and then applies the
// pending side effects.
func (h *Handler) Exchange(req Request, send func(Response, error) error) error {
	resp, reqErr := h.Handle(req)
	sendErr := send(resp, reqErr)
	return errors.Join(sendErr, h.ApplyPending())
}

// read returns the requested span and resets the measure counter of every
// channel whose counter register was part of it.
func (h *Handler) read(addr, length uint8) []byte {
	data := h.regs.Read(addr, length)
	for _, ch := range []*core.SensorChannel{h.channels.Main(), h.channels.Aux()} {
		if intersects(int(addr), int(length), int(ch.Layout().MeasureCount), 1) {
			ch.ResetSampleCount()
		}
	}
	return data
}

// intersects reports whether [aStart, aStart+aSize) and [bStart,
// bStart+bSize) overlap.
func intersects(aStart, aSize, bStart, bSize int) bool {
	if aSize <= 0 || bSize <= 0 {
		return false
	}
	return aStart < bStart+bSize && bStart < aStart+aSize
}

func (h *Handler) answers(req Request) bool {
	if req.ID == BroadcastID {
		return false
	}
	switch h.returnLevel {
	case ReturnPingOnly:
		return req.Op == OpPing
	case ReturnReadsOnly:
		return req.Op == OpPing || req.Op == OpRead
	}
	return true
}

// Status returns the device status byte without a request error.
func (h *Handler) Status() uint8 {
	return h.status(nil)
}

func (h *Handler) status(reqErr error) uint8 {
	s := h.channels.Status()
	for _, src := range h.extra {
		s |= src.Status()
	}
	switch {
	case errors.Is(reqErr, ErrChecksum):
		s |= core.StatusChecksumError
	case errors.Is(reqErr, ErrInstruction):
		s |= core.StatusInstructionError
	case errors.Is(reqErr, core.ErrRange):
		s |= core.StatusRangeError
	}
	return s
}

// ApplyPending consumes the change flags raised by committed writes and
// applies their side effects once.
func (h *Handler) ApplyPending() error {
	if h.regs.TakeChanged(core.ChangedID) {
		h.id = h.regs.Byte(core.RegID)
	}
	if h.regs.TakeChanged(core.ChangedReturnDelay) {
		h.returnDelay = returnDelay(h.regs.Byte(core.RegReturnDelayTime))
	}
	if h.regs.TakeChanged(core.ChangedReturnLevel) {
		h.returnLevel = h.regs.Byte(core.RegStatusReturnLevel)
	}
	if h.regs.TakeChanged(core.ChangedBaudrate) && h.link != nil {
		baud := core.BaudFromCode(h.regs.Byte(core.RegBaudrate))
		if err := h.link.SetBaud(baud); err != nil {
			return fmt.Errorf("switch link to %d baud: %w", baud, err)
		}
	}
	return nil
}

// SoftReset reloads the table from the store and restarts both channels, as
// after a power cycle. Probe failures are returned but leave the device
// running.
func (h *Handler) SoftReset() error {
	h.channels.Stop()
	if err := h.regs.Init(); err != nil {
		return fmt.Errorf("reload registers: %w", err)
	}
	h.loadIdentity()
	if h.link != nil {
		if err := h.link.SetBaud(core.BaudFromCode(h.regs.Byte(core.RegBaudrate))); err != nil {
			return fmt.Errorf("restore link rate: %w", err)
		}
	}
	return h.channels.Start()
}

// FactoryReset writes the factory defaults to the store and soft resets.
func (h *Handler) FactoryReset() error {
	if err := h.regs.ResetToFactoryDefaults(); err != nil {
		return fmt.Errorf("factory reset: %w", err)
	}
	return h.SoftReset()
}
