//go:build rp2040

package main

import (
	"machine"
	"time"

	"tofnode/bus"
)

const maxLine = 256

// uartLink carries newline-delimited JSON bus messages on a UART and
// follows the baudrate register.
type uartLink struct {
	uart *machine.UART
	tx   machine.Pin
	rx   machine.Pin
	line []byte
}

func newUARTLink(uart *machine.UART, tx, rx machine.Pin) *uartLink {
	return &uartLink{uart: uart, tx: tx, rx: rx, line: make([]byte, 0, maxLine)}
}

// SetBaud implements bus.Link.
func (l *uartLink) SetBaud(baud uint32) error {
	return l.uart.Configure(machine.UARTConfig{BaudRate: baud, TX: l.tx, RX: l.rx})
}

// Poll consumes buffered input and answers every complete line.
func (l *uartLink) Poll(h *bus.Handler) {
	for l.uart.Buffered() > 0 {
		c, err := l.uart.ReadByte()
		if err != nil {
			return
		}
		if c != '\n' {
			if len(l.line) < maxLine {
				l.line = append(l.line, c)
			}
			continue
		}
		l.serve(h, l.line)
		l.line = l.line[:0]
	}
}

func (l *uartLink) serve(h *bus.Handler, line []byte) {
	req, err := bus.DecodeMessage(line, h.ID())
	if err != nil || !h.Accepts(req.ID) {
		return
	}
	h.Exchange(req, func(resp bus.Response, reqErr error) error {
		if resp.Silent {
			return nil
		}
		out, err := bus.EncodeReply(resp, reqErr)
		if err != nil {
			return err
		}
		time.Sleep(resp.Delay)
		_, err = l.uart.Write(append(out, '\n'))
		return err
	})
}
