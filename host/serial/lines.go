package serial

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"tofnode/bus"
)

// Exchanger executes a request on the node and sends the reply before the
// request's rate change takes effect.
type Exchanger interface {
	Exchange(ctx context.Context, req bus.Request, send func(bus.Response, error) error) error
}

// ServeLines reads newline-delimited JSON messages from port, runs them and
// writes one JSON reply line per answered request. Messages addressed to
// another ID are dropped. Read timeouts are not errors. id reports the
// node's current bus ID; its error ends the loop.
func ServeLines(ctx context.Context, port Port, node Exchanger, id func() (uint8, error)) error {
	r := bufio.NewReader(port)
	var pending []byte

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := r.ReadBytes('\n')
		pending = append(pending, chunk...)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrNoProgress) {
				continue
			}
			return err
		}

		line := bytes.TrimSpace(pending)
		pending = pending[:0]
		if len(line) == 0 {
			continue
		}

		self, err := id()
		if err != nil {
			return err
		}
		if err := serveLine(ctx, port, node, self, line); err != nil {
			return err
		}
	}
}

func serveLine(ctx context.Context, port Port, node Exchanger, id uint8, line []byte) error {
	req, err := bus.DecodeMessage(line, id)
	if err != nil {
		// Undecodable lines get no reply, like a frame with a bad checksum.
		return nil
	}
	if req.ID != id && req.ID != bus.BroadcastID {
		return nil
	}

	err = node.Exchange(ctx, req, func(resp bus.Response, reqErr error) error {
		if resp.Silent {
			return nil
		}
		out, err := bus.EncodeReply(resp, reqErr)
		if err != nil {
			return err
		}
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		if _, err := port.Write(append(out, '\n')); err != nil {
			return err
		}
		return port.Flush()
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
