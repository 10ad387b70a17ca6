package bus

import (
	"context"
	"errors"
	"time"

	"tofnode/core"
)

type result struct {
	resp Response
	err  error
}

type call struct {
	fn    func() result
	reply chan result
}

// Server is the single owner of the register table on hosted builds. The
// scheduler's timers and every request or inspection run on the Run
// goroutine, one at a time.
type Server struct {
	handler *Handler
	sched   *core.Scheduler
	clock   core.Clock
	calls   chan call
}

// NewServer creates a server. Timers must be added to sched before Run.
func NewServer(h *Handler, sched *core.Scheduler, clock core.Clock) *Server {
	return &Server{
		handler: h,
		sched:   sched,
		clock:   clock,
		calls:   make(chan call),
	}
}

// Run dispatches due timers every tick and serves calls until ctx is done.
func (s *Server) Run(ctx context.Context, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	s.sched.Dispatch(s.clock.Millis())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sched.Dispatch(s.clock.Millis())
		case c := <-s.calls:
			c.reply <- c.fn()
		}
	}
}

// Do runs req on the server goroutine and applies its side effects before
// returning. Use Exchange when the reply must leave before a rate change.
func (s *Server) Do(ctx context.Context, req Request) (Response, error) {
	r, err := s.submit(ctx, func() result {
		var (
			resp   Response
			reqErr error
		)
		applyErr := s.handler.Exchange(req, func(rs Response, e error) error {
			resp, reqErr = rs, e
			return nil
		})
		return result{resp: resp, err: errors.Join(reqErr, applyErr)}
	})
	if err != nil {
		return Response{}, err
	}
	return r.resp, r.err
}

// Exchange runs req on the server goroutine and calls send with the reply
// before applying identity and rate changes.
func (s *Server) Exchange(ctx context.Context, req Request, send func(Response, error) error) error {
	r, err := s.submit(ctx, func() result {
		return result{err: s.handler.Exchange(req, send)}
	})
	if err != nil {
		return err
	}
	return r.err
}

// Exec runs fn on the server goroutine, for read-only inspection of the
// table and channels.
func (s *Server) Exec(ctx context.Context, fn func()) error {
	_, err := s.submit(ctx, func() result {
		fn()
		return result{}
	})
	return err
}

func (s *Server) submit(ctx context.Context, fn func() result) (result, error) {
	c := call{fn: fn, reply: make(chan result, 1)}
	select {
	case s.calls <- c:
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
	select {
	case r := <-c.reply:
		return r, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// Handler returns the underlying handler.
func (s *Server) Handler() *Handler {
	return s.handler
}
