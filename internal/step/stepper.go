// Package step turns a blocking, callback-driven optimizer run into a
// pull-based sequence of single iterations.
//
// A Stepper owns exactly one worker goroutine that executes the optimizer.
// The caller and the worker hand control back and forth over unbuffered
// channels, so at any instant only one of them is doing work: Next resumes
// the worker for one iteration and blocks until the worker yields the next
// point, finishes, or fails. Because of that strict alternation the
// objective (and any evaluation counter behind it) is never touched
// concurrently.
package step

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/cwbudde/portfolio/internal/opt"
)

// State is the lifecycle state of a Stepper
type State int

const (
	Created State = iota
	Running
	Suspended
	Finished
	Cancelled
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Finished:
		return "finished"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrTerminated is returned by Next once the optimizer has finished on its own.
var ErrTerminated = errors.New("optimizer terminated")

// errCancelled unwinds the optimizer after Stop; it never reaches the caller.
var errCancelled = errors.New("stepper cancelled")

// WorkerError reports a failure of the wrapped optimizer.
type WorkerError struct {
	Method string
	Err    error
}

func (e *WorkerError) Error() string {
	return "optimizer " + e.Method + " failed: " + e.Err.Error()
}

func (e *WorkerError) Unwrap() error { return e.Err }

type msgKind int

const (
	msgPoint msgKind = iota
	msgFinished
	msgFailed
)

type message struct {
	kind  msgKind
	point opt.Point
	err   error
}

type x0Reply struct {
	x   []float64
	err error
}

// Stepper is one live or finished optimizer run. It is not safe for
// concurrent use; a single caller drives it.
type Stepper struct {
	name  string
	state State
	last  opt.Point

	// progress channel pair: caller -> worker (true resumes, false stops)
	// and worker -> caller
	resume chan bool
	yield  chan message

	// restart channel pair, nil for plain optimizers
	x0req  chan opt.Point
	x0rep  chan x0Reply
	x0     []float64
	seeded bool
	seeder Seeder

	cancel context.CancelFunc
	done   chan struct{}

	// worker-owned
	reported  []float64
	cancelled bool
}

// Open resolves cfg and starts a stepper for it. Methods that cannot be
// stepped fail here, before any goroutine is started.
func Open(ctx context.Context, cfg opt.MethodConfig, f opt.Objective, x0 []float64, seeder Seeder) (*Stepper, error) {
	m, err := opt.Resolve(cfg)
	if err != nil {
		return nil, err
	}
	if m.Restarter != nil {
		if seeder == nil {
			return nil, fmt.Errorf("%s: restarting method needs a start point seeder", cfg.Name)
		}
		return NewRestarting(ctx, m.Name, f, x0, m.Restarter, seeder), nil
	}
	return New(ctx, m.Name, f, x0, m.Optimizer), nil
}

// New starts a stepper around a plain optimizer. The worker is parked
// until the first call to Next.
func New(ctx context.Context, name string, f opt.Objective, x0 []float64, o opt.Optimizer) *Stepper {
	s, wctx := newStepper(ctx, name, x0)
	go s.run(wctx, func(ctx context.Context) (opt.Point, error) {
		return o.Minimize(ctx, f, slices.Clone(x0), s.report)
	})
	return s
}

// NewRestarting starts a stepper around an optimizer with its own restart
// strategy. The first start point is x0; every later one is produced by
// seeder from the previous run's best point while the caller waits in Next.
func NewRestarting(ctx context.Context, name string, f opt.Objective, x0 []float64, r opt.RestartOptimizer, seeder Seeder) *Stepper {
	s, wctx := newStepper(ctx, name, x0)
	s.x0req = make(chan opt.Point)
	s.x0rep = make(chan x0Reply)
	s.seeder = seeder
	go s.run(wctx, func(ctx context.Context) (opt.Point, error) {
		return r.MinimizeRestarts(ctx, f, s.requestX0, s.report)
	})
	return s
}

func newStepper(ctx context.Context, name string, x0 []float64) (*Stepper, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return &Stepper{
		name:   name,
		state:  Created,
		last:   opt.Point{X: slices.Clone(x0)},
		resume: make(chan bool),
		yield:  make(chan message),
		x0:     slices.Clone(x0),
		cancel: cancel,
		done:   make(chan struct{}),
	}, ctx
}

// Name returns the method name
func (s *Stepper) Name() string { return s.name }

// State returns the current lifecycle state
func (s *Stepper) State() State { return s.state }

// Last returns the most recently reported point (x0 before the first step)
func (s *Stepper) Last() opt.Point { return s.last.Clone() }

// Next runs the optimizer for a single iteration and returns the point it
// reports. It returns ErrTerminated once the optimizer has finished (no
// Stop needed afterwards) and a *WorkerError if the optimizer failed.
func (s *Stepper) Next() (opt.Point, error) {
	if s.state == Finished || s.state == Cancelled {
		return opt.Point{}, ErrTerminated
	}

	s.state = Running
	s.resume <- true

	for {
		select {
		case msg := <-s.yield:
			switch msg.kind {
			case msgPoint:
				s.state = Suspended
				s.last = msg.point
				return msg.point.Clone(), nil
			case msgFinished:
				s.join(Finished)
				return opt.Point{}, ErrTerminated
			default:
				s.join(Finished)
				slog.Warn("Optimizer failed", "method", s.name, "error", msg.err)
				return opt.Point{}, &WorkerError{Method: s.name, Err: msg.err}
			}
		case last := <-s.x0req:
			s.x0rep <- s.nextX0(last)
		}
	}
}

// Stop cancels the run and waits for the worker goroutine to exit. It is
// idempotent and a no-op on a finished stepper.
func (s *Stepper) Stop() error {
	if s.state == Finished || s.state == Cancelled {
		return nil
	}
	s.cancel()
	s.resume <- false
	s.join(Cancelled)
	return nil
}

func (s *Stepper) join(state State) {
	<-s.done
	s.cancel()
	s.state = state
}

func (s *Stepper) nextX0(last opt.Point) x0Reply {
	if !s.seeded {
		s.seeded = true
		return x0Reply{x: slices.Clone(s.x0)}
	}
	x, err := s.seeder.Seed(last)
	if err == nil {
		slog.Debug("Supplied restart point", "method", s.name, "last_f", last.F)
	}
	return x0Reply{x: x, err: err}
}

// run is the worker body
func (s *Stepper) run(ctx context.Context, body func(context.Context) (opt.Point, error)) {
	defer close(s.done)

	// Parked until the first Next
	if !<-s.resume {
		return
	}

	final, err := s.invoke(ctx, body)
	if s.cancelled || errors.Is(err, errCancelled) {
		return
	}
	if err != nil {
		s.yield <- message{kind: msgFailed, err: err}
		return
	}

	// Surface a final result that was never reported as its own step
	if final.X != nil && !slices.Equal(final.X, s.reported) {
		if err := s.report(final); err != nil {
			return
		}
	}
	s.yield <- message{kind: msgFinished}
}

func (s *Stepper) invoke(ctx context.Context, body func(context.Context) (opt.Point, error)) (p opt.Point, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return body(ctx)
}

// report is the intercepted per-iteration callback. It hands the point to
// the caller and blocks until the next Next or Stop.
func (s *Stepper) report(p opt.Point) error {
	if s.cancelled {
		return errCancelled
	}
	s.reported = slices.Clone(p.X)
	s.yield <- message{kind: msgPoint, point: p.Clone()}
	if !<-s.resume {
		s.cancelled = true
		return errCancelled
	}
	return nil
}

// requestX0 asks the caller side for the next start point
func (s *Stepper) requestX0(last opt.Point) ([]float64, error) {
	if s.cancelled {
		return nil, errCancelled
	}
	s.x0req <- last.Clone()
	reply := <-s.x0rep
	return reply.x, reply.err
}
