// Package population manages a set of independently stepped optimizer
// instances sharing one benchmark function.
package population

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"slices"

	"github.com/cwbudde/portfolio/internal/bench"
	"github.com/cwbudde/portfolio/internal/opt"
	"github.com/cwbudde/portfolio/internal/replay"
	"github.com/cwbudde/portfolio/internal/step"
	"github.com/cwbudde/portfolio/internal/store"
)

const (
	// DefaultMinEvals is the evaluation budget a single StepOne call spends
	// at minimum
	DefaultMinEvals = 100
	// InitialValue is the value of a member that has not stepped yet
	InitialValue = 1e10
	// maxIdleRestarts bounds restarts in one StepOne call that produce no point
	maxIdleRestarts = 100
)

// ErrStopped is returned by StepOne for a member without a backend, after
// Stop or after a failed restart.
var ErrStopped = errors.New("member has no running backend")

// Listener is notified of member lifecycle events.
type Listener interface {
	// MemberRestarted is called after member i got a fresh backend
	MemberRestarted(i int)
	// MemberAdded is called after member i was appended
	MemberAdded(i int)
}

// Recorder receives one progress record per completed step.
// *store.ProgressWriter implements it.
type Recorder interface {
	Write(rec store.ProgressRecord) error
}

// Config describes how members are built.
type Config struct {
	// Methods are assigned to members round-robin
	Methods []string
	// Params holds per-method parameters keyed by method name
	Params map[string]map[string]float64
	// Seeder names the restart point seeder for restarting methods
	Seeder string
	// MinEvals is the minimum evaluation spend per StepOne call
	MinEvals int
	// ReplayDir holds <method>.mdat replay sources; empty disables replay
	ReplayDir string
	// ReplayRecord selects the run section inside replay sources
	ReplayRecord int
	Seed         int64
}

// Member is one population slot.
type Member struct {
	Method     string
	Point      []float64
	Value      float64
	Iterations int

	steps  int
	spent  int
	live   *step.Stepper
	replay *replay.Sequence
}

// Replaying reports whether the member is backed by a replay sequence
func (m *Member) Replaying() bool { return m.replay != nil }

// Population is an ordered set of members. The member index is its
// identity. Not safe for concurrent use.
type Population struct {
	ctx       context.Context
	fn        bench.Tracked
	cfg       Config
	rng       *rand.Rand
	members   []*Member
	listeners []Listener
	recorder  Recorder

	// TotalSteps counts StepOne calls, TotalIterations counts EndIter calls
	TotalSteps      int
	TotalIterations int
}

// Option configures a Population
type Option func(*Population)

// WithRecorder writes a progress record for every completed step
func WithRecorder(r Recorder) Option {
	return func(p *Population) { p.recorder = r }
}

// WithListener subscribes l to member events
func WithListener(l Listener) Option {
	return func(p *Population) { p.listeners = append(p.listeners, l) }
}

// New creates a population of k members. Every method is checked before
// any member is started, so unsupported methods fail without leaving
// goroutines behind.
func New(ctx context.Context, fn bench.Tracked, k int, cfg Config, opts ...Option) (*Population, error) {
	if k <= 0 {
		return nil, fmt.Errorf("population size must be positive, got %d", k)
	}
	if len(cfg.Methods) == 0 {
		return nil, errors.New("population needs at least one method")
	}
	for _, name := range cfg.Methods {
		if err := opt.Check(name); err != nil {
			return nil, err
		}
	}
	if cfg.MinEvals <= 0 {
		cfg.MinEvals = DefaultMinEvals
	}
	if cfg.Seeder == "" {
		cfg.Seeder = "uniform"
	}

	p := &Population{
		ctx: ctx,
		fn:  fn,
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
	for _, o := range opts {
		o(p)
	}

	for i := 0; i < k; i++ {
		m := &Member{Method: p.methodFor(i), Point: p.randomPoint(), Value: InitialValue}
		p.members = append(p.members, m)
		if err := p.attach(i); err != nil {
			p.Stop()
			return nil, err
		}
	}

	slog.Info("Population created", "members", k, "methods", cfg.Methods, "function_dim", fn.Dim())
	return p, nil
}

// AddListener subscribes l to member events
func (p *Population) AddListener(l Listener) {
	p.listeners = append(p.listeners, l)
}

// Len returns the number of members
func (p *Population) Len() int { return len(p.members) }

// Member returns member i. The returned value must not be modified.
func (p *Population) Member(i int) *Member { return p.members[i] }

// Function returns the shared benchmark function
func (p *Population) Function() bench.Tracked { return p.fn }

// Values returns a copy of every member's current value
func (p *Population) Values() []float64 {
	values := make([]float64, len(p.members))
	for i, m := range p.members {
		values[i] = m.Value
	}
	return values
}

// Iterations returns the member-local iteration count, reset on restart
func (p *Population) Iterations(i int) int { return p.members[i].Iterations }

// Steps returns how many steps slot i has completed. Unlike Iterations it
// never decreases.
func (p *Population) Steps(i int) int { return p.members[i].steps }

// Spent returns the evaluations slot i has consumed across restarts
func (p *Population) Spent(i int) int { return p.members[i].spent }

// StepOne advances member i by at least one optimizer iteration and keeps
// stepping until the call has spent MinEvals evaluations. A member whose
// optimizer terminates is restarted and the call goes on with the fresh
// backend. Returns the best point seen during the call (x is nil for
// replayed members) and its value.
func (p *Population) StepOne(i int) ([]float64, float64, error) {
	if i < 0 || i >= len(p.members) {
		return nil, 0, fmt.Errorf("member index %d out of range [0,%d)", i, len(p.members))
	}
	m := p.members[i]
	if m.live == nil && m.replay == nil {
		return nil, 0, fmt.Errorf("member %d (%s): %w", i, m.Method, ErrStopped)
	}
	base := p.fn.Spent()
	defer func() { m.spent += p.fn.Spent() - base }()

	if m.replay != nil {
		return p.stepReplay(i)
	}
	return p.stepLive(i)
}

func (p *Population) stepLive(i int) ([]float64, float64, error) {
	m := p.members[i]
	base := p.fn.Spent()

	var bestX []float64
	bestY := math.Inf(1)
	stepped := false
	idle := 0
	for !stepped || p.fn.Spent() < base+p.cfg.MinEvals {
		if err := p.ctx.Err(); err != nil {
			return nil, 0, err
		}

		pt, err := m.live.Next()
		if errors.Is(err, step.ErrTerminated) {
			// Local optimum: nothing was computed for this call on the new
			// backend yet, so keep going
			idle++
			if idle > maxIdleRestarts {
				return nil, 0, fmt.Errorf("member %d (%s): %d restarts without progress", i, m.Method, idle-1)
			}
			if err := p.RestartOne(i); err != nil {
				return nil, 0, err
			}
			if m.live == nil {
				if stepped {
					break
				}
				return p.stepReplay(i)
			}
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("member %d (%s): %w", i, m.Method, err)
		}

		idle = 0
		m.Point = pt.X
		if !stepped || pt.F < bestY {
			bestX, bestY = pt.X, pt.F
		}
		stepped = true
	}

	m.Value = bestY
	if err := p.completeStep(i, m.Point); err != nil {
		return nil, 0, err
	}
	return slices.Clone(bestX), bestY, nil
}

func (p *Population) stepReplay(i int) ([]float64, float64, error) {
	m := p.members[i]
	orig := m.Value
	st := m.replay.Next()
	m.Value = st.Y

	// Account for the evaluations the recorded step spent, interpolating
	// between the old and new value
	ys := replay.Interpolate(orig, st.Y, st.Evaluations, p.fn.Precision(), p.fn.Target())
	p.fn.Inject(ys)

	if err := p.completeStep(i, nil); err != nil {
		return nil, 0, err
	}
	return nil, st.Y, nil
}

func (p *Population) completeStep(i int, x []float64) error {
	m := p.members[i]
	m.Iterations++
	m.steps++
	p.TotalSteps++

	if p.recorder == nil {
		return nil
	}
	rec := store.ProgressRecord{
		Evaluations:     p.fn.Spent(),
		Iteration:       p.TotalIterations,
		Member:          i,
		Method:          m.Method,
		MemberIteration: m.Iterations,
		Delta:           m.Value - p.fn.Optimum(),
		X:               slices.Clone(x),
	}
	if err := p.recorder.Write(rec); err != nil {
		return fmt.Errorf("failed to record step of member %d: %w", i, err)
	}
	return nil
}

// RestartOne reinitializes member i at a fresh random point. The old
// backend is stopped and joined before the new one is created.
func (p *Population) RestartOne(i int) error {
	m := p.members[i]
	if err := m.stopBackend(); err != nil {
		slog.Warn("Member backend failed while stopping", "member", i, "method", m.Method, "error", err)
	}

	m.Point = p.randomPoint()
	m.Value = InitialValue
	m.Iterations = 0
	if err := p.attach(i); err != nil {
		return err
	}

	slog.Debug("Member restarted", "member", i, "method", m.Method, "evaluations", p.fn.Spent())
	for _, l := range p.listeners {
		l.MemberRestarted(i)
	}
	return nil
}

// Add appends a new member and returns its index.
func (p *Population) Add() (int, error) {
	i := len(p.members)
	m := &Member{Method: p.methodFor(i), Point: p.randomPoint(), Value: InitialValue}
	p.members = append(p.members, m)
	if err := p.attach(i); err != nil {
		p.members = p.members[:i]
		return -1, err
	}

	slog.Debug("Member added", "member", i, "method", m.Method)
	for _, l := range p.listeners {
		l.MemberAdded(i)
	}
	return i, nil
}

// EndIter marks the end of one portfolio iteration.
func (p *Population) EndIter() {
	p.TotalIterations++
}

// Stop stops every member, waiting for all worker goroutines to exit.
func (p *Population) Stop() error {
	var errs []error
	for i, m := range p.members {
		if err := m.stopBackend(); err != nil {
			errs = append(errs, fmt.Errorf("member %d (%s): %w", i, m.Method, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Member) stopBackend() error {
	m.replay = nil
	if m.live == nil {
		return nil
	}
	err := m.live.Stop()
	m.live = nil
	return err
}

func (p *Population) methodFor(i int) string {
	return p.cfg.Methods[i%len(p.cfg.Methods)]
}

// randomPoint draws uniformly from the bounding box shrunk by one in every
// coordinate ([-5,5] for the default box)
func (p *Population) randomPoint() []float64 {
	lower, upper := p.fn.Bounds()
	x := make([]float64, len(lower))
	for j := range x {
		lo, hi := lower[j]+1, upper[j]-1
		if hi <= lo {
			lo, hi = lower[j], upper[j]
		}
		x[j] = lo + p.rng.Float64()*(hi-lo)
	}
	return x
}

// attach creates the backend of member i: a replay sequence when one is
// recorded for its method, a live stepper otherwise.
func (p *Population) attach(i int) error {
	m := p.members[i]

	if p.cfg.ReplayDir != "" {
		seq, err := replay.Open(p.cfg.ReplayDir, m.Method, p.cfg.ReplayRecord, p.fn.Optimum())
		if err == nil {
			m.replay = seq
			return nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("member %d: %w", i, err)
		}
	}

	lower, upper := p.fn.Bounds()
	cfg := opt.MethodConfig{
		Name:   m.Method,
		Lower:  lower,
		Upper:  upper,
		Params: p.cfg.Params[m.Method],
		Seed:   p.rng.Int63(),
	}
	seeder, err := step.NewSeeder(p.cfg.Seeder, lower, upper, rand.New(rand.NewSource(p.rng.Int63())))
	if err != nil {
		return err
	}
	s, err := step.Open(p.ctx, cfg, p.fn.Evaluate, m.Point, seeder)
	if err != nil {
		return fmt.Errorf("member %d: %w", i, err)
	}
	m.live = s
	return nil
}
