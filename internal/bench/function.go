package bench

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Function is the benchmark collaborator consumed by the portfolio core.
// Implementations count every live evaluation.
type Function interface {
	// Evaluate computes the objective value at x
	Evaluate(x []float64) float64
	// Evaluations returns the number of live evaluations so far
	Evaluations() int
	// Target is the value below which the function counts as solved
	Target() float64
	// Optimum is the known optimal value (fopt)
	Optimum() float64
	// Precision is the distance from Optimum that defines Target
	Precision() float64
	// Dim is the dimensionality of the search space
	Dim() int
	// Bounds returns the bounding box of the search space
	Bounds() (lower, upper []float64)
}

// Tracked is a Function that also accounts for evaluations synthesized by
// a replay and remembers the best value seen.
type Tracked interface {
	Function
	Inject(ys []float64)
	Spent() int
	Best() float64
}

// Objective is a raw objective over an unshifted search space.
type Objective func(x []float64) float64

const (
	// DefaultPrecision is the target distance from the optimum
	DefaultPrecision = 1e-8
	// DefaultBound is the half-width of the default symmetric bounding box
	DefaultBound = 6.0
)

// Instance is a concrete Function: an Objective shifted to xopt and offset
// by fopt, with evaluation counting and best-so-far tracking.
type Instance struct {
	name      string
	fn        Objective
	dim       int
	xopt      []float64
	fopt      float64
	precision float64
	lower     []float64
	upper     []float64

	evaluations int
	injected    int
	best        float64
	scratch     []float64
}

// Option configures an Instance
type Option func(*Instance)

// WithOptimum places the optimum at xopt with value fopt
func WithOptimum(xopt []float64, fopt float64) Option {
	return func(in *Instance) {
		in.xopt = append([]float64(nil), xopt...)
		in.fopt = fopt
	}
}

// WithPrecision sets the target precision
func WithPrecision(precision float64) Option {
	return func(in *Instance) {
		in.precision = precision
	}
}

// WithBounds sets a symmetric box [-bound, bound] in every coordinate
func WithBounds(bound float64) Option {
	return func(in *Instance) {
		for i := range in.lower {
			in.lower[i] = -bound
			in.upper[i] = bound
		}
	}
}

// NewInstance creates a function instance of the given dimension.
// Without options the optimum sits at the origin with value 0.
func NewInstance(name string, fn Objective, dim int, opts ...Option) *Instance {
	in := &Instance{
		name:      name,
		fn:        fn,
		dim:       dim,
		xopt:      make([]float64, dim),
		precision: DefaultPrecision,
		lower:     make([]float64, dim),
		upper:     make([]float64, dim),
		best:      math.Inf(1),
		scratch:   make([]float64, dim),
	}
	WithBounds(DefaultBound)(in)
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Name returns the function name
func (in *Instance) Name() string { return in.name }

// Evaluate computes the objective at x and counts the evaluation
func (in *Instance) Evaluate(x []float64) float64 {
	floats.SubTo(in.scratch, x, in.xopt)
	y := in.fn(in.scratch) + in.fopt
	in.evaluations++
	in.observe(y)
	return y
}

// Inject accounts for evaluations synthesized by a replay. They update the
// best-so-far value but not the live evaluation counter.
func (in *Instance) Inject(ys []float64) {
	in.injected += len(ys)
	for _, y := range ys {
		in.observe(y)
	}
}

func (in *Instance) observe(y float64) {
	if y < in.best {
		in.best = y
	}
}

func (in *Instance) Evaluations() int { return in.evaluations }

// Injected returns the number of replay-synthesized evaluations
func (in *Instance) Injected() int { return in.injected }

// Spent is the evaluation budget consumed, live and replayed
func (in *Instance) Spent() int { return in.evaluations + in.injected }

// Best returns the best value observed so far (+Inf before any evaluation)
func (in *Instance) Best() float64 { return in.best }

// Solved reports whether the best value has reached the target
func (in *Instance) Solved() bool { return in.best < in.Target() }

func (in *Instance) Target() float64    { return in.fopt + in.precision }
func (in *Instance) Optimum() float64   { return in.fopt }
func (in *Instance) Precision() float64 { return in.precision }
func (in *Instance) Dim() int           { return in.dim }

func (in *Instance) Bounds() (lower, upper []float64) {
	return append([]float64(nil), in.lower...), append([]float64(nil), in.upper...)
}
