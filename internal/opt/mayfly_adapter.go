package opt

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"

	"github.com/cwbudde/mayfly"
)

func init() {
	Register("mayfly", func(cfg MethodConfig) (Optimizer, error) {
		return NewMayfly(cfg)
	})
}

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface.
//
// Mayfly exposes no iteration hook, so the adapter intercepts the objective
// function instead and reports the best point after every reportEvery
// evaluations (one population's worth by default).
type MayflyAdapter struct {
	maxIters    int
	popSize     int
	reportEvery int
	seed        int64
	lower       float64
	upper       float64
}

// NewMayfly creates a new Mayfly optimizer adapter
func NewMayfly(cfg MethodConfig) (*MayflyAdapter, error) {
	popSize := int(cfg.Param("popsize", 20))
	if popSize < 20 {
		// mayfly v0.1.0 misbehaves with smaller populations
		return nil, fmt.Errorf("mayfly popsize must be >= 20, got %d", popSize)
	}
	return &MayflyAdapter{
		maxIters:    int(cfg.Param("maxiter", 100)),
		popSize:     popSize,
		reportEvery: int(cfg.Param("report_every", float64(popSize))),
		seed:        cfg.Seed,
		lower:       cfg.Lower[0],
		upper:       cfg.Upper[0],
	}, nil
}

// Minimize executes the Mayfly optimization. The library samples its own
// initial population inside the box, so x0 only seeds the reported start.
func (m *MayflyAdapter) Minimize(ctx context.Context, f Objective, x0 []float64, iter IterFunc) (Point, error) {
	run := mayflyRun{
		ctx:         ctx,
		f:           f,
		iter:        iter,
		dim:         len(x0),
		lower:       m.lower,
		upper:       m.upper,
		popSize:     m.popSize,
		maxIters:    m.maxIters,
		reportEvery: m.reportEvery,
		rng:         rand.New(rand.NewSource(m.seed)),
	}
	return run.optimize()
}

// abortRun unwinds a blocking mayfly.Optimize call from inside the objective
type abortRun struct {
	err error
}

// mayflyRun is a single mayfly.Optimize invocation. When center is set the
// search happens in a window around it instead of the whole box.
type mayflyRun struct {
	ctx         context.Context
	f           Objective
	iter        IterFunc
	dim         int
	lower       float64
	upper       float64
	center      []float64
	radius      float64
	popSize     int
	maxIters    int
	reportEvery int
	rng         *rand.Rand

	evals int
	best  Point
}

// toBox maps a search coordinate to a point inside the original box
func (r *mayflyRun) toBox(y []float64) []float64 {
	x := slices.Clone(y)
	if r.center != nil {
		for i := range x {
			x[i] = math.Max(r.lower, math.Min(r.upper, r.center[i]+y[i]))
		}
	}
	return x
}

func (r *mayflyRun) objective(y []float64) float64 {
	if err := r.ctx.Err(); err != nil {
		panic(abortRun{err: err})
	}

	x := r.toBox(y)
	fx := r.f(x)
	if r.best.X == nil || fx < r.best.F {
		r.best = Point{X: x, F: fx}
	}

	r.evals++
	if r.reportEvery > 0 && r.evals%r.reportEvery == 0 {
		if err := r.iter(r.best.Clone()); err != nil {
			panic(abortRun{err: err})
		}
	}
	return fx
}

func (r *mayflyRun) optimize() (result Point, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			abort, ok := rec.(abortRun)
			if !ok {
				panic(rec)
			}
			result, err = Point{}, abort.err
		}
	}()

	// Create config for external Mayfly library
	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = r.objective
	config.ProblemSize = r.dim
	config.MaxIterations = r.maxIters
	config.NPop = r.popSize
	config.Rand = r.rng

	// External library uses scalar bounds
	config.LowerBound = r.lower
	config.UpperBound = r.upper
	if r.center != nil {
		config.LowerBound = -r.radius
		config.UpperBound = r.radius
	}

	res, err := mayfly.Optimize(config)
	if err != nil {
		return Point{}, fmt.Errorf("mayfly: %w", err)
	}

	final := Point{X: r.toBox(res.GlobalBest.Position), F: res.GlobalBest.Cost}
	if r.best.X != nil && r.best.F < final.F {
		final = r.best.Clone()
	}
	return final, nil
}
