package opt

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

func init() {
	registerGonum("nelder-mead", false, func(cfg MethodConfig) optimize.Method {
		return &optimize.NelderMead{SimplexSize: cfg.Param("simplex", 0.05)}
	})
	registerGonum("bfgs", true, func(MethodConfig) optimize.Method { return &optimize.BFGS{} })
	registerGonum("lbfgs", true, func(MethodConfig) optimize.Method { return &optimize.LBFGS{} })
	registerGonum("cg", true, func(MethodConfig) optimize.Method { return &optimize.CG{} })
	registerGonum("gradient-descent", true, func(MethodConfig) optimize.Method { return &optimize.GradientDescent{} })
	registerGonum("cmaes", false, func(cfg MethodConfig) optimize.Method {
		return &optimize.CmaEsChol{
			InitStepSize: cfg.Param("sigma", defaultSigma),
			Population:   int(cfg.Param("popsize", 0)),
		}
	})
}

const (
	defaultSigma     = 10.0 / 4.0
	defaultFTol      = 1e-10
	defaultStallIter = 20
)

func registerGonum(name string, gradient bool, build func(MethodConfig) optimize.Method) {
	Register(name, func(cfg MethodConfig) (Optimizer, error) {
		return &GonumAdapter{
			name:     name,
			build:    build,
			cfg:      cfg,
			gradient: gradient,
			maxIters: int(cfg.Param("maxiter", 0)),
			fTol:     cfg.Param("ftol", defaultFTol),
		}, nil
	})
}

// GonumAdapter runs a gonum/optimize method and reports every major
// iteration through the iteration callback.
type GonumAdapter struct {
	name     string
	build    func(MethodConfig) optimize.Method
	cfg      MethodConfig
	gradient bool
	maxIters int
	fTol     float64
}

// Minimize executes the wrapped gonum method until it converges on its own
func (g *GonumAdapter) Minimize(ctx context.Context, f Objective, x0 []float64, iter IterFunc) (Point, error) {
	return runGonum(ctx, g.name, f, x0, g.build(g.cfg), g.gradient, g.maxIters, g.fTol, iter)
}

// iterRecorder turns optimize.Recorder calls into iteration callbacks
type iterRecorder struct {
	ctx  context.Context
	iter IterFunc
	err  error
}

func (r *iterRecorder) Init() error { return nil }

func (r *iterRecorder) Record(loc *optimize.Location, op optimize.Operation, _ *optimize.Stats) error {
	if op != optimize.MajorIteration {
		return nil
	}
	if err := r.ctx.Err(); err != nil {
		r.err = err
		return err
	}
	if err := r.iter(Point{X: slices.Clone(loc.X), F: loc.F}); err != nil {
		r.err = err
		return err
	}
	return nil
}

func runGonum(ctx context.Context, name string, f Objective, x0 []float64, method optimize.Method, gradient bool, maxIters int, fTol float64, iter IterFunc) (Point, error) {
	problem := optimize.Problem{Func: f}
	if gradient {
		problem.Grad = func(grad, x []float64) {
			fd.Gradient(grad, f, x, nil)
		}
	}

	rec := &iterRecorder{ctx: ctx, iter: iter}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   fTol,
			Iterations: defaultStallIter,
		},
		MajorIterations: maxIters,
		Recorder:        rec,
		Concurrent:      1,
	}

	result, err := optimize.Minimize(problem, slices.Clone(x0), settings, method)
	if rec.err != nil {
		return Point{}, rec.err
	}
	if err != nil {
		if result == nil {
			return Point{}, fmt.Errorf("%s: %w", name, err)
		}
		// Line search breakdowns and similar are a local optimum for our purposes
		slog.Debug("Method stopped with error", "method", name, "status", result.Status.String(), "error", err)
	}
	if result == nil || result.X == nil || math.IsNaN(result.F) {
		return Point{X: slices.Clone(x0), F: f(x0)}, nil
	}
	return Point{X: slices.Clone(result.X), F: result.F}, nil
}
