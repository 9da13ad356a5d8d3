package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/cwbudde/portfolio/internal/bench"
	"github.com/cwbudde/portfolio/internal/opt"
	"github.com/cwbudde/portfolio/internal/step"
)

// SingleConfig describes a single-method run with independent restarts
type SingleConfig struct {
	Method string
	Params map[string]float64
	// Restarts is the number of planned restarts; every run gets an equal
	// share of MaxEvals
	Restarts int
	MaxEvals int
	Seeder   string
	Seed     int64
}

// SingleResult summarizes a single-method run
type SingleResult struct {
	// Restarts is the number of independent restarts actually performed
	Restarts    int
	Evaluations int
	Best        float64
	Solved      bool
}

// RunSingle minimizes fn with one method, restarting it from a fresh
// random point whenever a run ends or exhausts its share of the budget,
// until the target is hit or the budget is spent.
func RunSingle(ctx context.Context, fn bench.Tracked, cfg SingleConfig) (res SingleResult, err error) {
	if err := opt.Check(cfg.Method); err != nil {
		return SingleResult{}, err
	}
	if cfg.Seeder == "" {
		cfg.Seeder = "uniform"
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	lower, upper := fn.Bounds()
	perRun := cfg.MaxEvals / (cfg.Restarts + 1)
	solved := func() bool { return fn.Evaluations() > 1 && fn.Best() < fn.Target() }

	res.Restarts = -1
	defer func() {
		res.Evaluations = fn.Spent()
		res.Best = fn.Best()
		res.Solved = solved()
	}()

	for !solved() && fn.Spent() <= cfg.MaxEvals {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Restarts++

		x0 := make([]float64, len(lower))
		for j := range x0 {
			x0[j] = lower[j] + 1 + rng.Float64()*(upper[j]-lower[j]-2)
		}
		seeder, err := step.NewSeeder(cfg.Seeder, lower, upper, rand.New(rand.NewSource(rng.Int63())))
		if err != nil {
			return res, err
		}
		mc := opt.MethodConfig{Name: cfg.Method, Lower: lower, Upper: upper, Params: cfg.Params, Seed: rng.Int63()}
		s, err := step.Open(ctx, mc, fn.Evaluate, x0, seeder)
		if err != nil {
			return res, err
		}

		base := fn.Spent()
		for !solved() && fn.Spent()-base <= perRun && fn.Spent() <= cfg.MaxEvals {
			if _, err = s.Next(); err != nil {
				break
			}
		}
		if stopErr := s.Stop(); stopErr != nil {
			err = errors.Join(err, stopErr)
		}
		if err != nil && !errors.Is(err, step.ErrTerminated) {
			return res, fmt.Errorf("run %d of %s: %w", res.Restarts, cfg.Method, err)
		}
		if fn.Spent() == base {
			return res, fmt.Errorf("run %d of %s spent no evaluations", res.Restarts, cfg.Method)
		}
		slog.Debug("Single run ended", "method", cfg.Method, "run", res.Restarts, "evaluations", fn.Spent()-base, "best", fn.Best()-fn.Optimum())
	}

	return res, nil
}
