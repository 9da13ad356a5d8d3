// Package portfolio drives a population of stepped optimizers, picking
// after every step which member gets the next slice of budget.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cwbudde/portfolio/internal/credit"
	"github.com/cwbudde/portfolio/internal/population"
)

// Result summarizes a portfolio run
type Result struct {
	// Iterations is the number of completed portfolio iterations
	Iterations  int
	Evaluations int
	// Best is the best value the benchmark observed
	Best float64
	// SolvedBy is the method of the member that hit the target, empty if
	// the budget ran out first
	SolvedBy     string
	SolvedMember int
}

// Solved reports whether the target was reached
func (r Result) Solved() bool { return r.SolvedBy != "" }

// Run steps every member once and then lets strategy choose members until
// the target is hit, maxEvals evaluations are spent or ctx is done. The
// population is stopped before Run returns.
func Run(ctx context.Context, pop *population.Population, engine *credit.Engine, strategy Strategy, maxEvals int) (res Result, err error) {
	fn := pop.Function()
	res.SolvedMember = -1

	defer func() {
		if stopErr := pop.Stop(); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to stop population: %w", stopErr))
		}
		res.Iterations = pop.TotalIterations
		res.Evaluations = fn.Spent()
		res.Best = fn.Best()
	}()

	// stepAndCheck returns true once the member reached the target
	stepAndCheck := func(i int) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		_, y, err := pop.StepOne(i)
		if err != nil {
			return false, err
		}
		if y < fn.Target() {
			res.SolvedBy = pop.Member(i).Method
			res.SolvedMember = i
			slog.Info("Target reached",
				"member", i,
				"method", res.SolvedBy,
				"evaluations", fn.Spent(),
				"iterations", pop.TotalIterations)
			return true, nil
		}
		pop.EndIter()
		engine.Update()
		return false, nil
	}

	for i := 0; i < pop.Len(); i++ {
		done, err := stepAndCheck(i)
		if err != nil || done {
			return res, err
		}
	}

	for fn.Spent() < maxEvals {
		i := strategy.Next(pop, engine)
		done, err := stepAndCheck(i)
		if err != nil || done {
			return res, err
		}
		if pop.TotalIterations%100 == 0 {
			slog.Debug("Portfolio progress",
				"iterations", pop.TotalIterations,
				"evaluations", fn.Spent(),
				"best", fn.Best()-fn.Optimum(),
				"leader", engine.Best())
		}
	}

	slog.Info("Evaluation budget spent", "evaluations", fn.Spent(), "budget", maxEvals)
	return res, nil
}
