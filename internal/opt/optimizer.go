package opt

import (
	"context"
	"slices"
)

// Point is a solution reported by an optimizer together with its value.
type Point struct {
	X []float64
	F float64
}

// Clone returns a deep copy of p
func (p Point) Clone() Point {
	return Point{X: slices.Clone(p.X), F: p.F}
}

// Objective is the function being minimized
type Objective func(x []float64) float64

// IterFunc is invoked by an optimizer after every completed iteration with
// the current best point. A non-nil error must abort the optimization and be
// returned from Minimize unchanged.
type IterFunc func(p Point) error

// Optimizer defines an optimization algorithm that runs to completion on its
// own and reports progress through an iteration callback.
type Optimizer interface {
	// Minimize runs the optimization starting from x0 and returns the final
	// point once the algorithm terminates on its own logic.
	Minimize(ctx context.Context, f Objective, x0 []float64, iter IterFunc) (Point, error)
}

// X0Func supplies a start point for the next internal run of a restarting
// optimizer. last is the best point of the previous run (X is nil before the
// first run).
type X0Func func(last Point) ([]float64, error)

// RestartOptimizer is an optimizer with its own restart strategy. It asks
// for every start point, including the first, through x0.
type RestartOptimizer interface {
	MinimizeRestarts(ctx context.Context, f Objective, x0 X0Func, iter IterFunc) (Point, error)
}
