package step

import (
	"fmt"
	"math"
	"math/rand"
	"slices"

	"github.com/cwbudde/portfolio/internal/opt"
)

// Seeder produces start points for the internal restarts of a restarting
// optimizer.
type Seeder interface {
	Seed(last opt.Point) ([]float64, error)
}

// UniformSeeder draws every start point uniformly from the box.
type UniformSeeder struct {
	Lower []float64
	Upper []float64
	Rand  *rand.Rand
}

func (u *UniformSeeder) Seed(opt.Point) ([]float64, error) {
	if len(u.Lower) != len(u.Upper) {
		return nil, fmt.Errorf("uniform seeder: mismatched bounds")
	}
	x := make([]float64, len(u.Lower))
	for i := range x {
		x[i] = u.Lower[i] + u.Rand.Float64()*(u.Upper[i]-u.Lower[i])
	}
	return x, nil
}

// HopSeeder perturbs the previous run's best point by a uniform step in
// every coordinate, basin-hopping style, and clamps it into the box.
type HopSeeder struct {
	Lower    []float64
	Upper    []float64
	StepSize float64
	Rand     *rand.Rand
}

func (h *HopSeeder) Seed(last opt.Point) ([]float64, error) {
	if last.X == nil || len(last.X) != len(h.Lower) {
		return (&UniformSeeder{Lower: h.Lower, Upper: h.Upper, Rand: h.Rand}).Seed(last)
	}
	x := slices.Clone(last.X)
	for i := range x {
		x[i] += (2*h.Rand.Float64() - 1) * h.StepSize
		x[i] = math.Max(h.Lower[i], math.Min(h.Upper[i], x[i]))
	}
	return x, nil
}

// DefaultHopStep is the basin-hopping step size used when none is configured
const DefaultHopStep = 0.5

// SeederFactory builds a seeder for a box
type SeederFactory func(lower, upper []float64, rng *rand.Rand) Seeder

var seeders = map[string]SeederFactory{
	"uniform": func(lower, upper []float64, rng *rand.Rand) Seeder {
		return &UniformSeeder{Lower: lower, Upper: upper, Rand: rng}
	},
	"hop": func(lower, upper []float64, rng *rand.Rand) Seeder {
		return &HopSeeder{Lower: lower, Upper: upper, StepSize: DefaultHopStep, Rand: rng}
	},
}

// NewSeeder resolves a seeder by name
func NewSeeder(name string, lower, upper []float64, rng *rand.Rand) (Seeder, error) {
	factory, ok := seeders[name]
	if !ok {
		return nil, fmt.Errorf("unknown restart seeder: %s", name)
	}
	return factory(slices.Clone(lower), slices.Clone(upper), rng), nil
}

// SeederNames returns the registered seeder names in sorted order
func SeederNames() []string {
	names := make([]string, 0, len(seeders))
	for name := range seeders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
