package portfolio

import (
	"fmt"
	"math/rand"
	"sort"
)

// Members is the population view a strategy chooses from.
type Members interface {
	Len() int
	// Spent returns the evaluations member i has consumed
	Spent(i int) int
}

// Credits exposes the credit engine's current choice.
type Credits interface {
	// Best returns the member with the lowest credit
	Best() int
}

// Strategy picks the member that gets the next step.
type Strategy interface {
	Next(m Members, c Credits) int
}

// Options parameterize strategies
type Options struct {
	// Epsilon is the exploration probability of egreedy
	Epsilon float64
	Seed    int64
}

// DefaultEpsilon is the egreedy exploration probability
const DefaultEpsilon = 0.5

// EpsilonGreedy explores a uniformly random member with probability
// Epsilon and otherwise exploits the member with the best credit.
type EpsilonGreedy struct {
	Epsilon float64
	Rand    *rand.Rand
}

func (g *EpsilonGreedy) Next(m Members, c Credits) int {
	if g.Rand.Float64() < g.Epsilon {
		return g.Rand.Intn(m.Len())
	}
	return c.Best()
}

// RoundRobin steps members cyclically
type RoundRobin struct {
	next int
}

func (r *RoundRobin) Next(m Members, _ Credits) int {
	i := r.next % m.Len()
	r.next = i + 1
	return i
}

// Uniform steps the member that has consumed the fewest evaluations,
// spreading the budget evenly
type Uniform struct{}

func (Uniform) Next(m Members, _ Credits) int {
	best := 0
	for i := 1; i < m.Len(); i++ {
		if m.Spent(i) < m.Spent(best) {
			best = i
		}
	}
	return best
}

// Factory builds a strategy from options
type Factory func(opts Options) (Strategy, error)

var strategies = map[string]Factory{
	"egreedy": func(opts Options) (Strategy, error) {
		if opts.Epsilon < 0 || opts.Epsilon > 1 {
			return nil, fmt.Errorf("egreedy: epsilon %v outside [0,1]", opts.Epsilon)
		}
		return &EpsilonGreedy{Epsilon: opts.Epsilon, Rand: rand.New(rand.NewSource(opts.Seed))}, nil
	},
	"roundrobin": func(Options) (Strategy, error) { return &RoundRobin{}, nil },
	"uniform":    func(Options) (Strategy, error) { return Uniform{}, nil },
}

// Register makes a strategy available under name
func Register(name string, f Factory) {
	strategies[name] = f
}

// NewStrategy builds the named strategy
func NewStrategy(name string, opts Options) (Strategy, error) {
	f, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown selection strategy: %s", name)
	}
	return f(opts)
}

// Strategies returns the registered strategy names
func Strategies() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
