package bench

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

var suite = map[string]Objective{
	"sphere":     Sphere,
	"ellipsoid":  Ellipsoid,
	"rastrigin":  Rastrigin,
	"rosenbrock": Rosenbrock,
}

// Names lists the functions available through New
func Names() []string {
	names := make([]string, 0, len(suite))
	for name := range suite {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New instantiates a named suite function. The seed determines the shifted
// optimum location (inside [-4,4]^dim) and the optimal value. opts are
// applied after the optimum is placed.
func New(name string, dim int, seed int64, opts ...Option) (*Instance, error) {
	fn, ok := suite[name]
	if !ok {
		return nil, fmt.Errorf("unknown benchmark function: %s", name)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}

	rng := rand.New(rand.NewSource(seed))
	xopt := make([]float64, dim)
	for i := range xopt {
		xopt[i] = 8*rng.Float64() - 4
	}
	fopt := math.Round((200*rng.Float64()-100)*100) / 100

	return NewInstance(name, fn, dim, append([]Option{WithOptimum(xopt, fopt)}, opts...)...), nil
}

// Sphere: f(x) = sum x_i^2
func Sphere(x []float64) float64 {
	return floats.Dot(x, x)
}

// Ellipsoid: separable, conditioning 1e6
func Ellipsoid(x []float64) float64 {
	n := len(x)
	var sum float64
	for i, v := range x {
		exp := 0.0
		if n > 1 {
			exp = 6 * float64(i) / float64(n-1)
		}
		sum += math.Pow(10, exp) * v * v
	}
	return sum
}

// Rastrigin: highly multimodal, global optimum 0 at the origin
func Rastrigin(x []float64) float64 {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum
}

// Rosenbrock, shifted so the optimum sits at the origin
func Rosenbrock(x []float64) float64 {
	var sum float64
	for i := 0; i < len(x)-1; i++ {
		a := x[i] + 1
		b := x[i+1] + 1
		sum += 100*(a*a-b)*(a*a-b) + (a-1)*(a-1)
	}
	return sum
}
