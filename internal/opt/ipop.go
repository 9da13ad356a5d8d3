package opt

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/optimize"
)

func init() {
	RegisterRestart("ipop-cmaes", func(cfg MethodConfig) (RestartOptimizer, error) {
		return &IPOPCMAES{
			sigma:    cfg.Param("sigma", defaultSigma),
			popSize:  int(cfg.Param("popsize", 0)),
			restarts: int(cfg.Param("restarts", defaultRestarts)),
			fTol:     cfg.Param("ftol", defaultFTol),
		}, nil
	})
	RegisterRestart("ipop-mayfly", func(cfg MethodConfig) (RestartOptimizer, error) {
		base, err := NewMayfly(cfg)
		if err != nil {
			return nil, err
		}
		return &IPOPMayfly{
			base:     base,
			radius:   cfg.Param("radius", (cfg.Upper[0]-cfg.Lower[0])/4),
			restarts: int(cfg.Param("restarts", defaultRestarts)),
		}, nil
	})
}

const defaultRestarts = 9

// cmaDefaultPopulation mirrors the CMA-ES default lambda = 4 + 3 ln(n)
func cmaDefaultPopulation(dim int) int {
	return 4 + int(3*math.Log(float64(dim)))
}

// IPOPCMAES is CMA-ES with increasing-population restarts. Each restart
// doubles the population and starts from a point supplied by the caller.
type IPOPCMAES struct {
	sigma    float64
	popSize  int
	restarts int
	fTol     float64
}

func (c *IPOPCMAES) MinimizeRestarts(ctx context.Context, f Objective, x0 X0Func, iter IterFunc) (Point, error) {
	best := Point{F: math.Inf(1)}
	last := Point{F: math.Inf(1)}
	popSize := c.popSize

	for run := 0; run <= c.restarts; run++ {
		start, err := x0(last)
		if err != nil {
			return best, err
		}
		if popSize == 0 {
			popSize = cmaDefaultPopulation(len(start))
		}

		method := &optimize.CmaEsChol{InitStepSize: c.sigma, Population: popSize}
		last, err = runGonum(ctx, "ipop-cmaes", f, start, method, false, 0, c.fTol, iter)
		if err != nil {
			return best, err
		}
		if last.F < best.F {
			best = last.Clone()
		}
		popSize *= 2
	}
	return best, nil
}

// IPOPMayfly runs mayfly in a window around each supplied start point,
// doubling the swarm on every restart.
type IPOPMayfly struct {
	base     *MayflyAdapter
	radius   float64
	restarts int
}

func (m *IPOPMayfly) MinimizeRestarts(ctx context.Context, f Objective, x0 X0Func, iter IterFunc) (Point, error) {
	best := Point{F: math.Inf(1)}
	last := Point{F: math.Inf(1)}
	rng := rand.New(rand.NewSource(m.base.seed))
	popSize := m.base.popSize

	for run := 0; run <= m.restarts; run++ {
		start, err := x0(last)
		if err != nil {
			return best, err
		}
		if len(start) == 0 {
			return best, fmt.Errorf("ipop-mayfly: empty start point")
		}

		r := mayflyRun{
			ctx:         ctx,
			f:           f,
			iter:        iter,
			dim:         len(start),
			lower:       m.base.lower,
			upper:       m.base.upper,
			center:      start,
			radius:      m.radius,
			popSize:     popSize,
			maxIters:    m.base.maxIters,
			reportEvery: popSize,
			rng:         rng,
		}
		last, err = r.optimize()
		if err != nil {
			return best, err
		}
		if last.F < best.F {
			best = last.Clone()
		}
		popSize *= 2
	}
	return best, nil
}
