package opt

import (
	"context"
	"errors"
	"testing"
)

func TestNelderMeadReportsIterations(t *testing.T) {
	cfg := box(2, 6)
	cfg.Name = "nelder-mead"
	m, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Optimizer == nil || m.Restarter != nil {
		t.Fatal("nelder-mead should resolve to a plain optimizer")
	}

	var values []float64
	final, err := m.Optimizer.Minimize(context.Background(), sphere, []float64{3, -2}, func(p Point) error {
		values = append(values, p.F)
		return nil
	})
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}

	if len(values) < 2 {
		t.Fatalf("Expected several iterations, got %d", len(values))
	}
	if final.F > 1e-4 {
		t.Errorf("Expected convergence near 0, got %g", final.F)
	}
	if values[len(values)-1] > values[0] {
		t.Errorf("Best value should not increase: first %g, last %g", values[0], values[len(values)-1])
	}
}

func TestGradientMethodsConverge(t *testing.T) {
	for _, name := range []string{"bfgs", "lbfgs", "cg"} {
		cfg := box(3, 6)
		cfg.Name = name
		m, err := Resolve(cfg)
		if err != nil {
			t.Fatalf("%s: Resolve failed: %v", name, err)
		}
		final, err := m.Optimizer.Minimize(context.Background(), sphere, []float64{1, 2, -1}, func(Point) error { return nil })
		if err != nil {
			t.Fatalf("%s: Minimize failed: %v", name, err)
		}
		if final.F > 1e-4 {
			t.Errorf("%s: expected convergence near 0, got %g", name, final.F)
		}
	}
}

func TestGonumCallbackErrorAborts(t *testing.T) {
	cfg := box(2, 6)
	cfg.Name = "nelder-mead"
	m, _ := Resolve(cfg)

	stop := errors.New("cancelled")
	calls := 0
	_, err := m.Optimizer.Minimize(context.Background(), sphere, []float64{3, 3}, func(Point) error {
		calls++
		return stop
	})

	if !errors.Is(err, stop) {
		t.Fatalf("Expected callback error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected optimizer to stop after first callback, got %d calls", calls)
	}
}

func TestIPOPCMAESRequestsStartPoints(t *testing.T) {
	cfg := box(2, 6)
	cfg.Name = "ipop-cmaes"
	cfg.Params = map[string]float64{"restarts": 2}
	m, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Restarter == nil {
		t.Fatal("ipop-cmaes should resolve to a restart optimizer")
	}

	var requests []Point
	_, err = m.Restarter.MinimizeRestarts(context.Background(), sphere, func(last Point) ([]float64, error) {
		requests = append(requests, last)
		return []float64{2, 2}, nil
	}, func(Point) error { return nil })
	if err != nil {
		t.Fatalf("MinimizeRestarts failed: %v", err)
	}

	if len(requests) != 3 {
		t.Fatalf("Expected 3 start point requests (1 + 2 restarts), got %d", len(requests))
	}
	if requests[0].X != nil {
		t.Error("First request should carry no previous point")
	}
	if requests[1].X == nil {
		t.Error("Restart request should carry the previous best point")
	}
}
