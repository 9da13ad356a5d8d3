package bench

import (
	"math"
	"testing"
)

func TestInstanceCountsEvaluations(t *testing.T) {
	in := NewInstance("toy", Sphere, 2)

	if got := in.Evaluate([]float64{1, 2}); got != 5 {
		t.Errorf("Expected f(1,2)=5, got %f", got)
	}
	in.Evaluate([]float64{0, 0})

	if in.Evaluations() != 2 {
		t.Errorf("Expected 2 evaluations, got %d", in.Evaluations())
	}
	if in.Best() != 0 {
		t.Errorf("Expected best 0, got %f", in.Best())
	}
	if !in.Solved() {
		t.Error("Instance should be solved after evaluating the optimum")
	}
}

func TestInstanceShiftedOptimum(t *testing.T) {
	in := NewInstance("toy", Sphere, 2, WithOptimum([]float64{1, -1}, 3.5), WithPrecision(1e-4))

	if got := in.Evaluate([]float64{1, -1}); got != 3.5 {
		t.Errorf("Expected fopt at xopt, got %f", got)
	}
	if in.Target() != 3.5+1e-4 {
		t.Errorf("Unexpected target %g", in.Target())
	}
}

func TestInstanceInjectDoesNotCountLive(t *testing.T) {
	in := NewInstance("toy", Sphere, 1)
	in.Evaluate([]float64{2})
	in.Inject([]float64{3, 1, 0.5})

	if in.Evaluations() != 1 {
		t.Errorf("Injected values must not count as live evaluations, got %d", in.Evaluations())
	}
	if in.Injected() != 3 {
		t.Errorf("Expected 3 injected, got %d", in.Injected())
	}
	if in.Spent() != 4 {
		t.Errorf("Expected 4 spent, got %d", in.Spent())
	}
	if in.Best() != 0.5 {
		t.Errorf("Expected best 0.5, got %f", in.Best())
	}
}

func TestInstanceDefaultBounds(t *testing.T) {
	in := NewInstance("toy", Sphere, 3)
	lower, upper := in.Bounds()
	for i := range lower {
		if lower[i] != -DefaultBound || upper[i] != DefaultBound {
			t.Errorf("Dimension %d: expected [-6,6], got [%f,%f]", i, lower[i], upper[i])
		}
	}

	// Bounds must be a copy
	lower[0] = 100
	lower2, _ := in.Bounds()
	if lower2[0] != -DefaultBound {
		t.Error("Bounds should return a copy")
	}
}

func TestSuiteOptimaAtOrigin(t *testing.T) {
	for _, name := range Names() {
		fn := suite[name]
		if got := fn(make([]float64, 4)); math.Abs(got) > 1e-12 {
			t.Errorf("%s: expected 0 at origin, got %g", name, got)
		}
	}
}

func TestNewDeterministic(t *testing.T) {
	a, err := New("rastrigin", 3, 7)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b, _ := New("rastrigin", 3, 7)

	x := []float64{0.5, -0.5, 1}
	if a.Evaluate(x) != b.Evaluate(x) {
		t.Error("Same seed should produce identical instances")
	}
	if a.Optimum() != b.Optimum() {
		t.Error("Same seed should produce identical optima")
	}
}

func TestNewUnknown(t *testing.T) {
	if _, err := New("nope", 2, 1); err == nil {
		t.Error("Expected error for unknown function")
	}
	if _, err := New("sphere", 0, 1); err == nil {
		t.Error("Expected error for zero dimension")
	}
}
