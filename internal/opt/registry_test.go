package opt

import (
	"errors"
	"testing"
)

func TestResolveUnsupportedMethod(t *testing.T) {
	for _, name := range []string{"COBYLA", "anneal"} {
		cfg := box(2, 6)
		cfg.Name = name
		_, err := Resolve(cfg)
		if !errors.Is(err, ErrNoCallback) {
			t.Errorf("%s: expected ErrNoCallback, got %v", name, err)
		}
	}
}

func TestResolveUnknownMethod(t *testing.T) {
	cfg := box(2, 6)
	cfg.Name = "simplex-of-doom"
	if _, err := Resolve(cfg); !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("Expected ErrUnknownMethod, got %v", err)
	}
}

func TestResolveInvalidBox(t *testing.T) {
	cfg := MethodConfig{Name: "bfgs", Lower: []float64{-1}, Upper: []float64{1, 2}}
	if _, err := Resolve(cfg); err == nil {
		t.Error("Expected error for mismatched bounds")
	}
}

func TestNamesIncludesBuiltins(t *testing.T) {
	want := map[string]bool{"nelder-mead": false, "bfgs": false, "mayfly": false, "ipop-cmaes": false, "ipop-mayfly": false}
	for _, name := range Names() {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Method %s not registered", name)
		}
	}
}

func TestParamDefault(t *testing.T) {
	cfg := MethodConfig{Params: map[string]float64{"sigma": 1.5}}
	if cfg.Param("sigma", 2.5) != 1.5 {
		t.Error("Expected configured value")
	}
	if cfg.Param("popsize", 12) != 12 {
		t.Error("Expected default value")
	}
}
