package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/portfolio/internal/opt"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	e, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if e.Function != defaultFunction || e.Dim != defaultDim {
		t.Fatalf("expected default instance, got %s/%d", e.Function, e.Dim)
	}
	if e.Population.Members != defaultMembers {
		t.Fatalf("single-method default members = %d, want %d", e.Population.Members, defaultMembers)
	}
	if e.MaxEvals() != defaultEvalsPerDim*defaultDim {
		t.Fatalf("MaxEvals = %d", e.MaxEvals())
	}
	if e.Epsilon() != 0.5 {
		t.Fatalf("Epsilon = %v, want 0.5", e.Epsilon())
	}
	if err := e.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestDefaultYAMLParses(t *testing.T) {
	e, err := Parse([]byte(DefaultYAML))
	if err != nil {
		t.Fatalf("Parse(DefaultYAML) returned error: %v", err)
	}
	if len(e.Population.Methods) != 2 || e.Population.Members != 2 {
		t.Fatalf("unexpected population: %+v", e.Population)
	}
	if e.Population.Params["nelder-mead"]["simplex"] != 0.5 {
		t.Fatalf("params not parsed: %v", e.Population.Params)
	}
}

func TestParseYaml(t *testing.T) {
	doc := strings.TrimSpace(`
function: Sphere
dim: 10
evals_per_dim: 200
population:
  methods: [BFGS, cg, lbfgs]
  min_evals: 50
  seeder: hop
  params:
    CG:
      maxiter: 40
credit:
  assign: ranked
  accrual: adapt0.6r
strategy:
  name: egreedy
  epsilon: 0
replay:
  dir: replays
  record: 3
`)
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	e, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if e.Function != "sphere" {
		t.Fatalf("function not normalized: %q", e.Function)
	}
	if e.Population.Methods[0] != "bfgs" || e.Population.Members != 3 {
		t.Fatalf("unexpected population: %+v", e.Population)
	}
	if e.Population.Params["cg"]["maxiter"] != 40 {
		t.Fatalf("params keys not normalized: %v", e.Population.Params)
	}
	if e.Epsilon() != 0 {
		t.Fatalf("explicit epsilon 0 lost, got %v", e.Epsilon())
	}
	if e.MaxEvals() != 2000 {
		t.Fatalf("MaxEvals = %d, want 2000", e.MaxEvals())
	}
	if e.Replay.Dir != "replays" || e.Replay.Record != 3 {
		t.Fatalf("replay not parsed: %+v", e.Replay)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"unknown function": "function: nope",
		"negative dim":     "dim: -2",
		"bad strategy":     "strategy: {name: thompson}",
		"bad accrual":      "credit: {accrual: adapt2}",
		"bad assign":       "credit: {assign: scaled}",
		"bad seeder":       "population: {seeder: lhs}",
		"stray params":     "population: {methods: [bfgs], params: {cg: {maxiter: 3}}}",
		"bad epsilon":      "strategy: {name: egreedy, epsilon: 2}",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	_, err := Parse([]byte("population: {methods: [cobyla]}"))
	if !errors.Is(err, opt.ErrNoCallback) {
		t.Errorf("expected ErrNoCallback, got %v", err)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	e := Default()
	e.Dim = 7
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := e.Write(path); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Dim != 7 || loaded.Function != e.Function {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}
