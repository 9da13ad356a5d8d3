// Package config loads experiment descriptions from YAML files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/portfolio/internal/bench"
	"github.com/cwbudde/portfolio/internal/credit"
	"github.com/cwbudde/portfolio/internal/opt"
	"github.com/cwbudde/portfolio/internal/portfolio"
	"github.com/cwbudde/portfolio/internal/step"
)

const (
	defaultFunction    = "rastrigin"
	defaultDim         = 5
	defaultEvalsPerDim = 1000
	defaultDataDir     = "data"
	defaultMethod      = "nelder-mead"
	// Single-method populations default to this many members
	defaultMembers = 30
)

// DefaultYAML is a commented experiment file with every default spelled out.
const DefaultYAML = `# portfolio experiment configuration
function: rastrigin
dim: 5
seed: 1

# Evaluation budget is evals_per_dim * dim
evals_per_dim: 1000

population:
  # Methods are assigned to members round-robin
  methods: [nelder-mead, bfgs]
  members: 2
  min_evals: 100
  seeder: uniform
  params:
    nelder-mead:
      simplex: 0.5

credit:
  assign: raw
  # A trailing r resets history on restart, e.g. adapt0.6r
  accrual: latest

strategy:
  name: egreedy
  epsilon: 0.5

# Replay recorded runs from <dir>/<method>.mdat
# replay:
#   dir: replays
#   record: 0

data_dir: data
`

// PopulationConfig describes the optimizer population
type PopulationConfig struct {
	Methods  []string                      `yaml:"methods"`
	Members  int                           `yaml:"members"`
	MinEvals int                           `yaml:"min_evals"`
	Seeder   string                        `yaml:"seeder"`
	Params   map[string]map[string]float64 `yaml:"params,omitempty"`
}

// CreditConfig names the credit assignment and accrual policies
type CreditConfig struct {
	Assign  string `yaml:"assign"`
	Accrual string `yaml:"accrual"`
}

// StrategyConfig names the member selection strategy
type StrategyConfig struct {
	Name string `yaml:"name"`
	// Epsilon is a pointer so an explicit 0 survives defaulting
	Epsilon *float64 `yaml:"epsilon,omitempty"`
}

// ReplayConfig points at recorded runs to replay instead of live methods
type ReplayConfig struct {
	Dir    string `yaml:"dir,omitempty"`
	Record int    `yaml:"record,omitempty"`
}

// Experiment models an experiment YAML file.
type Experiment struct {
	Function    string           `yaml:"function"`
	Dim         int              `yaml:"dim"`
	Seed        int64            `yaml:"seed"`
	Precision   float64          `yaml:"precision,omitempty"`
	EvalsPerDim int              `yaml:"evals_per_dim"`
	Population  PopulationConfig `yaml:"population"`
	Credit      CreditConfig     `yaml:"credit"`
	Strategy    StrategyConfig   `yaml:"strategy"`
	Replay      ReplayConfig     `yaml:"replay,omitempty"`
	DataDir     string           `yaml:"data_dir"`
}

// Default returns an experiment with every default applied.
func Default() *Experiment {
	e := &Experiment{}
	e.applyDefaults()
	e.normalize()
	return e
}

// Load reads an experiment file. A missing file yields the defaults.
func Load(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates an experiment document.
func Parse(data []byte) (*Experiment, error) {
	var e Experiment
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	e.applyDefaults()
	e.normalize()
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &e, nil
}

// Finalize re-applies defaults and validates after fields were changed in
// code, e.g. from command line overrides. Zero fields take their defaults.
func (e *Experiment) Finalize() error {
	e.applyDefaults()
	e.normalize()
	if err := e.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// MaxEvals is the evaluation budget of the experiment
func (e *Experiment) MaxEvals() int {
	return e.EvalsPerDim * e.Dim
}

// Epsilon returns the egreedy exploration probability
func (e *Experiment) Epsilon() float64 {
	if e.Strategy.Epsilon == nil {
		return portfolio.DefaultEpsilon
	}
	return *e.Strategy.Epsilon
}

func (e *Experiment) applyDefaults() {
	if e.Function == "" {
		e.Function = defaultFunction
	}
	if e.Dim == 0 {
		e.Dim = defaultDim
	}
	if e.Precision == 0 {
		e.Precision = bench.DefaultPrecision
	}
	if e.EvalsPerDim == 0 {
		e.EvalsPerDim = defaultEvalsPerDim
	}
	if len(e.Population.Methods) == 0 {
		e.Population.Methods = []string{defaultMethod}
	}
	if e.Population.Members == 0 {
		if len(e.Population.Methods) == 1 {
			e.Population.Members = defaultMembers
		} else {
			e.Population.Members = len(e.Population.Methods)
		}
	}
	if e.Population.Seeder == "" {
		e.Population.Seeder = "uniform"
	}
	if e.Credit.Assign == "" {
		e.Credit.Assign = "raw"
	}
	if e.Credit.Accrual == "" {
		e.Credit.Accrual = "latest"
	}
	if e.Strategy.Name == "" {
		e.Strategy.Name = "egreedy"
	}
	if e.DataDir == "" {
		e.DataDir = defaultDataDir
	}
}

func (e *Experiment) normalize() {
	e.Function = strings.ToLower(strings.TrimSpace(e.Function))
	for i, m := range e.Population.Methods {
		e.Population.Methods[i] = strings.ToLower(strings.TrimSpace(m))
	}
	if len(e.Population.Params) > 0 {
		params := make(map[string]map[string]float64, len(e.Population.Params))
		for method, p := range e.Population.Params {
			params[strings.ToLower(strings.TrimSpace(method))] = p
		}
		e.Population.Params = params
	}
	e.Credit.Assign = strings.TrimSpace(e.Credit.Assign)
	e.Credit.Accrual = strings.TrimSpace(e.Credit.Accrual)
	e.Strategy.Name = strings.ToLower(strings.TrimSpace(e.Strategy.Name))
}

// Validate checks names against the registries and ranges of numeric
// settings.
func (e *Experiment) Validate() error {
	if !slices.Contains(bench.Names(), e.Function) {
		return fmt.Errorf("function %q is not one of %v", e.Function, bench.Names())
	}
	if e.Dim <= 0 {
		return fmt.Errorf("dim must be positive, got %d", e.Dim)
	}
	if e.Precision < 0 {
		return fmt.Errorf("precision must not be negative")
	}
	if e.EvalsPerDim <= 0 {
		return fmt.Errorf("evals_per_dim must be positive, got %d", e.EvalsPerDim)
	}
	for i, m := range e.Population.Methods {
		if err := opt.Check(m); err != nil {
			return fmt.Errorf("population.methods[%d]: %w", i, err)
		}
	}
	if e.Population.Members <= 0 {
		return fmt.Errorf("population.members must be positive, got %d", e.Population.Members)
	}
	if e.Population.MinEvals < 0 {
		return fmt.Errorf("population.min_evals must not be negative")
	}
	if !slices.Contains(step.SeederNames(), e.Population.Seeder) {
		return fmt.Errorf("population.seeder %q is not one of %v", e.Population.Seeder, step.SeederNames())
	}
	for method := range e.Population.Params {
		if !slices.Contains(e.Population.Methods, method) {
			return fmt.Errorf("population.params[%s]: method is not in the population", method)
		}
	}
	if _, err := credit.ResolveAssign(e.Credit.Assign); err != nil {
		return fmt.Errorf("credit.assign: %w", err)
	}
	if _, _, err := credit.ResolveAccrual(e.Credit.Accrual); err != nil {
		return fmt.Errorf("credit.accrual: %w", err)
	}
	if _, err := portfolio.NewStrategy(e.Strategy.Name, portfolio.Options{Epsilon: e.Epsilon()}); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if e.Replay.Record < 0 {
		return fmt.Errorf("replay.record must not be negative")
	}
	return nil
}

// Write stores the experiment as YAML at path
func (e *Experiment) Write(path string) error {
	data, err := yaml.Marshal(e)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
