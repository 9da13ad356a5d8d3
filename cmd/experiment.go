package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cwbudde/portfolio/internal/bench"
	"github.com/cwbudde/portfolio/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// experimentFlags are the command line overrides shared by run and single
type experimentFlags struct {
	configPath  string
	function    string
	dim         int
	seed        int64
	evalsPerDim int
	precision   float64
	dataDir     string
}

func (f *experimentFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "Experiment YAML file (defaults apply when empty)")
	fs.StringVar(&f.function, "function", "rastrigin", "Benchmark function")
	fs.IntVar(&f.dim, "dim", 5, "Problem dimension")
	fs.Int64Var(&f.seed, "seed", 1, "Random seed")
	fs.IntVar(&f.evalsPerDim, "evals-per-dim", 1000, "Evaluation budget per dimension")
	fs.Float64Var(&f.precision, "precision", bench.DefaultPrecision, "Target distance from the optimum")
	fs.StringVar(&f.dataDir, "data-dir", "./data", "Base directory for run data")
}

// load reads the experiment file and applies every flag that was set
// explicitly on the command line
func (f *experimentFlags) load(cmd *cobra.Command) (*config.Experiment, error) {
	e := config.Default()
	if f.configPath != "" {
		var err error
		if e, err = config.Load(f.configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("function") {
		e.Function = f.function
	}
	if flags.Changed("dim") {
		e.Dim = f.dim
	}
	if flags.Changed("seed") {
		e.Seed = f.seed
	}
	if flags.Changed("evals-per-dim") {
		e.EvalsPerDim = f.evalsPerDim
	}
	if flags.Changed("precision") {
		e.Precision = f.precision
	}
	if flags.Changed("data-dir") {
		e.DataDir = f.dataDir
	}
	return e, nil
}

// instantiate builds the benchmark function described by e
func instantiate(e *config.Experiment) (*bench.Instance, error) {
	fn, err := bench.New(e.Function, e.Dim, e.Seed, bench.WithPrecision(e.Precision))
	if err != nil {
		return nil, fmt.Errorf("failed to create benchmark: %w", err)
	}
	return fn, nil
}

// interruptContext is cancelled on Ctrl-C so runs can stop their members
// and still write what they have
func interruptContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt)
}
