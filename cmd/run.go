package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/portfolio/internal/config"
	"github.com/cwbudde/portfolio/internal/credit"
	"github.com/cwbudde/portfolio/internal/population"
	"github.com/cwbudde/portfolio/internal/portfolio"
	"github.com/cwbudde/portfolio/internal/store"
)

var (
	runFlags     experimentFlags
	methods      []string
	members      int
	minEvals     int
	seederName   string
	strategyName string
	epsilon      float64
	assignName   string
	accrualName  string
	replayDir    string
	replayRecord int
	writeConfig  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a portfolio of stepped optimizers",
	Long: `Runs a population of optimizers on a benchmark function, stepping one
member at a time and choosing the next member by credit. Every step is
appended to <data-dir>/runs/<id>/progress.mdat and a summary is written
when the run ends.`,
	RunE: runPortfolio,
}

func init() {
	runFlags.register(runCmd.Flags())
	runCmd.Flags().StringSliceVar(&methods, "methods", nil, "Comma-separated methods, assigned to members round-robin")
	runCmd.Flags().IntVar(&members, "members", 0, "Population size (default 30 for one method, else one member per method)")
	runCmd.Flags().IntVar(&minEvals, "min-evals", population.DefaultMinEvals, "Minimum evaluations per member step")
	runCmd.Flags().StringVar(&seederName, "seeder", "uniform", "Restart point seeder for restarting methods (uniform, hop)")
	runCmd.Flags().StringVar(&strategyName, "strategy", "egreedy", "Member selection strategy")
	runCmd.Flags().Float64Var(&epsilon, "eps", portfolio.DefaultEpsilon, "Exploration probability of egreedy")
	runCmd.Flags().StringVar(&assignName, "assign", "raw", "Credit assignment policy (raw, ranked)")
	runCmd.Flags().StringVar(&accrualName, "accrual", "latest", "Credit accrual policy (latest, average, adapt<alpha>, trailing r resets on restart)")
	runCmd.Flags().StringVar(&replayDir, "replay-dir", "", "Directory with <method>.mdat files to replay instead of running methods")
	runCmd.Flags().IntVar(&replayRecord, "replay-record", 0, "Run section to replay from each replay file")
	runCmd.Flags().StringVar(&writeConfig, "write-config", "", "Write the effective experiment configuration to this path")

	rootCmd.AddCommand(runCmd)
}

func applyRunFlags(cmd *cobra.Command, e *config.Experiment) {
	flags := cmd.Flags()
	if flags.Changed("methods") {
		e.Population.Methods = methods
		if !flags.Changed("members") {
			e.Population.Members = 0
		}
	}
	if flags.Changed("members") {
		e.Population.Members = members
	}
	if flags.Changed("min-evals") {
		e.Population.MinEvals = minEvals
	}
	if flags.Changed("seeder") {
		e.Population.Seeder = seederName
	}
	if flags.Changed("strategy") {
		e.Strategy.Name = strategyName
	}
	if flags.Changed("eps") {
		e.Strategy.Epsilon = &epsilon
	}
	if flags.Changed("assign") {
		e.Credit.Assign = assignName
	}
	if flags.Changed("accrual") {
		e.Credit.Accrual = accrualName
	}
	if flags.Changed("replay-dir") {
		e.Replay.Dir = replayDir
	}
	if flags.Changed("replay-record") {
		e.Replay.Record = replayRecord
	}
}

func runPortfolio(cmd *cobra.Command, args []string) error {
	e, err := runFlags.load(cmd)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, e)
	if err := e.Finalize(); err != nil {
		return err
	}
	if writeConfig != "" {
		if err := e.Write(writeConfig); err != nil {
			return err
		}
	}

	fn, err := instantiate(e)
	if err != nil {
		return err
	}

	ctx, stop := interruptContext(cmd)
	defer stop()

	runID := uuid.New().String()
	slog.Info("Starting portfolio run",
		"run_id", runID,
		"function", e.Function,
		"dim", e.Dim,
		"methods", e.Population.Methods,
		"members", e.Population.Members,
		"strategy", e.Strategy.Name,
		"budget", e.MaxEvals())

	progress, err := store.NewProgressWriter(store.ProgressPath(e.DataDir, runID), false)
	if err != nil {
		return err
	}
	defer progress.Close()
	header := fmt.Sprintf("function evaluation | portfolio iteration | instance index | method | invocation | best noise-free fitness - Fopt | x1 | x2...; f=%s dim=%d fopt=%+.9e %s",
		e.Function, e.Dim, fn.Optimum(), strings.Join(e.Population.Methods, ","))
	if err := progress.Begin(header); err != nil {
		return err
	}

	pop, err := population.New(ctx, fn, e.Population.Members, population.Config{
		Methods:      e.Population.Methods,
		Params:       e.Population.Params,
		Seeder:       e.Population.Seeder,
		MinEvals:     e.Population.MinEvals,
		ReplayDir:    e.Replay.Dir,
		ReplayRecord: e.Replay.Record,
		Seed:         e.Seed,
	}, population.WithRecorder(progress))
	if err != nil {
		return fmt.Errorf("failed to create population: %w", err)
	}

	engine, err := credit.New(pop, e.Credit.Assign, e.Credit.Accrual)
	if err != nil {
		pop.Stop()
		return err
	}
	pop.AddListener(engine)

	strategy, err := portfolio.NewStrategy(e.Strategy.Name, portfolio.Options{Epsilon: e.Epsilon(), Seed: e.Seed})
	if err != nil {
		pop.Stop()
		return err
	}

	start := time.Now()
	res, runErr := portfolio.Run(ctx, pop, engine, strategy, e.MaxEvals())
	elapsed := time.Since(start)
	failed := runErr != nil && !errors.Is(runErr, context.Canceled)

	summary := &store.RunSummary{
		RunID:       runID,
		Function:    e.Function,
		Dim:         e.Dim,
		Seed:        e.Seed,
		Methods:     e.Population.Methods,
		Members:     pop.Len(),
		Strategy:    e.Strategy.Name,
		Assign:      e.Credit.Assign,
		Accrual:     e.Credit.Accrual,
		Evaluations: res.Evaluations,
		Iterations:  res.Iterations,
		BestDelta:   res.Best - fn.Optimum(),
		SolvedBy:    res.SolvedBy,
		Timestamp:   time.Now(),
	}
	if failed {
		summary.Error = runErr.Error()
	}
	if err := saveSummary(e.DataDir, summary); err != nil {
		if failed {
			return errors.Join(fmt.Errorf("portfolio run failed: %w", runErr), err)
		}
		return err
	}
	if failed {
		slog.Error("Portfolio run failed", "run_id", runID, "error", runErr)
		return fmt.Errorf("portfolio run failed: %w", runErr)
	}

	note := fmt.Sprintf(" with %d iterations", res.Iterations) + outcome(res.SolvedBy, res.Solved(), runErr != nil)
	fmt.Printf("  %-12s  %s in %d-D: FEs=%d/%d%s, fbest-ftarget=%.4e, elapsed time [s]: %.2f\n",
		e.Strategy.Name, e.Function, e.Dim, res.Evaluations, e.MaxEvals(), note,
		res.Best-fn.Target(), elapsed.Seconds())
	fmt.Printf("Run ID: %s\n", idStyle.Render(runID))

	slog.Info("Portfolio run finished",
		"run_id", runID,
		"evaluations", res.Evaluations,
		"iterations", res.Iterations,
		"solved_by", res.SolvedBy,
		"elapsed", elapsed)
	return nil
}

func saveSummary(dataDir string, summary *store.RunSummary) error {
	runStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}
	if err := runStore.SaveSummary(summary); err != nil {
		return fmt.Errorf("failed to save run summary: %w", err)
	}
	return nil
}
