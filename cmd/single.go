package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/portfolio/internal/portfolio"
)

var (
	singleFlags    experimentFlags
	singleMethod   string
	singleRestarts int
	singleSeeder   string
)

var singleCmd = &cobra.Command{
	Use:   "single",
	Short: "Run one method with independent restarts",
	Long: `Minimizes the benchmark with a single method, restarting it from a
fresh random point whenever it terminates or exhausts its share of the
budget. The budget is split evenly across the planned restarts.`,
	RunE: runSingle,
}

func init() {
	singleFlags.register(singleCmd.Flags())
	singleCmd.Flags().StringVar(&singleMethod, "method", "nelder-mead", "Optimization method")
	singleCmd.Flags().IntVar(&singleRestarts, "restarts", 0, "Planned number of restarts")
	singleCmd.Flags().StringVar(&singleSeeder, "seeder", "uniform", "Restart point seeder for restarting methods")

	rootCmd.AddCommand(singleCmd)
}

func runSingle(cmd *cobra.Command, args []string) error {
	e, err := singleFlags.load(cmd)
	if err != nil {
		return err
	}
	if err := e.Finalize(); err != nil {
		return err
	}
	fn, err := instantiate(e)
	if err != nil {
		return err
	}

	ctx, stop := interruptContext(cmd)
	defer stop()

	slog.Info("Starting single-method run", "method", singleMethod, "function", e.Function, "dim", e.Dim, "restarts", singleRestarts)

	start := time.Now()
	res, err := portfolio.RunSingle(ctx, fn, portfolio.SingleConfig{
		Method:   singleMethod,
		Params:   e.Population.Params[singleMethod],
		Restarts: singleRestarts,
		MaxEvals: e.MaxEvals(),
		Seeder:   singleSeeder,
		Seed:     e.Seed,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("single run failed: %w", err)
	}

	fmt.Printf("  %-12s  %s in %d-D: FEs=%d/%d with %d restarts%s, fbest-ftarget=%.4e, elapsed time [s]: %.2f\n",
		singleMethod, e.Function, e.Dim, res.Evaluations, e.MaxEvals(), res.Restarts,
		outcome(singleMethod, res.Solved, err != nil), res.Best-fn.Target(), time.Since(start).Seconds())
	return nil
}
