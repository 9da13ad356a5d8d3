package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	logLevel  string
	logFormat string
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Portfolio minimization with stepped optimizers",
	Long: `Portfolio interleaves a population of black-box minimizers one
iteration at a time and spends the evaluation budget on the members with
the best credit.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the result lines
		handler, err := newLogHandler(os.Stderr, logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = slog.New(handler)
		slog.SetDefault(logger)
		return nil
	},
}

// newLogHandler builds the slog handler selected on the command line.
// Unknown levels fall back to info.
func newLogHandler(w io.Writer, level, format string) (slog.Handler, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "json", "":
		return slog.NewJSONHandler(w, opts), nil
	case "text":
		return slog.NewTextHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want json or text)", format)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format (json, text)")
}
