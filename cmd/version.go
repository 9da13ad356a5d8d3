package main

import (
	"fmt"
	"strings"

	"github.com/cwbudde/portfolio/internal/bench"
	"github.com/cwbudde/portfolio/internal/credit"
	"github.com/cwbudde/portfolio/internal/opt"
	"github.com/cwbudde/portfolio/internal/portfolio"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("portfolio version %s\n", version)
	},
}

var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "List available methods, functions and policies",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(labelStyle.Render("methods:"), strings.Join(opt.Names(), ", "))
		fmt.Println(labelStyle.Render("functions:"), strings.Join(bench.Names(), ", "))
		fmt.Println(labelStyle.Render("strategies:"), strings.Join(portfolio.Strategies(), ", "))
		fmt.Println(labelStyle.Render("assign:"), strings.Join(credit.AssignNames(), ", "))
		fmt.Println(labelStyle.Render("accrual:"), strings.Join(credit.AccrualNames(), ", "), "(append r to reset on restart)")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(methodsCmd)
}
