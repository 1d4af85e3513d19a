package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/samarth/cmd/samarth/commands"
	"github.com/teranos/samarth/logger"
)

var rootCmd = &cobra.Command{
	Use:   "samarth",
	Short: "samarth - cited answers from Indian government datasets",
	Long: `samarth - ask questions about Indian government datasets in plain language.

Each question is turned into a query plan by a language model, the plan runs
against the loaded CSV datasets, and a second model call writes an answer that
cites its sources. Every question leaves a trace.

Available commands:
  ask      - Answer one question
  repl     - Ask questions interactively
  datasets - List loaded datasets
  traces   - Inspect saved question traces
  usage    - Show model usage and cost
  am       - Manage configuration ("I am")
  db       - Manage the samarth database

Examples:
  samarth ask "How many mandis are there in Punjab?"
  samarth ask --json "Which districts neighbour Ludhiana?"
  samarth repl
  samarth traces ls --limit 5`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.InitializeWithVerbosity(false, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	rootCmd.AddCommand(commands.AskCmd)
	rootCmd.AddCommand(commands.ReplCmd)
	rootCmd.AddCommand(commands.DatasetsCmd)
	rootCmd.AddCommand(commands.TracesCmd)
	rootCmd.AddCommand(commands.UsageCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
