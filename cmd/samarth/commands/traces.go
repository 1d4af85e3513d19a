package commands

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/trace"
)

// TracesCmd inspects saved question traces
var TracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "Inspect saved question traces",
	Long: `Inspect question traces stored in the samarth database.
show also reads TRACE_*.json files from the trace directory.

Examples:
  samarth traces ls               # Most recent 20 traces
  samarth traces ls --limit 5
  samarth traces show <id|target> # Full trace as JSON`,
}

var tracesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recent traces",
	RunE:  runTracesLs,
}

var tracesShowCmd = &cobra.Command{
	Use:   "show <id|target>",
	Short: "Show one trace",
	Args:  cobra.ExactArgs(1),
	RunE:  runTracesShow,
}

var tracesLimit int

func init() {
	tracesLsCmd.Flags().IntVar(&tracesLimit, "limit", 20, "Number of traces to show")
	TracesCmd.AddCommand(tracesLsCmd)
	TracesCmd.AddCommand(tracesShowCmd)
}

func openTraceStore() (*trace.SQLiteStore, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	database, err := openDatabase(cfg.GetDatabasePath())
	if err != nil {
		return nil, nil, err
	}
	return trace.NewSQLiteStore(database), func() { database.Close() }, nil
}

func runTracesLs(cmd *cobra.Command, args []string) error {
	store, closeFn, err := openTraceStore()
	if err != nil {
		return err
	}
	defer closeFn()

	list, err := store.List(cmd.Context(), tracesLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No traces yet. Ask a question with: samarth ask \"...\"")
		return nil
	}

	rows := pterm.TableData{{"ID", "When", "OK", "Question"}}
	for _, s := range list {
		ok := pterm.Green("✓")
		if !s.Success {
			ok = pterm.Red("✗")
		}
		rows = append(rows, []string{shortID(s.ID), s.CreatedAt.Local().Format("2006-01-02 15:04:05"), ok, truncate(s.Question, 60)})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(rows).Render()
}

func runTracesShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var store traceGetter
	if cfg.Trace.SQLite {
		database, err := openDatabase(cfg.GetDatabasePath())
		if err != nil {
			return err
		}
		defer database.Close()
		store = trace.NewSQLiteStore(database)
	}

	t, err := findTrace(cmd.Context(), args[0], store, trace.NewFileSink(cfg.GetTraceDir()))
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), t)
}

type traceGetter interface {
	Get(ctx context.Context, key string) (*trace.Trace, error)
}

// findTrace looks key up in store, then among the trace files by target.
// store may be nil.
func findTrace(ctx context.Context, key string, store traceGetter, files *trace.FileSink) (*trace.Trace, error) {
	if store != nil {
		t, err := store.Get(ctx, key)
		if !errors.IsNotFoundError(err) {
			return t, err
		}
	}
	return files.Load(key)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
