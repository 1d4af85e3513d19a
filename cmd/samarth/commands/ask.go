package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/samarth/logger"
	"github.com/teranos/samarth/qa/pipeline"
)

// AskCmd answers one question
var AskCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question",
	Long: `Answer a question about the loaded datasets.

The answer goes to stdout followed by its sources. With --json the full
result, trace included, is printed instead.

Examples:
  samarth ask "How many mandis are there in Punjab?"
  samarth ask --max-results 50 "List the mandis in Ludhiana district"
  samarth ask --json "Which crops are cereals?" | jq .trace.steps`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// ReplCmd asks questions in a loop
var ReplCmd = &cobra.Command{
	Use:   "repl",
	Short: "Ask questions interactively",
	Long:  "Read questions from stdin until exit, quit, q or end of input.",
	RunE:  runRepl,
}

var (
	askJSON       bool
	askMaxResults int
)

func init() {
	AskCmd.Flags().BoolVarP(&askJSON, "json", "j", false, "Print the full result as JSON")
	AskCmd.Flags().IntVar(&askMaxResults, "max-results", 0, "Evidence row cap (default: query.max_results)")
	ReplCmd.Flags().IntVar(&askMaxResults, "max-results", 0, "Evidence row cap (default: query.max_results)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := logger.WithComponent(cmd.Context(), "ask")
	a, err := newApp(ctx, askMaxResults)
	if err != nil {
		return err
	}
	defer a.Close()

	question := strings.Join(args, " ")
	ans := ask(ctx, a.pipeline, question, !askJSON)

	if askJSON {
		return writeJSON(cmd.OutOrStdout(), ans)
	}
	printDetails(cmd.ErrOrStderr(), ans.Trace, verbosityOf(cmd), a.callLogDir())
	printAnswer(cmd.OutOrStdout(), ans)
	if !ans.Success {
		return fmt.Errorf("question failed")
	}
	return nil
}

// isExit reports whether line ends the REPL
func isExit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit", "q":
		return true
	}
	return false
}

func runRepl(cmd *cobra.Command, args []string) error {
	ctx := logger.WithComponent(cmd.Context(), "repl")
	a, err := newApp(ctx, askMaxResults)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	verbosity := verbosityOf(cmd)
	pterm.DefaultSection.WithWriter(out).Println("samarth")
	fmt.Fprintf(out, "%d datasets loaded. Type exit, quit or q to leave.\n", a.registry.Len())
	if logger.ShouldOutput(verbosity, logger.OutputDatasets) {
		fmt.Fprintln(out, pterm.Gray(strings.Join(a.registry.Names(), ", ")))
	}
	fmt.Fprintln(out)

	return repl(ctx, cmd.InOrStdin(), out, func(q string) *pipeline.Answer {
		ans := ask(ctx, a.pipeline, q, true)
		printDetails(cmd.ErrOrStderr(), ans.Trace, verbosity, a.callLogDir())
		return ans
	})
}

// repl reads questions from in until an exit word or EOF
func repl(ctx context.Context, in io.Reader, out io.Writer, answer func(string) *pipeline.Answer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, pterm.Cyan("? "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isExit(line) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		printAnswer(out, answer(line))
		fmt.Fprintln(out)
	}
}

func ask(ctx context.Context, p *pipeline.Pipeline, question string, spin bool) *pipeline.Answer {
	if !spin {
		return p.Ask(ctx, question)
	}
	spinner, _ := pterm.DefaultSpinner.WithWriter(os.Stderr).WithRemoveWhenDone(true).Start("Thinking...")
	ans := p.Ask(ctx, question)
	if spinner != nil {
		_ = spinner.Stop()
	}
	return ans
}

func printAnswer(out io.Writer, ans *pipeline.Answer) {
	if !ans.Success {
		fmt.Fprintln(out, pterm.Red(ans.Trace.FinalAnswer))
		return
	}
	fmt.Fprintln(out, ans.Answer)
	if len(ans.Citations) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, pterm.LightCyan("Citations:"))
	for i, c := range ans.Citations {
		fmt.Fprintf(out, "  %d. %s %s\n", i+1, pterm.Bold.Sprint(c.Name), pterm.Gray("("+c.Source+")"))
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
