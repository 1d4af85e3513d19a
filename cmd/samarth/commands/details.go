package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/samarth/logger"
	"github.com/teranos/samarth/trace"
)

func verbosityOf(cmd *cobra.Command) int {
	v, err := cmd.Flags().GetCount("verbose")
	if err != nil {
		return logger.VerbosityUser
	}
	return v
}

// printDetails writes the trace categories enabled at verbosity to out.
// Prompts live in the call logs, so only their paths are shown.
func printDetails(out io.Writer, tr *trace.Trace, verbosity int, callLogDir string) {
	if tr == nil || verbosity <= logger.VerbosityUser {
		return
	}

	heading := func(c logger.OutputCategory) {
		fmt.Fprintln(out, pterm.Gray("── "+logger.CategoryName(c)))
	}

	for _, s := range tr.Steps {
		if logger.ShouldOutput(verbosity, logger.OutputProgress) {
			status := pterm.Green("ok")
			if s.Error != "" {
				status = pterm.Red("failed")
			}
			fmt.Fprintf(out, "%d. %s %s\n", s.Step, s.Name, status)
		}

		if names, ok := s.Payload["relevant_datasets"].([]string); ok && logger.ShouldOutput(verbosity, logger.OutputSelection) {
			heading(logger.OutputSelection)
			fmt.Fprintln(out, strings.Join(names, ", "))
		}
		if program, ok := s.Payload["query_code"].(string); ok && logger.ShouldOutput(verbosity, logger.OutputQueryPlan) {
			heading(logger.OutputQueryPlan)
			fmt.Fprintln(out, program)
		}
		if summary, ok := s.Payload["evidence_summary"]; ok && logger.ShouldOutput(verbosity, logger.OutputEvidence) {
			heading(logger.OutputEvidence)
			_ = writeJSON(out, summary)
		}
		if s.CallID != "" && callLogDir != "" && logger.ShouldOutput(verbosity, logger.OutputPrompts) {
			heading(logger.OutputPrompts)
			fmt.Fprintln(out, filepath.Join(callLogDir, s.CallID+"_INPUT.txt"))
			if logger.ShouldOutput(verbosity, logger.OutputRawResponse) {
				fmt.Fprintln(out, filepath.Join(callLogDir, s.CallID+"_OUTPUT.txt"))
			}
		}
	}

	if logger.ShouldOutput(verbosity, logger.OutputTiming) {
		heading(logger.OutputTiming)
		var total int64
		for _, s := range tr.Steps {
			fmt.Fprintf(out, "%-36s %6d ms\n", s.Name, s.DurationMS)
			total += s.DurationMS
		}
		fmt.Fprintf(out, "%-36s %6d ms\n", "total", total)
	}
}
