package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/samarth/ai/tracker"
)

// UsageCmd reports model calls recorded in ai_model_usage
var UsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show model usage and cost",
	Long:  "Summarize model calls, tokens and estimated cost over the last N days.",
	RunE:  runUsage,
}

var usageDays int

func init() {
	UsageCmd.Flags().IntVar(&usageDays, "days", 7, "Days to include")
}

func runUsage(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg.GetDatabasePath())
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := cmd.Context()
	t := tracker.NewUsageTracker(database)
	since := time.Now().AddDate(0, 0, -usageDays)

	stats, err := t.GetUsageStats(ctx, since)
	if err != nil {
		return err
	}
	byType, err := t.GetCallTypeBreakdown(ctx, since)
	if err != nil {
		return err
	}
	byModel, err := t.GetModelBreakdown(ctx, since)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pterm.DefaultSection.WithWriter(out).Printf("Model usage, last %d days", usageDays)
	fmt.Fprintf(out, "Calls:        %d (%.0f%% ok)\n", stats.TotalRequests, stats.SuccessRate*100)
	fmt.Fprintf(out, "Tokens:       %d\n", stats.TotalTokens)
	fmt.Fprintf(out, "Cost:         $%.4f\n", stats.TotalCost)
	fmt.Fprintf(out, "Models:       %d\n\n", stats.UniqueModels)

	if len(byType) > 0 {
		rows := pterm.TableData{{"Call type", "Calls", "Failed", "Tokens", "Cost"}}
		for _, b := range byType {
			rows = append(rows, []string{b.CallType, strconv.Itoa(b.RequestCount), strconv.Itoa(b.FailedCount),
				strconv.Itoa(b.TotalTokens), fmt.Sprintf("$%.4f", b.TotalCost)})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(rows).Render(); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}

	if len(byModel) > 0 {
		rows := pterm.TableData{{"Model", "Provider", "Calls", "Tokens", "Cost", "Avg ms"}}
		for _, m := range byModel {
			avg := "-"
			if m.AvgResponseTimeMs != nil {
				avg = fmt.Sprintf("%.0f", *m.AvgResponseTimeMs)
			}
			rows = append(rows, []string{m.ModelName, m.ModelProvider, strconv.Itoa(m.RequestCount),
				strconv.Itoa(m.TotalTokens), fmt.Sprintf("$%.4f", m.TotalCost), avg})
		}
		return pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(rows).Render()
	}
	return nil
}
