package commands

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// DatasetsCmd lists the datasets loaded from data.dir
var DatasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List loaded datasets",
	Long:  "Load every CSV in data.dir and show its name, size and catalog description.",
	RunE:  runDatasets,
}

func runDatasets(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registry, catalog, err := loadData(cfg)
	if err != nil {
		return err
	}

	rows := pterm.TableData{{"Dataset", "Rows", "Columns", "Description"}}
	for _, name := range registry.Names() {
		d, err := registry.Get(name)
		if err != nil {
			return err
		}
		rows = append(rows, []string{
			name,
			strconv.Itoa(d.RowCount()),
			strconv.Itoa(len(d.Columns())),
			catalog.Describe(name),
		})
	}

	out := cmd.OutOrStdout()
	if err := pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(rows).Render(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d datasets from %s\n", registry.Len(), cfg.Data.Dir)
	return nil
}
