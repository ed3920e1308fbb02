package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/astroviz/navbench/internal/config"
	"github.com/astroviz/navbench/internal/report"
)

var (
	flagFormat    string
	flagChartPath string
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [run-dir]",
		Short: "Generate summary from stored results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			runDir := filepath.Join(cfg.Results.Dir, "latest")
			if len(args) > 0 {
				runDir = args[0]
			}
			resolved, err := filepath.EvalSymlinks(runDir)
			if err != nil {
				return fmt.Errorf("resolving run dir: %w", err)
			}
			if flagChartPath != "" {
				recs, err := report.CollectRecords(resolved)
				if err != nil {
					return err
				}
				if err := report.WriteChart(recs, cfg.Name, flagChartPath); err != nil {
					return err
				}
				fmt.Printf("Chart: %s\n", flagChartPath)
			}
			return report.Generate(resolved, flagFormat, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	cmd.Flags().StringVar(&flagChartPath, "chart", "", "also write an HTML error-vs-range chart to this path")
	return cmd
}
