package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/astroviz/navbench/internal/config"
	"github.com/astroviz/navbench/internal/trial"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the scenario configuration",
		Long:  "Load the config, apply defaults, and build the full trial machinery without running anything, reporting the first problem found.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if _, err := trial.NewRunner(cfg); err != nil {
				return fmt.Errorf("building trial runner: %w", err)
			}
			fmt.Printf("%s: ok\n", cfgFile)
			fmt.Printf("  target: %d landmarks, semi-axes %v\n", cfg.Target.Landmarks, cfg.Target.SemiAxes)
			fmt.Printf("  camera: %dx%d, hfov %.1f deg\n", cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.HFOVDeg)
			fmt.Printf("  batch:  %d trials, %d workers, seed %d\n", cfg.Batch.Trials, cfg.Batch.Workers, cfg.Batch.Seed)
			return nil
		},
	}
}
