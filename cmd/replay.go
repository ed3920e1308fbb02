package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/astroviz/navbench/internal/config"
	"github.com/astroviz/navbench/internal/render"
	"github.com/astroviz/navbench/internal/result"
	"github.com/astroviz/navbench/internal/trial"
)

var (
	flagReplayTrial int
	flagReplayFrame string
	flagReplaySeed  uint64
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run a single trial deterministically",
		Long:  "Reproduce one trial of a batch from the config's master seed and the trial index, printing the full record. The outcome is bit-identical to the batch run.",
		RunE:  runReplay,
	}
	cmd.Flags().IntVar(&flagReplayTrial, "trial", 0, "trial index to reproduce")
	cmd.Flags().StringVar(&flagReplayFrame, "frame", "", "write the rendered frame to this directory")
	cmd.Flags().Uint64Var(&flagReplaySeed, "seed", 0, "override master seed")
	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if flagReplaySeed > 0 {
		cfg.Batch.Seed = flagReplaySeed
	}
	if flagReplayTrial < 0 || flagReplayTrial >= cfg.Batch.Trials {
		return fmt.Errorf("trial %d outside batch [0, %d)", flagReplayTrial, cfg.Batch.Trials)
	}

	runner, err := trial.NewRunner(cfg)
	if err != nil {
		return err
	}
	if flagReplayFrame != "" {
		runner.OnFrame = func(rec *result.Record, im *render.Image) {
			if err := result.WriteFrame(flagReplayFrame, im); err != nil {
				fmt.Printf("warning: writing frame: %v\n", err)
			}
		}
	}

	renderer, err := render.New(cfg.Render.Options())
	if err != nil {
		return err
	}
	rec := runner.Run(cmd.Context(), flagReplayTrial, renderer)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
