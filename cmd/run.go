package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/astroviz/navbench/internal/config"
	"github.com/astroviz/navbench/internal/render"
	"github.com/astroviz/navbench/internal/report"
	"github.com/astroviz/navbench/internal/result"
	"github.com/astroviz/navbench/internal/trial"
)

var (
	flagTrials     int
	flagWorkers    int
	flagSeed       uint64
	flagKeepFrames bool
	flagChart      bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a Monte Carlo batch",
		RunE:  runBatch,
	}
	cmd.Flags().IntVar(&flagTrials, "trials", 0, "override trial count")
	cmd.Flags().IntVar(&flagWorkers, "workers", 0, "override worker count")
	cmd.Flags().Uint64Var(&flagSeed, "seed", 0, "override master seed")
	cmd.Flags().BoolVar(&flagKeepFrames, "keep-frames", false, "retain rendered frames for failed trials")
	cmd.Flags().BoolVar(&flagChart, "chart", false, "write an HTML error-vs-range chart into the run dir")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if flagTrials > 0 {
		cfg.Batch.Trials = flagTrials
	}
	if flagWorkers > 0 {
		cfg.Batch.Workers = flagWorkers
	}
	if flagSeed > 0 {
		cfg.Batch.Seed = flagSeed
	}
	if flagKeepFrames {
		cfg.Results.KeepFrames = true
	}

	runner, err := trial.NewRunner(cfg)
	if err != nil {
		return err
	}

	runDir, err := result.CreateRunDir(cfg.Results.Dir)
	if err != nil {
		return err
	}
	if cfg.Results.KeepFrames {
		runner.OnFrame = func(rec *result.Record, im *render.Image) {
			if rec.State != result.StateFailed {
				return
			}
			if err := result.WriteFrame(result.TrialDir(runDir, rec.Trial), im); err != nil {
				fmt.Printf("  warning: trial %d frame: %v\n", rec.Trial, err)
			}
		}
	}
	fmt.Printf("Run directory: %s\n", runDir)

	store, err := result.OpenStore(filepath.Join(cfg.Results.Dir, "results.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	cfgBlob, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("serializing config: %w", err)
	}
	runID, err := store.CreateRun(cfg.Name, string(cfgBlob))
	if err != nil {
		return err
	}
	fmt.Printf("Run ID: %s\n", runID)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var storeMu sync.Mutex
	recs := runner.RunBatch(ctx, func(rec *result.Record) {
		trialDir := result.TrialDir(runDir, rec.Trial)
		if err := result.WriteRecord(trialDir, rec); err != nil {
			fmt.Printf("  warning: trial %d: %v\n", rec.Trial, err)
		}
		storeMu.Lock()
		if err := store.InsertRecord(runID, rec); err != nil {
			fmt.Printf("  warning: trial %d: %v\n", rec.Trial, err)
		}
		storeMu.Unlock()
		fmt.Printf("trial %d: %s", rec.Trial, rec.State)
		if rec.Reason != "" {
			fmt.Printf(" (%s)", rec.Reason)
		}
		fmt.Println()
	})

	if flagChart {
		chartPath := filepath.Join(runDir, "errors.html")
		if err := report.WriteChart(recs, cfg.Name, chartPath); err != nil {
			fmt.Printf("warning: writing chart: %v\n", err)
		} else {
			fmt.Printf("Chart: %s\n", chartPath)
		}
	}

	fmt.Println("\n--- Summary ---")
	return report.Write(report.Aggregate(recs), "table", os.Stdout)
}
