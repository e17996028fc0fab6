package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/llm-inferno/config-explorer/internal/logger"
	"github.com/llm-inferno/config-explorer/internal/metrics"
	"github.com/llm-inferno/config-explorer/internal/runner"
	"github.com/llm-inferno/config-explorer/internal/simulator"
	"github.com/llm-inferno/config-explorer/pkg/checkpoint"
	"github.com/llm-inferno/config-explorer/pkg/config"
	"github.com/llm-inferno/config-explorer/pkg/rest"
)

var (
	specPath      string
	perfPath      string
	checkpointDir string
	modeOverride  string
	serveResults  bool
)

func newExploreCommand(registry *prometheus.Registry) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Run a configuration-space search from a profile spec",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := config.Load(specPath)
			if err != nil {
				return err
			}
			if checkpointDir != "" {
				spec.CheckpointDir = checkpointDir
			}
			if spec.CheckpointDir == "" {
				return fmt.Errorf("no checkpoint directory given in the spec or with --checkpoint-dir")
			}
			if modeOverride != "" {
				spec.Mode = config.SearchMode(modeOverride)
			}

			// the measurement oracle is simulated; a real serving stack
			// plugs in through the same interface
			var sim *simulator.Oracle
			if perfPath != "" {
				perf, err := simulator.LoadPerf(perfPath)
				if err != nil {
					return err
				}
				sim = simulator.New(perf.Models...)
			} else {
				sim = simulator.New()
			}

			store := checkpoint.NewStore(spec.CheckpointDir)
			r := &runner.Runner{
				Spec:          spec,
				Oracle:        sim,
				Store:         store,
				HandleSignals: true,
			}
			report, err := r.Run(context.Background())
			if err != nil {
				return err
			}

			log := logger.Get()
			for model, sel := range report.Selections {
				for rank, finalist := range sel.Ranked {
					log.Infow("finalist",
						"model", model,
						"rank", rank+1,
						"score", finalist.Score,
						"satisfiesConstraints", finalist.Satisfies,
						"config", finalist.Config.String())
				}
			}
			for _, warning := range report.Warnings {
				log.Warn(warning)
			}

			if serveResults {
				return rest.NewServer(store, report).WithMetrics(registry).Run()
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&specPath, "spec", "f", "", "path to the profile spec YAML")
	cmd.Flags().StringVar(&perfPath, "perf", "", "path to simulated model performance parameters YAML")
	cmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "checkpoint directory, overrides the spec")
	cmd.Flags().StringVar(&modeOverride, "mode", "", "search mode override: brute | quick | heuristic-optimizer")
	cmd.Flags().BoolVar(&serveResults, "serve", false, "serve results over HTTP after the search")
	cobra.CheckErr(cmd.MarkFlagRequired("spec"))
	return cmd
}

func newServeCommand(registry *prometheus.Registry) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the measurements of a checkpoint directory over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkpointDir == "" {
				return fmt.Errorf("--checkpoint-dir is required")
			}
			store := checkpoint.NewStore(checkpointDir)
			return rest.NewServer(store, nil).WithMetrics(registry).Run()
		},
	}
	cmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "checkpoint directory to serve")
	return cmd
}

func main() {
	if _, err := logger.InitLogger(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.SyncLogger()

	registry := prometheus.NewRegistry()
	metrics.InitMetrics(registry)

	root := &cobra.Command{
		Use:   "config-explorer",
		Short: "Near-optimal serving configuration search for inference models",
	}
	root.AddCommand(newExploreCommand(registry))
	root.AddCommand(newServeCommand(registry))

	if err := root.Execute(); err != nil {
		logger.Get().Errorw("command failed", "error", err)
		logger.SyncLogger()
		os.Exit(1)
	}
}
