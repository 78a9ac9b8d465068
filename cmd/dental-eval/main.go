// Command dental-eval scores tooth detection model outputs against
// annotated ground truth.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/banshee-data/dental.report/internal/config"
	"github.com/banshee-data/dental.report/internal/fsutil"
	"github.com/banshee-data/dental.report/internal/timeutil"
)

var (
	configPath = flag.String("config", "", "Path to a JSON config file (see "+config.DefaultConfigPath+")")
	modelSel   = flag.String("model", "both", "Model to evaluate: legacy, current or both")
	noPlots    = flag.Bool("no-plots", false, "Skip PNG chart output")

	_ = flag.String("annotations", config.DefaultAnnotationDir, "Annotation directory")
	_ = flag.String("legacy", config.DefaultLegacyOutputDir, "Legacy (threshold) model output directory")
	_ = flag.String("current", config.DefaultCurrentOutputDir, "Current (presence) model output directory")
	_ = flag.Bool("legacy-sync", false, "Pair files by position and truncate the longer list (legacy behaviour)")
	_ = flag.Float64("threshold", config.DefaultThreshold, "Score threshold for the legacy model")
	_ = flag.Int("iterations", config.DefaultIterations, "Resampling iterations")
	_ = flag.Float64("fraction", config.DefaultSampleFraction, "Fraction of pairs drawn per iteration")
	_ = flag.Uint64("seed", 0, "Resampling seed (0 picks a time-based seed)")
	_ = flag.Int("workers", config.DefaultWorkers, "Parallel resampling workers")
	_ = flag.String("on-error", config.DefaultOnError, "Iteration failure mode: abort or skip")
	_ = flag.String("max-duration", config.DefaultMaxDuration.String(), "Resampling time limit")
	_ = flag.String("plots", config.DefaultPlotDir, "Chart output directory")
	_ = flag.String("html", "", "Write an HTML report to this path")
	_ = flag.String("db", "", "SQLite run store path (empty disables)")
)

// applyFlag copies one explicitly set flag onto cfg. Flags that do not
// map to a config field are ignored.
func applyFlag(cfg *config.EvalConfig, name, value string) error {
	switch name {
	case "annotations":
		cfg.AnnotationDir = &value
	case "legacy":
		cfg.LegacyOutputDir = &value
	case "current":
		cfg.CurrentOutputDir = &value
	case "on-error":
		cfg.OnError = &value
	case "max-duration":
		cfg.MaxDuration = &value
	case "plots":
		cfg.PlotDir = &value
	case "html":
		cfg.HTMLPath = &value
	case "db":
		cfg.DBPath = &value
	case "legacy-sync":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid -%s %q: %w", name, value, err)
		}
		cfg.LegacySync = &v
	case "threshold", "fraction":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid -%s %q: %w", name, value, err)
		}
		if name == "threshold" {
			cfg.Threshold = &v
		} else {
			cfg.SampleFraction = &v
		}
	case "iterations", "workers":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid -%s %q: %w", name, value, err)
		}
		if name == "iterations" {
			cfg.Iterations = &v
		} else {
			cfg.Workers = &v
		}
	case "seed":
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid -%s %q: %w", name, value, err)
		}
		cfg.Seed = &v
	}
	return nil
}

// loadConfig reads the optional config file and overlays every flag the
// user set explicitly.
func loadConfig(path string, visit func(func(*flag.Flag))) (*config.EvalConfig, error) {
	cfg := &config.EvalConfig{}
	if path != "" {
		var err error
		if cfg, err = config.LoadEvalConfig(path); err != nil {
			return nil, err
		}
	}
	var flagErr error
	visit(func(f *flag.Flag) {
		if err := applyFlag(cfg, f.Name, f.Value.String()); err != nil && flagErr == nil {
			flagErr = err
		}
	})
	if flagErr != nil {
		return nil, flagErr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: dental-eval [flags] <command>

Commands:
  compare     evaluate the selected models over the whole dataset
  per-tooth   per-tooth metrics for the selected models
  montecarlo  resampled metric distributions for the selected models
  history     list runs in the store (needs -db)
  version     print build information

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	cfg, err := loadConfig(*configPath, flag.Visit)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	a, err := newApp(cfg, *modelSel, !*noPlots, fsutil.OSFileSystem{}, os.Stdout, timeutil.RealClock{})
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = a.run(ctx, command)
	stop()
	if cerr := a.Close(); cerr != nil {
		log.Printf("failed to close run store: %v", cerr)
	}
	if err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}
