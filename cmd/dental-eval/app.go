package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/dental.report/internal/config"
	"github.com/banshee-data/dental.report/internal/dataset"
	"github.com/banshee-data/dental.report/internal/evaluation"
	"github.com/banshee-data/dental.report/internal/fsutil"
	"github.com/banshee-data/dental.report/internal/monitoring"
	"github.com/banshee-data/dental.report/internal/report"
	"github.com/banshee-data/dental.report/internal/resample"
	"github.com/banshee-data/dental.report/internal/store"
	"github.com/banshee-data/dental.report/internal/teeth"
	"github.com/banshee-data/dental.report/internal/timeutil"
	"github.com/banshee-data/dental.report/internal/version"
)

// model is one detector output directory with the policy that scores it.
type model struct {
	Name   string
	Dir    string
	Policy evaluation.Policy
}

// selectModels maps the -model flag to the models to evaluate.
func selectModels(cfg *config.EvalConfig, sel string) ([]model, error) {
	var names []string
	switch strings.ToLower(strings.TrimSpace(sel)) {
	case "", "both":
		names = []string{"legacy", "current"}
	case "legacy", "old":
		names = []string{"legacy"}
	case "current", "new":
		names = []string{"current"}
	default:
		return nil, fmt.Errorf("unknown model %q (want legacy, current or both)", sel)
	}

	models := make([]model, 0, len(names))
	for _, name := range names {
		policy, err := evaluation.ParsePolicy(name, cfg.GetThreshold())
		if err != nil {
			return nil, err
		}
		dir := cfg.GetLegacyOutputDir()
		if name == "current" {
			dir = cfg.GetCurrentOutputDir()
		}
		models = append(models, model{Name: name, Dir: dir, Policy: policy})
	}
	return models, nil
}

type app struct {
	cfg    *config.EvalConfig
	fs     fsutil.FileSystem
	out    io.Writer
	clock  timeutil.Clock
	models []model
	plots  bool
	store  *store.Store
}

func newApp(cfg *config.EvalConfig, sel string, plots bool, fsys fsutil.FileSystem, out io.Writer, clock timeutil.Clock) (*app, error) {
	models, err := selectModels(cfg, sel)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, fs: fsys, out: out, clock: clock, models: models, plots: plots}
	if path := cfg.GetDBPath(); path != "" {
		s, err := store.OpenWithClock(path, clock)
		if err != nil {
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		a.store = s
	}
	return a, nil
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func (a *app) run(ctx context.Context, command string) error {
	switch command {
	case "compare":
		return a.compare()
	case "per-tooth":
		return a.perTooth()
	case "montecarlo":
		return a.monteCarlo(ctx)
	case "history":
		return a.history()
	case "version":
		fmt.Fprintf(a.out, "dental-eval %s\n", version.String())
		return nil
	}
	return fmt.Errorf("unknown command %q", command)
}

func (a *app) load(m model) ([]dataset.Pair, error) {
	loader := dataset.NewLoader(a.fs)
	annotations := a.cfg.GetAnnotationDir()

	var pairs []dataset.Pair
	var err error
	if a.cfg.GetLegacySync() {
		pairs, err = loader.LoadSynchronised(m.Dir, annotations)
	} else {
		pairs, err = loader.Load(m.Dir, annotations)
	}
	if err != nil {
		return nil, fmt.Errorf("%s model: %w", m.Name, err)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%s model: no paired files in %s and %s", m.Name, m.Dir, annotations)
	}
	monitoring.Logf("%s model: %d pairs from %s", m.Name, len(pairs), m.Dir)
	return pairs, nil
}

func (a *app) newRun(command string, m model, res report.ModelResult) *store.Run {
	return &store.Run{
		Command:       command,
		Policy:        m.Policy.Name(),
		OutputDir:     m.Dir,
		AnnotationDir: a.cfg.GetAnnotationDir(),
		Pairs:         res.Pairs,
		Counts:        res.Counts,
		Metrics:       res.Metrics,
	}
}

func (a *app) save(run *store.Run, labels []store.LabelMetric, dist resample.Distributions) error {
	if a.store == nil {
		return nil
	}
	if err := a.store.InsertRun(run, labels, dist); err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}
	monitoring.Logf("stored %s run %s", run.Command, run.RunID)
	return nil
}

func (a *app) plotter() *report.Plotter {
	return report.NewPlotter(a.fs, a.cfg.GetPlotDir())
}

func (a *app) writeHTML(title string, results []report.ModelResult) error {
	path := a.cfg.GetHTMLPath()
	if path == "" {
		return nil
	}
	page := report.Page{Title: title, Generated: a.clock.Now(), Models: results}
	if err := report.WriteHTML(a.fs, path, page); err != nil {
		return err
	}
	monitoring.Logf("wrote %s", path)
	return nil
}

// scoreMetrics fills res.Metrics or res.MetricsErr from res.Counts.
func scoreMetrics(res *report.ModelResult) {
	m, err := evaluation.Compute(res.Counts)
	if err != nil {
		res.MetricsErr = err
		return
	}
	res.Metrics = &m
}

// compare evaluates every selected model over the full dataset.
func (a *app) compare() error {
	var results []report.ModelResult
	var failed error
	for _, m := range a.models {
		pairs, err := a.load(m)
		if err != nil {
			return err
		}
		counts, err := evaluation.Run(pairs, teeth.Catalog(), m.Policy)
		if err != nil {
			return fmt.Errorf("%s model: %w", m.Name, err)
		}
		res := report.ModelResult{Name: m.Name, Policy: m.Policy.Name(), Pairs: len(pairs), Counts: counts}
		scoreMetrics(&res)
		if res.MetricsErr != nil && failed == nil {
			failed = fmt.Errorf("%s model: %w", m.Name, res.MetricsErr)
		}

		report.WriteHeader(a.out, m.Name+" model")
		report.WriteSummary(a.out, res)
		fmt.Fprintln(a.out)

		if err := a.save(a.newRun("compare", m, res), nil, nil); err != nil {
			return err
		}
		results = append(results, res)
	}

	if a.plots && len(results) > 0 {
		if path, err := a.plotter().Comparison(results); err != nil {
			monitoring.Warnf("comparison chart: %v", err)
		} else {
			monitoring.Logf("wrote %s", path)
		}
	}
	if err := a.writeHTML("Dental detection: model comparison", results); err != nil {
		return err
	}
	return failed
}

// perTooth evaluates every selected model tooth by tooth.
func (a *app) perTooth() error {
	var results []report.ModelResult
	for _, m := range a.models {
		pairs, err := a.load(m)
		if err != nil {
			return err
		}
		lc, err := evaluation.RunLabels(pairs, teeth.Catalog(), m.Policy)
		if err != nil {
			return fmt.Errorf("%s model: %w", m.Name, err)
		}
		res := report.ModelResult{
			Name:   m.Name,
			Policy: m.Policy.Name(),
			Pairs:  len(pairs),
			Counts: lc.Total(),
			Labels: lc,
		}
		scoreMetrics(&res)
		res.LabelMetrics, res.LabelErrors = evaluation.ComputePerLabel(lc, teeth.Catalog())

		report.WriteHeader(a.out, m.Name+" model")
		report.WriteSummary(a.out, res)
		fmt.Fprintln(a.out)
		report.WritePerTooth(a.out, res)
		fmt.Fprintln(a.out)

		labels := make([]store.LabelMetric, 0, len(lc))
		for _, l := range teeth.Catalog() {
			c, ok := lc[l]
			if !ok {
				continue
			}
			lm := store.LabelMetric{Label: l, Counts: *c}
			if v, ok := res.LabelMetrics[l]; ok {
				lm.Metrics = &v
			}
			labels = append(labels, lm)
		}
		if err := a.save(a.newRun("per-tooth", m, res), labels, nil); err != nil {
			return err
		}

		if a.plots {
			if path, err := a.plotter().PerTooth(res); err != nil {
				monitoring.Warnf("per-tooth chart: %v", err)
			} else {
				monitoring.Logf("wrote %s", path)
			}
		}
		results = append(results, res)
	}
	return a.writeHTML("Dental detection: per-tooth metrics", results)
}

// monteCarlo estimates metric distributions for every selected model.
func (a *app) monteCarlo(ctx context.Context) error {
	onError, err := resample.ParseOnError(a.cfg.GetOnError())
	if err != nil {
		return err
	}
	seed := a.cfg.GetSeed(a.clock.Now())
	monitoring.Logf("resampling with seed %d", seed)

	ctx, cancel := context.WithTimeout(ctx, a.cfg.GetMaxDuration())
	defer cancel()

	var results []report.ModelResult
	for _, m := range a.models {
		pairs, err := a.load(m)
		if err != nil {
			return err
		}
		est := &resample.Estimator{
			Iterations: a.cfg.GetIterations(),
			Fraction:   a.cfg.GetSampleFraction(),
			Seed:       seed,
			Workers:    a.cfg.GetWorkers(),
			OnError:    onError,
		}
		start := a.clock.Now()
		rs, err := est.Estimate(ctx, pairs, m.Policy)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%s model: resampling exceeded %v: %w", m.Name, a.cfg.GetMaxDuration(), err)
			}
			return fmt.Errorf("%s model: %w", m.Name, err)
		}
		monitoring.Logf("%s model: %d iterations in %v", m.Name, est.Iterations, a.clock.Since(start).Round(time.Millisecond))

		res := report.ModelResult{Name: m.Name, Policy: m.Policy.Name(), Pairs: len(pairs), Resample: rs}
		if means := res.Summaries(); len(means) > 0 {
			res.Metrics = &evaluation.Metrics{
				Error:     means[evaluation.MetricError].Mean,
				Accuracy:  means[evaluation.MetricAccuracy].Mean,
				Precision: means[evaluation.MetricPrecision].Mean,
				Recall:    means[evaluation.MetricRecall].Mean,
				F1:        means[evaluation.MetricF1].Mean,
			}
		}

		report.WriteHeader(a.out, "Monte Carlo: "+m.Name+" model")
		report.WriteDistributions(a.out, res)
		fmt.Fprintln(a.out)

		run := a.newRun("montecarlo", m, res)
		run.Iterations = est.Iterations
		run.Fraction = est.Fraction
		run.Seed = seed
		run.SampleSize = rs.SampleSize
		run.Skipped = rs.Skipped
		if err := a.save(run, nil, rs.Distributions); err != nil {
			return err
		}

		if a.plots {
			if path, err := a.plotter().Histograms(res); err != nil {
				monitoring.Warnf("histograms: %v", err)
			} else {
				monitoring.Logf("wrote %s", path)
			}
		}
		results = append(results, res)
	}
	return a.writeHTML("Dental detection: resampled metrics", results)
}

// history lists stored runs, newest first.
func (a *app) history() error {
	if a.store == nil {
		return errors.New("history needs a run store; set -db or db_path")
	}
	runs, err := a.store.ListRuns(20)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "run_id\tcreated\tcommand\tpolicy\tpairs\taccuracy\tf1")
	for _, r := range runs {
		acc, f1 := "-", "-"
		if r.Metrics != nil {
			acc = fmt.Sprintf("%.4f", r.Metrics.Accuracy)
			f1 = fmt.Sprintf("%.4f", r.Metrics.F1)
			// Resampled runs store distribution means, not single-pass ratios.
			if r.Iterations > 0 {
				acc += " (mean)"
				f1 += " (mean)"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.RunID, time.Unix(0, r.CreatedAt).UTC().Format(time.RFC3339),
			r.Command, r.Policy, r.Pairs, acc, f1)
	}
	return tw.Flush()
}
