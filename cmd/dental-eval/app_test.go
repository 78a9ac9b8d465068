package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dental.report/internal/config"
	"github.com/banshee-data/dental.report/internal/evaluation"
	"github.com/banshee-data/dental.report/internal/fsutil"
	"github.com/banshee-data/dental.report/internal/monitoring"
	"github.com/banshee-data/dental.report/internal/testutil"
	"github.com/banshee-data/dental.report/internal/timeutil"
)

func quiet(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = original })
	monitoring.SetLogger(nil)
}

func ptr[T any](v T) *T { return &v }

// newFixture writes 10 annotated images with outputs from both models.
func newFixture(t *testing.T) *fsutil.MemoryFileSystem {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	ann := map[string][]byte{}
	legacy := map[string][]byte{}
	current := map[string][]byte{}
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("img%02d", i)
		ann[name+".json"] = testutil.AnnotationJSON(t, "11", "12", "21", "36")
		legacy[name+".json"] = testutil.PredictionJSON(t, testutil.AllTeeth(0.02).
			With("11", 0.9).With("12", 0.8).With("21", 0.05).With("46", 0.6))
		current[name+".json"] = testutil.PredictionJSON(t, testutil.Scores{"11": 1, "12": 1, "36": 1})
	}
	testutil.WriteFiles(t, mfs, "ann", ann)
	testutil.WriteFiles(t, mfs, "legacy", legacy)
	testutil.WriteFiles(t, mfs, "current", current)
	return mfs
}

func baseConfig() *config.EvalConfig {
	return &config.EvalConfig{
		AnnotationDir:    ptr("ann"),
		LegacyOutputDir:  ptr("legacy"),
		CurrentOutputDir: ptr("current"),
		PlotDir:          ptr("plots"),
	}
}

func newTestApp(t *testing.T, cfg *config.EvalConfig, sel string, fsys fsutil.FileSystem) (*app, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	a, err := newApp(cfg, sel, true, fsys, &out, timeutil.NewMockClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, &out
}

func TestCompare(t *testing.T) {
	quiet(t)
	mfs := newFixture(t)
	cfg := baseConfig()
	cfg.HTMLPath = ptr("report/index.html")
	a, out := newTestApp(t, cfg, "both", mfs)

	require.NoError(t, a.run(context.Background(), "compare"))

	text := out.String()
	assert.Contains(t, text, "------------- legacy model ---------------")
	assert.Contains(t, text, "------------- current model ---------------")
	// legacy: per image TP 11,12; FN 21,36; FP 46; 27 TN -> 29 correct of 32.
	assert.Contains(t, text, "Hits: 290\nErrors: 30\nFalse positives: 10\nFalse negatives: 20\n")
	// current: TP 11,12,36; FN 21 -> 31 correct of 32.
	assert.Contains(t, text, "Hits: 310\nErrors: 10\nFalse positives: 0\nFalse negatives: 10\n")
	assert.Contains(t, text, "Precision: 100.00%")

	assert.True(t, mfs.Exists("plots/comparison.png"))
	assert.True(t, mfs.Exists("report/index.html"))
}

func TestCompare_MissingPredictionAborts(t *testing.T) {
	quiet(t)
	mfs := newFixture(t)
	require.NoError(t, mfs.WriteFile("legacy/img03.json",
		testutil.PredictionJSON(t, testutil.AllTeeth(0.5).Without("28")), 0644))
	a, _ := newTestApp(t, baseConfig(), "legacy", mfs)

	err := a.run(context.Background(), "compare")
	var missing *evaluation.MissingPredictionError
	require.True(t, errors.As(err, &missing))
	assert.Contains(t, err.Error(), "img03")
}

func TestCompare_DegenerateMetrics(t *testing.T) {
	quiet(t)
	mfs := fsutil.NewMemoryFileSystem()
	testutil.WriteFiles(t, mfs, "ann", map[string][]byte{"a.json": testutil.AnnotationJSON(t)})
	testutil.WriteFiles(t, mfs, "current", map[string][]byte{"a.json": testutil.PredictionJSON(t, testutil.Scores{})})
	a, out := newTestApp(t, baseConfig(), "current", mfs)

	err := a.run(context.Background(), "compare")
	var degenerate *evaluation.DegenerateMetricError
	require.True(t, errors.As(err, &degenerate))
	assert.Contains(t, out.String(), "Metrics unavailable")
}

func TestPerTooth(t *testing.T) {
	quiet(t)
	mfs := newFixture(t)
	a, out := newTestApp(t, baseConfig(), "current", mfs)

	require.NoError(t, a.run(context.Background(), "per-tooth"))

	text := out.String()
	assert.Contains(t, text, "Tooth 11: Error: 0.00, Accuracy: 1.00, Precision: 1.00, Recall: 1.00, F1-Score: 1.00")
	assert.Contains(t, text, "Tooth 21: precision undefined")
	assert.True(t, strings.Contains(text, "Tooth 48: precision undefined"))
	assert.True(t, mfs.Exists("plots/per_tooth_current.png"))
}

func TestMonteCarlo_WithStore(t *testing.T) {
	quiet(t)
	mfs := newFixture(t)
	cfg := baseConfig()
	cfg.Iterations = ptr(25)
	cfg.SampleFraction = ptr(0.5)
	cfg.Seed = ptr(uint64(11))
	cfg.Workers = ptr(3)
	cfg.DBPath = ptr(filepath.Join(t.TempDir(), "runs.db"))
	a, out := newTestApp(t, cfg, "legacy", mfs)

	require.NoError(t, a.run(context.Background(), "montecarlo"))
	assert.Contains(t, out.String(), "Monte Carlo: legacy model")
	assert.Contains(t, out.String(), "Sample size: 5 pairs per iteration")
	assert.True(t, mfs.Exists("plots/montecarlo_legacy.png"))

	runs, err := a.store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "montecarlo", runs[0].Command)
	assert.Equal(t, uint64(11), runs[0].Seed)
	assert.Equal(t, 25, runs[0].Iterations)

	dist, err := a.store.Distributions(runs[0].RunID)
	require.NoError(t, err)
	assert.Len(t, dist[evaluation.MetricF1], 25)

	out.Reset()
	require.NoError(t, a.run(context.Background(), "history"))
	assert.Contains(t, out.String(), runs[0].RunID)
	assert.Contains(t, out.String(), "2024-03-01T10:00:00Z")
	require.NotNil(t, runs[0].Metrics)
	assert.Contains(t, out.String(), fmt.Sprintf("%.4f (mean)", runs[0].Metrics.Accuracy))
}

func TestMonteCarlo_Cancelled(t *testing.T) {
	quiet(t)
	cfg := baseConfig()
	cfg.Iterations = ptr(10)
	a, _ := newTestApp(t, cfg, "current", newFixture(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := a.run(ctx, "montecarlo")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHistory_NeedsStore(t *testing.T) {
	a, _ := newTestApp(t, baseConfig(), "both", newFixture(t))
	assert.Error(t, a.run(context.Background(), "history"))
}

func TestRun_VersionAndUnknown(t *testing.T) {
	a, out := newTestApp(t, baseConfig(), "both", newFixture(t))

	require.NoError(t, a.run(context.Background(), "version"))
	assert.True(t, strings.HasPrefix(out.String(), "dental-eval dev"))
	assert.Error(t, a.run(context.Background(), "plot"))
}

func TestLoad_NoPairs(t *testing.T) {
	quiet(t)
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("ann", 0755))
	require.NoError(t, mfs.MkdirAll("legacy", 0755))
	a, _ := newTestApp(t, baseConfig(), "legacy", mfs)

	err := a.run(context.Background(), "compare")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no paired files")
}

func TestLegacySync(t *testing.T) {
	quiet(t)
	mfs := newFixture(t)
	require.NoError(t, mfs.WriteFile("legacy/extra.json", testutil.PredictionJSON(t, testutil.AllTeeth(0.5)), 0644))
	cfg := baseConfig()
	cfg.LegacySync = ptr(true)
	a, out := newTestApp(t, cfg, "legacy", mfs)

	require.NoError(t, a.run(context.Background(), "compare"))
	assert.Contains(t, out.String(), "Hits: ")
}

func TestSelectModels(t *testing.T) {
	cfg := &config.EvalConfig{Threshold: ptr(0.3)}

	models, err := selectModels(cfg, "both")
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, evaluation.ThresholdPolicy{Threshold: 0.3}, models[0].Policy)
	assert.Equal(t, config.DefaultLegacyOutputDir, models[0].Dir)
	assert.Equal(t, evaluation.PresenceOnlyPolicy{}, models[1].Policy)
	assert.Equal(t, config.DefaultCurrentOutputDir, models[1].Dir)

	models, err = selectModels(cfg, "new")
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "current", models[0].Name)

	_, err = selectModels(cfg, "ensemble")
	assert.Error(t, err)
}

func TestApplyFlag(t *testing.T) {
	cfg := &config.EvalConfig{}
	for name, value := range map[string]string{
		"annotations": "a", "legacy": "l", "current": "c", "legacy-sync": "true",
		"threshold": "0.2", "iterations": "7", "fraction": "0.5", "seed": "3",
		"workers": "2", "on-error": "skip", "max-duration": "1m", "plots": "p",
		"html": "r.html", "db": "x.db", "model": "ignored",
	} {
		require.NoError(t, applyFlag(cfg, name, value), name)
	}

	assert.Equal(t, "a", cfg.GetAnnotationDir())
	assert.Equal(t, "l", cfg.GetLegacyOutputDir())
	assert.Equal(t, "c", cfg.GetCurrentOutputDir())
	assert.True(t, cfg.GetLegacySync())
	assert.Equal(t, 0.2, cfg.GetThreshold())
	assert.Equal(t, 7, cfg.GetIterations())
	assert.Equal(t, 0.5, cfg.GetSampleFraction())
	assert.Equal(t, uint64(3), cfg.GetSeed(time.Now()))
	assert.Equal(t, 2, cfg.GetWorkers())
	assert.Equal(t, "skip", cfg.GetOnError())
	assert.Equal(t, time.Minute, cfg.GetMaxDuration())
	assert.Equal(t, "p", cfg.GetPlotDir())
	assert.Equal(t, "r.html", cfg.GetHTMLPath())
	assert.Equal(t, "x.db", cfg.GetDBPath())

	assert.Error(t, applyFlag(cfg, "iterations", "many"))
	assert.Error(t, applyFlag(cfg, "seed", "-1"))
	assert.Error(t, applyFlag(cfg, "legacy-sync", "maybe"))
	assert.Error(t, applyFlag(cfg, "fraction", "half"))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eval.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"iterations": 40, "workers": 2}`), 0644))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("iterations", 0, "")
	fs.String("on-error", "", "")
	require.NoError(t, fs.Parse([]string{"-iterations", "12"}))

	cfg, err := loadConfig(path, fs.Visit)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.GetIterations())
	assert.Equal(t, 2, cfg.GetWorkers())

	require.NoError(t, fs.Parse([]string{"-on-error", "retry"}))
	_, err = loadConfig(path, fs.Visit)
	assert.Error(t, err)
}
