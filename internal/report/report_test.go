package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dental.report/internal/evaluation"
	"github.com/banshee-data/dental.report/internal/fsutil"
	"github.com/banshee-data/dental.report/internal/monitoring"
	"github.com/banshee-data/dental.report/internal/resample"
	"github.com/banshee-data/dental.report/internal/teeth"
)

func quiet(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = original })
	monitoring.SetLogger(nil)
}

func sampleModel(name string) ModelResult {
	counts := evaluation.Counts{Correct: 600, TruePositive: 300, FalsePositive: 25, FalseNegative: 15, TotalSlots: 640}
	metrics, _ := evaluation.Compute(counts)

	lm := map[teeth.Label]evaluation.Metrics{
		"11": {Error: 0.05, Accuracy: 0.95, Precision: 1, Recall: 0.9, F1: 0.947},
		"36": {Error: 0.1, Accuracy: 0.9, Precision: 0.8, Recall: 0.85, F1: 0.824},
	}
	dist := resample.Distributions{}
	for i := 0; i < 50; i++ {
		v := 0.8 + float64(i%10)/100
		for _, n := range evaluation.MetricNames {
			dist[n] = append(dist[n], v)
		}
	}
	return ModelResult{
		Name:         name,
		Policy:       "threshold",
		Pairs:        20,
		Counts:       counts,
		Metrics:      &metrics,
		LabelMetrics: lm,
		LabelErrors:  map[teeth.Label]error{"18": &evaluation.DegenerateMetricError{Metric: "precision"}},
		Resample:     &resample.Result{Distributions: dist, SampleSize: 14, Skipped: []int{3}},
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	WriteHeader(&buf, "legacy model")
	WriteSummary(&buf, sampleModel("legacy"))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "------------- legacy model ---------------\n"))
	assert.Contains(t, out, "Hits: 600\nErrors: 40\nFalse positives: 25\nFalse negatives: 15\n")
	assert.Contains(t, out, "Error: 6.25%")
	assert.Contains(t, out, "Accuracy: 93.75%")
	assert.Contains(t, out, fmt.Sprintf("Precision: %.2f%%", 300.0/325*100))
	assert.Contains(t, out, "F1-Score: ")
}

func TestWriteSummary_NoMetrics(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, ModelResult{
		Counts:     evaluation.Counts{Correct: 32, TotalSlots: 32},
		MetricsErr: errors.New("precision undefined"),
	})
	assert.Contains(t, buf.String(), "Metrics unavailable: precision undefined")
	assert.NotContains(t, buf.String(), "Accuracy:")
}

func TestWritePerTooth(t *testing.T) {
	var buf bytes.Buffer
	WritePerTooth(&buf, sampleModel("current"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Tooth 11: Error: 0.05, Accuracy: 0.95, Precision: 1.00, Recall: 0.90, F1-Score: 0.95", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Tooth 18: precision undefined"))
	assert.True(t, strings.HasPrefix(lines[2], "Tooth 36: "))
}

func TestWriteDistributions(t *testing.T) {
	var buf bytes.Buffer
	WriteDistributions(&buf, sampleModel("legacy"))

	out := buf.String()
	assert.Contains(t, out, "Sample size: 14 pairs per iteration")
	assert.Contains(t, out, "Skipped iterations: 1")
	assert.Contains(t, out, "p97.5")
	for _, name := range evaluation.MetricNames {
		assert.Contains(t, out, name)
	}

	buf.Reset()
	WriteDistributions(&buf, ModelResult{})
	assert.Empty(t, buf.String())
}

func isPNG(t *testing.T, fsys fsutil.FileSystem, path string) {
	t.Helper()
	data, err := fsys.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, "\x89PNG", string(data[:4]))
}

func TestPlotter(t *testing.T) {
	quiet(t)
	mfs := fsutil.NewMemoryFileSystem()
	p := NewPlotter(mfs, "plots")

	path, err := p.Comparison([]ModelResult{sampleModel("legacy"), sampleModel("current"), {Name: "broken"}})
	require.NoError(t, err)
	assert.Equal(t, "plots/comparison.png", path)
	isPNG(t, mfs, path)

	path, err = p.PerTooth(sampleModel("legacy"))
	require.NoError(t, err)
	assert.Equal(t, "plots/per_tooth_legacy.png", path)
	isPNG(t, mfs, path)

	path, err = p.Histograms(sampleModel("current"))
	require.NoError(t, err)
	assert.Equal(t, "plots/montecarlo_current.png", path)
	isPNG(t, mfs, path)
}

func TestPlotter_Errors(t *testing.T) {
	quiet(t)
	p := NewPlotter(fsutil.NewMemoryFileSystem(), "plots")

	_, err := p.Comparison([]ModelResult{{Name: "x"}})
	assert.Error(t, err)
	_, err = p.PerTooth(ModelResult{Name: "x"})
	assert.Error(t, err)
	_, err = p.Histograms(ModelResult{Name: "x"})
	assert.Error(t, err)
}

func TestPlotter_ConstantDistribution(t *testing.T) {
	m := sampleModel("flat")
	for _, n := range evaluation.MetricNames {
		m.Resample.Distributions[n] = []float64{1, 1, 1}
	}
	m.Resample.Distributions[evaluation.MetricError] = nil

	mfs := fsutil.NewMemoryFileSystem()
	path, err := NewPlotter(mfs, "out").Histograms(m)
	require.NoError(t, err)
	isPNG(t, mfs, path)
}

func TestWriteHTML(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	page := Page{
		Title:     "Dental detection report",
		Generated: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Models:    []ModelResult{sampleModel("legacy"), sampleModel("current")},
	}

	require.NoError(t, WriteHTML(mfs, "reports/index.html", page))
	data, err := mfs.ReadFile("reports/index.html")
	require.NoError(t, err)

	html := string(data)
	assert.Contains(t, html, "Dental detection report")
	assert.Contains(t, html, "Model metric comparison")
	assert.Contains(t, html, "Per-tooth metrics")
	assert.Contains(t, html, "Resampled metric distributions")
	assert.Contains(t, html, "20240301T100000Z")
}

func TestRenderHTML_Empty(t *testing.T) {
	data, err := RenderHTML(Page{Title: "empty"})
	require.NoError(t, err)
	assert.Contains(t, string(data), "empty")
	assert.NotContains(t, string(data), "Model metric comparison")
}
