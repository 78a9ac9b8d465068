package report

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/dental.report/internal/evaluation"
	"github.com/banshee-data/dental.report/internal/fsutil"
	"github.com/banshee-data/dental.report/internal/monitoring"
	"github.com/banshee-data/dental.report/internal/security"
)

const histogramBins = 20

// Plotter writes PNG charts into Dir.
type Plotter struct {
	FS  fsutil.FileSystem
	Dir string
}

// NewPlotter creates a Plotter. A nil fsys writes to the OS filesystem.
func NewPlotter(fsys fsutil.FileSystem, dir string) *Plotter {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Plotter{FS: fsys, Dir: dir}
}

func (p *Plotter) write(name string, wt io.WriterTo) (string, error) {
	if err := p.FS.MkdirAll(p.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create plot dir: %w", err)
	}
	path, err := security.JoinWithin(p.Dir, name)
	if err != nil {
		return "", err
	}
	f, err := p.FS.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to render %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

func (p *Plotter) save(pl *plot.Plot, w, h vg.Length, name string) (string, error) {
	wt, err := pl.WriterTo(w, h, "png")
	if err != nil {
		return "", err
	}
	return p.write(name, wt)
}

// saveTiles draws plots on a rows x cols grid and writes one PNG.
func (p *Plotter) saveTiles(plots [][]*plot.Plot, w, h vg.Length, name string) (string, error) {
	img := vgimg.New(w, h)
	dc := draw.New(img)
	t := draw.Tiles{
		Rows:      len(plots),
		Cols:      len(plots[0]),
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(plots, t, dc)
	for j := range plots {
		for i := range plots[j] {
			plots[j][i].Draw(canvases[j][i])
		}
	}
	return p.write(name, vgimg.PngCanvas{Canvas: img})
}

// groupedBars adds one bar series per entry of series, offset so the
// groups sit side by side over each nominal x position.
func groupedBars(pl *plot.Plot, names []string, series [][]float64, width vg.Length) error {
	n := len(series)
	for i, values := range series {
		bars, err := plotter.NewBarChart(plotter.Values(values), width)
		if err != nil {
			return err
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = vg.Length(float64(i)-float64(n-1)/2) * width
		pl.Add(bars)
		pl.Legend.Add(names[i], bars)
	}
	pl.Legend.Top = true
	return nil
}

// Comparison draws every model's overall metrics side by side. Models
// without metrics are left out.
func (p *Plotter) Comparison(models []ModelResult) (string, error) {
	var names []string
	var series [][]float64
	for _, m := range models {
		if m.Metrics == nil {
			monitoring.Warnf("%s model has no metrics; left out of comparison chart", m.Name)
			continue
		}
		names = append(names, m.Name)
		series = append(series, m.Metrics.Values())
	}
	if len(series) == 0 {
		return "", fmt.Errorf("no model metrics to compare")
	}

	pl := plot.New()
	pl.Title.Text = "Model metric comparison"
	pl.Y.Label.Text = "Value"
	pl.Y.Min, pl.Y.Max = 0, 1
	if err := groupedBars(pl, names, series, vg.Points(20)); err != nil {
		return "", err
	}
	labels := make([]string, len(evaluation.MetricNames))
	for i, name := range evaluation.MetricNames {
		labels[i] = metricTitle(name)
	}
	pl.NominalX(labels...)

	return p.save(pl, 8*vg.Inch, 5*vg.Inch, "comparison.png")
}

// PerTooth draws precision, recall and F1 per tooth above error and
// accuracy per tooth.
func (p *Plotter) PerTooth(m ModelResult) (string, error) {
	order := m.labelOrder()
	if len(order) == 0 {
		return "", fmt.Errorf("%s model has no per-tooth metrics", m.Name)
	}
	labels := make([]string, len(order))
	column := func(get func(evaluation.Metrics) float64) []float64 {
		out := make([]float64, len(order))
		for i, l := range order {
			out[i] = get(m.LabelMetrics[l])
		}
		return out
	}
	for i, l := range order {
		labels[i] = l.String()
	}

	top := plot.New()
	top.Title.Text = fmt.Sprintf("Per-tooth metrics - %s", m.Name)
	top.Y.Label.Text = "Value"
	top.Y.Min, top.Y.Max = 0, 1
	err := groupedBars(top, []string{"Precision", "Recall", "F1-Score"}, [][]float64{
		column(func(v evaluation.Metrics) float64 { return v.Precision }),
		column(func(v evaluation.Metrics) float64 { return v.Recall }),
		column(func(v evaluation.Metrics) float64 { return v.F1 }),
	}, vg.Points(5))
	if err != nil {
		return "", err
	}
	top.NominalX(labels...)
	top.X.Tick.Label.Rotation = math.Pi / 2

	bottom := plot.New()
	bottom.Title.Text = fmt.Sprintf("Per-tooth error and accuracy - %s", m.Name)
	bottom.Y.Label.Text = "Value"
	bottom.Y.Min, bottom.Y.Max = 0, 1
	err = groupedBars(bottom, []string{"Error", "Accuracy"}, [][]float64{
		column(func(v evaluation.Metrics) float64 { return v.Error }),
		column(func(v evaluation.Metrics) float64 { return v.Accuracy }),
	}, vg.Points(6))
	if err != nil {
		return "", err
	}
	bottom.NominalX(labels...)
	bottom.X.Tick.Label.Rotation = math.Pi / 2

	return p.saveTiles([][]*plot.Plot{{top}, {bottom}}, 12*vg.Inch, 10*vg.Inch,
		fmt.Sprintf("per_tooth_%s.png", security.SanitizeFilename(m.Name)))
}

// Histograms draws the resampled distribution of every metric on a 2x3
// grid. The sixth tile carries the run parameters.
func (p *Plotter) Histograms(m ModelResult) (string, error) {
	if m.Resample == nil {
		return "", fmt.Errorf("%s model has no resampling result", m.Name)
	}

	var tiles []*plot.Plot
	for _, name := range evaluation.MetricNames {
		values := m.Resample.Distributions[name]
		pl := plot.New()
		pl.Title.Text = fmt.Sprintf("Distribution of %s", metricTitle(name))
		pl.X.Label.Text = metricTitle(name)
		pl.Y.Label.Text = "Frequency"
		if len(values) > 0 {
			h, err := plotter.NewHist(plotter.Values(values), histogramBins)
			if err != nil {
				return "", fmt.Errorf("histogram %s: %w", name, err)
			}
			h.FillColor = plotutil.Color(0)
			pl.Add(h)
		}
		tiles = append(tiles, pl)
	}

	info := plot.New()
	info.Title.Text = fmt.Sprintf("%s: %d iterations, %d pairs each, %d skipped",
		m.Name, len(m.Resample.Distributions[evaluation.MetricAccuracy]),
		m.Resample.SampleSize, len(m.Resample.Skipped))
	info.HideAxes()
	tiles = append(tiles, info)

	grid := [][]*plot.Plot{tiles[:3], tiles[3:]}
	return p.saveTiles(grid, 15*vg.Inch, 10*vg.Inch, fmt.Sprintf("montecarlo_%s.png", security.SanitizeFilename(m.Name)))
}
