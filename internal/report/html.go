package report

import (
	"bytes"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/dental.report/internal/evaluation"
	"github.com/banshee-data/dental.report/internal/fsutil"
	"github.com/banshee-data/dental.report/internal/timeutil"
)

// Page is the content of the HTML report.
type Page struct {
	Title     string
	Generated time.Time
	Models    []ModelResult
}

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }

func metricLabels() []string {
	out := make([]string, len(evaluation.MetricNames))
	for i, name := range evaluation.MetricNames {
		out[i] = metricTitle(name)
	}
	return out
}

func comparisonChart(p Page) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Model metric comparison", Subtitle: timeutil.Stamp(p.Generated)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1}),
	)
	bar.SetXAxis(metricLabels())
	for _, m := range p.Models {
		if m.Metrics == nil {
			continue
		}
		data := make([]opts.BarData, 0, len(evaluation.MetricNames))
		for _, v := range m.Metrics.Values() {
			data = append(data, opts.BarData{Value: round4(v)})
		}
		bar.AddSeries(m.Name, data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	}
	return bar
}

func perToothChart(m ModelResult) *charts.Bar {
	order := m.labelOrder()
	x := make([]string, len(order))
	for i, l := range order {
		x[i] = l.String()
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Per-tooth metrics", Subtitle: fmt.Sprintf("model=%s pairs=%d", m.Name, m.Pairs)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	bar.SetXAxis(x)
	for _, name := range evaluation.MetricNames {
		data := make([]opts.BarData, 0, len(order))
		for _, l := range order {
			v, _ := m.LabelMetrics[l].Get(name)
			data = append(data, opts.BarData{Value: round4(v)})
		}
		bar.AddSeries(metricTitle(name), data)
	}
	return bar
}

func distributionChart(m ModelResult) *charts.BoxPlot {
	summaries := m.Summaries()
	box := charts.NewBoxPlot()
	box.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Resampled metric distributions",
			Subtitle: fmt.Sprintf("model=%s sample=%d skipped=%d (whiskers p2.5-p97.5)", m.Name, m.Resample.SampleSize, len(m.Resample.Skipped)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1}),
	)
	box.SetXAxis(metricLabels())
	data := make([]opts.BoxPlotData, 0, len(evaluation.MetricNames))
	for _, name := range evaluation.MetricNames {
		s := summaries[name]
		data = append(data, opts.BoxPlotData{
			Name:  metricTitle(name),
			Value: []float64{round4(s.P025), round4(s.P25), round4(s.P50), round4(s.P75), round4(s.P975)},
		})
	}
	box.AddSeries(m.Name, data)
	return box
}

// RenderHTML builds the report page.
func RenderHTML(p Page) ([]byte, error) {
	page := components.NewPage()
	page.PageTitle = p.Title
	page.SetLayout(components.PageFlexLayout)

	if len(p.Models) > 0 {
		page.AddCharts(comparisonChart(p))
	}
	for _, m := range p.Models {
		if len(m.LabelMetrics) > 0 {
			page.AddCharts(perToothChart(m))
		}
		if m.Resample != nil {
			page.AddCharts(distributionChart(m))
		}
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, fmt.Errorf("render error: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteHTML renders the page and writes it to path.
func WriteHTML(fsys fsutil.FileSystem, path string, p Page) error {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	data, err := RenderHTML(p)
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}
	if err := fsys.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
