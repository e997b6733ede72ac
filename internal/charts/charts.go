package charts

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/vicanso/go-charts/v2"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"etfAnalyzer/internal/finance"
)

// Options describe one chart. Zero values fall back to the defaults of the
// renderer.
type Options struct {
	Title   string
	XLabel  string
	YLabel  string
	Width   int
	Height  int
	YFormat string // printf verb for y tick labels, e.g. "%.4f"
}

// Renderer draws series as PNG images and keeps recent images in memory.
type Renderer struct {
	width, height int
	cache         *imageCache
}

func NewRenderer(width, height int, ttl time.Duration) *Renderer {
	return &Renderer{width: width, height: height, cache: newImageCache(ttl)}
}

var palette = []drawing.Color{
	drawing.ColorFromHex("2563eb"),
	drawing.ColorFromHex("dc2626"),
	drawing.ColorFromHex("16a34a"),
	drawing.ColorFromHex("9333ea"),
	drawing.ColorFromHex("ea580c"),
	drawing.ColorFromHex("0891b2"),
}

func (r *Renderer) withDefaults(opts Options) Options {
	if opts.Width <= 0 {
		opts.Width = r.width
	}
	if opts.Height <= 0 {
		opts.Height = r.height
	}
	if opts.YFormat == "" {
		opts.YFormat = "%.2f"
	}
	return opts
}

// Line renders a time-axis line chart with one line per series.
// Each series needs at least two points.
func (r *Renderer) Line(key string, opts Options, series ...finance.Series) ([]byte, error) {
	if img, ok := r.cache.get(key); ok {
		return img, nil
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no series to plot", finance.ErrInvalidSeries)
	}
	opts = r.withDefaults(opts)

	list := make([]chart.Series, 0, len(series))
	for i, s := range series {
		if s.Len() < 2 {
			return nil, fmt.Errorf("%w: %s needs at least 2 points to plot, got %d", finance.ErrInvalidSeries, s.Name, s.Len())
		}
		xs := make([]time.Time, s.Len())
		for j, p := range s.Points {
			xs[j] = p.Time
		}
		list = append(list, chart.TimeSeries{
			Name: s.Name,
			Style: chart.Style{
				StrokeColor: palette[i%len(palette)],
				StrokeWidth: 1.5,
			},
			XValues: xs,
			YValues: s.Values(),
		})
	}

	yFormat := opts.YFormat
	graph := chart.Chart{
		Title:  opts.Title,
		Width:  opts.Width,
		Height: opts.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			Name:         opts.XLabel,
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("2006-01")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Name: opts.YLabel,
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf(yFormat, f)
				}
				return ""
			},
		},
		Series: list,
	}
	if len(list) > 1 {
		graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	img := buf.Bytes()
	r.cache.set(key, img)
	return img, nil
}

// Compare overlays several series with a legend. Series are aligned on the
// dates they all share.
func (r *Renderer) Compare(key string, opts Options, series ...finance.Series) ([]byte, error) {
	if img, ok := r.cache.get(key); ok {
		return img, nil
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no series to plot", finance.ErrInvalidSeries)
	}
	opts = r.withDefaults(opts)

	common, values := align(series)
	if len(common) < 2 {
		return nil, fmt.Errorf("%w: not enough overlapping dates to plot, got %d", finance.ErrInvalidSeries, len(common))
	}

	xLabels := make([]string, len(common))
	for i, t := range common {
		xLabels[i] = time.Unix(t, 0).UTC().Format(finance.DateFormat)
	}
	names := make([]string, len(series))
	yMin, yMax := values[0][0], values[0][0]
	for i, s := range series {
		names[i] = s.Name
		for _, v := range values[i] {
			if v < yMin {
				yMin = v
			}
			if v > yMax {
				yMax = v
			}
		}
	}
	pad := (yMax - yMin) * 0.05
	if pad == 0 {
		pad = 1
	}
	yMin -= pad
	yMax += pad

	split := len(xLabels) / 3
	if split < 3 {
		split = 3
	}
	if split > 8 {
		split = 8
	}

	seriesList := charts.NewSeriesListDataFromValues(values, charts.ChartTypeLine)
	for i := range seriesList {
		seriesList[i].Name = names[i]
	}
	painter, err := charts.Render(charts.ChartOption{SeriesList: seriesList},
		charts.TitleTextOptionFunc(opts.Title, opts.YLabel),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: xLabels, BoundaryGap: charts.FalseFlag(), SplitNumber: split}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names, Top: "25"}),
		charts.WidthOptionFunc(opts.Width),
		charts.HeightOptionFunc(opts.Height),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	img, err := painter.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	r.cache.set(key, img)
	return img, nil
}

// align returns the sorted dates present in every series and the values of
// each series on those dates.
func align(series []finance.Series) ([]int64, [][]float64) {
	count := map[int64]int{}
	for _, s := range series {
		for _, p := range s.Points {
			count[p.Time.Unix()]++
		}
	}
	common := make([]int64, 0, len(count))
	for t, c := range count {
		if c == len(series) {
			common = append(common, t)
		}
	}
	sort.Slice(common, func(i, j int) bool { return common[i] < common[j] })

	values := make([][]float64, len(series))
	for i, s := range series {
		mp := make(map[int64]float64, len(s.Points))
		for _, p := range s.Points {
			mp[p.Time.Unix()] = p.Value
		}
		aligned := make([]float64, 0, len(common))
		for _, t := range common {
			aligned = append(aligned, mp[t])
		}
		values[i] = aligned
	}
	return common, values
}
