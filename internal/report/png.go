package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/seenimoa/tradelens/pkg/models"
)

// ErrNotEnoughData is returned when a record has too few dated points to plot.
var ErrNotEnoughData = errors.New("report: not enough price data to chart")

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ProjectionPNG renders the closing prices of the record's candles and the
// projected price path as a PNG line chart. Points with unparseable dates
// are skipped.
func ProjectionPNG(w io.Writer, rec *models.AnalysisRecord, cfg ChartConfig) error {
	if rec == nil {
		return ErrNilRecord
	}
	if cfg.Width == 0 {
		cfg = DefaultChartConfig()
	}

	var closeX []time.Time
	var closeY []float64
	for _, c := range rec.Analysis.CandlestickData {
		if t, ok := parseDate(c.Date); ok {
			closeX = append(closeX, t)
			closeY = append(closeY, c.Close)
		}
	}

	var projX []time.Time
	var projY []float64
	if n := len(closeX); n > 0 {
		projX = append(projX, closeX[n-1])
		projY = append(projY, closeY[n-1])
	}
	for _, p := range rec.Analysis.PriceChartData {
		if t, ok := parseDate(p.Date); ok {
			projX = append(projX, t)
			projY = append(projY, p.Price)
		}
	}

	var series []chart.Series
	if len(closeX) >= 2 {
		series = append(series, chart.TimeSeries{
			Name:    "Close",
			XValues: closeX,
			YValues: closeY,
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex(bullColor[1:]),
				StrokeWidth: 2,
			},
		})
	}
	if len(projX) >= 2 {
		series = append(series, chart.TimeSeries{
			Name:    "Projection",
			XValues: projX,
			YValues: projY,
			Style: chart.Style{
				StrokeColor:     drawing.ColorFromHex(projectionColor[1:]),
				StrokeWidth:     2,
				StrokeDashArray: []float64{6, 4},
			},
		})
	}
	if len(series) == 0 || flat(closeY, projY) {
		return ErrNotEnoughData
	}

	title := cfg.Title
	if title == "" {
		title = fmt.Sprintf("%s · %s", rec.Symbol, rec.Timeframe)
	}
	graph := chart.Chart{
		Title:  title,
		Width:  cfg.Width,
		Height: cfg.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: cfg.MarginTop, Left: cfg.MarginLeft / 4, Right: cfg.MarginRight / 4, Bottom: cfg.MarginBottom / 4},
		},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("01-02"),
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return axisPrice(f)
				}
				return ""
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	return nil
}

// flat reports whether every plotted value is the same, which go-chart
// rejects as a zero range.
func flat(sets ...[]float64) bool {
	var first float64
	seen := false
	for _, set := range sets {
		for _, v := range set {
			if !seen {
				first, seen = v, true
				continue
			}
			if v != first {
				return false
			}
		}
	}
	return true
}
