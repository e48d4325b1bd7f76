package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/seenimoa/tradelens/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// SVG Charts (inline in the HTML report)
// ════════════════════════════════════════════════════════════════════

// ChartConfig holds rendering parameters for charts.
type ChartConfig struct {
	Width        int
	Height       int
	MarginTop    int
	MarginRight  int
	MarginBottom int
	MarginLeft   int
	BgColor      string
	GridColor    string
	TextColor    string
	FontSize     int
	Title        string
}

// DefaultChartConfig returns sensible defaults for chart rendering.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:        800,
		Height:       400,
		MarginTop:    40,
		MarginRight:  60,
		MarginBottom: 50,
		MarginLeft:   70,
		BgColor:      "#ffffff",
		GridColor:    "#e8e8e8",
		TextColor:    "#333333",
		FontSize:     11,
	}
}

func (c ChartConfig) plotArea() (x, y, w, h int) {
	return c.MarginLeft, c.MarginTop,
		c.Width - c.MarginLeft - c.MarginRight,
		c.Height - c.MarginTop - c.MarginBottom
}

const (
	bullColor       = "#26a69a"
	bearColor       = "#ef5350"
	projectionColor = "#1a73e8"
)

// CandlestickChart draws the recent candles followed by the projected
// price path as a dashed line. Volume bars take the bottom fifth.
func CandlestickChart(candles []models.Candle, projection []models.PricePoint, cfg ChartConfig) string {
	if cfg.Width == 0 {
		cfg = DefaultChartConfig()
	}
	if len(candles) == 0 {
		return emptySVG(cfg, "No price data")
	}
	if cfg.Title == "" {
		cfg.Title = "Price Chart"
	}

	px, py, pw, ph := cfg.plotArea()

	lo, hi := candles[0].Low, candles[0].High
	var maxVol float64
	for _, c := range candles {
		lo = math.Min(lo, c.Low)
		hi = math.Max(hi, c.High)
		maxVol = math.Max(maxVol, c.Volume)
	}
	for _, p := range projection {
		lo = math.Min(lo, p.Price)
		hi = math.Max(hi, p.Price)
	}
	span := hi - lo
	if span < 0.01 {
		span = 1
	}
	lo -= span * 0.05
	hi += span * 0.05
	span = hi - lo

	slots := len(candles) + len(projection)
	slotW := float64(pw) / float64(slots)
	bodyW := math.Min(slotW, 12) * 0.7
	volH := float64(ph) * 0.2
	priceH := float64(ph) - volH

	xAt := func(i int) float64 { return float64(px) + float64(i)*slotW + slotW/2 }
	yAt := func(p float64) float64 { return float64(py) + priceH - (p-lo)/span*priceH }

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	fmt.Fprintf(&sb, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, cfg.Width, cfg.Height, cfg.BgColor)
	fmt.Fprintf(&sb, `<text x="%d" y="20" font-size="14" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
		cfg.Width/2, cfg.TextColor, escapeXML(cfg.Title))

	const gridLines = 6
	for i := 0; i <= gridLines; i++ {
		price := lo + span*float64(i)/gridLines
		y := yAt(price)
		fmt.Fprintf(&sb, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-dasharray="3,3"/>`,
			px, y, px+pw, y, cfg.GridColor)
		fmt.Fprintf(&sb, `<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%s</text>`,
			px-5, y+4, cfg.FontSize, cfg.TextColor, axisPrice(price))
	}

	for i, c := range candles {
		cx := xAt(i)
		color := bullColor
		if c.Close < c.Open {
			color = bearColor
		}
		if maxVol > 0 {
			vh := c.Volume / maxVol * volH
			fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" opacity="0.3"/>`,
				cx-bodyW/2, float64(py+ph)-vh, bodyW, vh, color)
		}
		fmt.Fprintf(&sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="1"/>`,
			cx, yAt(c.High), cx, yAt(c.Low), color)
		top := math.Min(yAt(c.Open), yAt(c.Close))
		h := math.Max(math.Abs(yAt(c.Open)-yAt(c.Close)), 1)
		fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>`,
			cx-bodyW/2, top, bodyW, h, color)
	}

	if len(projection) > 0 {
		last := candles[len(candles)-1]
		path := []string{fmt.Sprintf("M%.1f,%.1f", xAt(len(candles)-1), yAt(last.Close))}
		for i, p := range projection {
			path = append(path, fmt.Sprintf("L%.1f,%.1f", xAt(len(candles)+i), yAt(p.Price)))
		}
		fmt.Fprintf(&sb, `<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-dasharray="6,4"/>`,
			strings.Join(path, " "), projectionColor)
		fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="2" stroke-dasharray="6,4"/>`,
			px+10, py+12, px+30, py+12, projectionColor)
		fmt.Fprintf(&sb, `<text x="%d" y="%d" font-size="10" fill="%s">Projection</text>`,
			px+35, py+16, cfg.TextColor)
	}

	labels := dateLabels(candles, projection)
	step := max(len(labels)/6, 1)
	for i := 0; i < len(labels); i += step {
		cx := xAt(i)
		fmt.Fprintf(&sb, `<text x="%.1f" y="%d" font-size="%d" fill="%s" text-anchor="middle" transform="rotate(-45,%.1f,%d)">%s</text>`,
			cx, py+ph+15, cfg.FontSize-1, cfg.TextColor, cx, py+ph+15, escapeXML(labels[i]))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

func dateLabels(candles []models.Candle, projection []models.PricePoint) []string {
	out := make([]string, 0, len(candles)+len(projection))
	for _, c := range candles {
		out = append(out, shortDate(c.Date))
	}
	for _, p := range projection {
		out = append(out, shortDate(p.Date))
	}
	return out
}

// shortDate keeps the day part of an ISO timestamp ("2025-01-31").
func shortDate(iso string) string {
	if len(iso) >= 10 {
		return iso[:10]
	}
	return iso
}

func axisPrice(v float64) string {
	switch {
	case math.Abs(v) >= 1000:
		return strconv.FormatFloat(v, 'f', 0, 64)
	case math.Abs(v) >= 1:
		return strconv.FormatFloat(v, 'f', 2, 64)
	default:
		return strconv.FormatFloat(v, 'f', 4, 64)
	}
}

// ════════════════════════════════════════════════════════════════════
// Gauge
// ════════════════════════════════════════════════════════════════════

// GaugeChart draws a semicircular gauge for a 0-100 value such as the
// analysis confidence.
func GaugeChart(value float64, label string, width int) string {
	if width == 0 {
		width = 200
	}
	height := width/2 + 30
	value = math.Max(0, math.Min(100, value))

	cx := float64(width) / 2
	cy := float64(width)/2 - 10
	r := float64(width)/2 - 20

	var color string
	switch {
	case value < 30:
		color = bearColor
	case value < 50:
		color = "#ff9800"
	case value < 70:
		color = "#ffc107"
	default:
		color = "#4caf50"
	}

	angle := math.Pi - value/100*math.Pi
	endX, endY := cx+r*math.Cos(angle), cy-r*math.Sin(angle)
	needleX, needleY := cx+r*0.85*math.Cos(angle), cy-r*0.85*math.Sin(angle)
	largeArc := 0
	if value > 50 {
		largeArc = 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, width, height, width, height)
	fmt.Fprintf(&sb, `<path d="M%.1f,%.1f A%.1f,%.1f 0 0,1 %.1f,%.1f" fill="none" stroke="#e0e0e0" stroke-width="12" stroke-linecap="round"/>`,
		cx-r, cy, r, r, cx+r, cy)
	if value > 0 {
		fmt.Fprintf(&sb, `<path d="M%.1f,%.1f A%.1f,%.1f 0 %d,1 %.1f,%.1f" fill="none" stroke="%s" stroke-width="12" stroke-linecap="round"/>`,
			cx-r, cy, r, r, largeArc, endX, endY, color)
	}
	fmt.Fprintf(&sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#333" stroke-width="2"/>`, cx, cy, needleX, needleY)
	fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="5" fill="#333"/>`, cx, cy)
	fmt.Fprintf(&sb, `<text x="%.1f" y="%.1f" font-size="22" font-weight="bold" fill="%s" text-anchor="middle">%.0f</text>`,
		cx, cy+25, color, value)
	fmt.Fprintf(&sb, `<text x="%.1f" y="%d" font-size="11" fill="#666" text-anchor="middle">%s</text>`,
		cx, height-5, escapeXML(label))
	sb.WriteString("</svg>")
	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// SVG Helpers
// ════════════════════════════════════════════════════════════════════

func svgHeader(cfg ChartConfig) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height)
}

func emptySVG(cfg ChartConfig, msg string) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="%d" height="%d" fill="#f5f5f5"/><text x="%d" y="%d" text-anchor="middle" fill="#999" font-size="14">%s</text></svg>`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height, cfg.Width/2, cfg.Height/2, escapeXML(msg))
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escapeXML(s string) string { return xmlEscaper.Replace(s) }
