// Package report renders stored analysis records as HTML or plain-text
// research reports, with an inline SVG candlestick chart and a PNG
// projection chart.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/tradelens/pkg/models"
)

// ErrNilRecord is returned when a report is requested for no record.
var ErrNilRecord = errors.New("report: record is nil")

// ════════════════════════════════════════════════════════════════════
// Report Generator
// ════════════════════════════════════════════════════════════════════

// ReportFormat specifies the output format.
type ReportFormat string

const (
	FormatHTML ReportFormat = "html"
	FormatPDF  ReportFormat = "pdf"
	FormatText ReportFormat = "text"
)

// ReportSection identifies a section to include or exclude.
type ReportSection string

const (
	SectionSummary    ReportSection = "summary"
	SectionChart      ReportSection = "chart"
	SectionPatterns   ReportSection = "patterns"
	SectionIndicators ReportSection = "indicators"
	SectionStrategy   ReportSection = "strategy"
	SectionBacktest   ReportSection = "backtest"
	SectionNews       ReportSection = "news"
	SectionSources    ReportSection = "sources"
)

// AllSections returns all report sections in display order.
func AllSections() []ReportSection {
	return []ReportSection{
		SectionSummary,
		SectionChart,
		SectionPatterns,
		SectionIndicators,
		SectionStrategy,
		SectionBacktest,
		SectionNews,
		SectionSources,
	}
}

// ParseSections maps section names to sections. Unknown names are an error.
func ParseSections(names []string) ([]ReportSection, error) {
	if len(names) == 0 {
		return AllSections(), nil
	}
	out := make([]ReportSection, 0, len(names))
	for _, n := range names {
		s := ReportSection(strings.ToLower(strings.TrimSpace(n)))
		found := false
		for _, known := range AllSections() {
			if s == known {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown report section %q", n)
		}
		out = append(out, s)
	}
	return out, nil
}

// ReportConfig controls report generation behaviour.
type ReportConfig struct {
	Format   ReportFormat    // default: HTML
	Sections []ReportSection // default: all
	Title    string          // optional; derived from the record when empty
	Author   string          // default: "TradeLens"
	Location *time.Location  // timestamps are rendered in this zone; default: record timezone
	ChartCfg ChartConfig
}

// DefaultReportConfig returns sensible defaults.
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		Format:   FormatHTML,
		Sections: AllSections(),
		Author:   "TradeLens",
		ChartCfg: DefaultChartConfig(),
	}
}

func (rc ReportConfig) hasSection(s ReportSection) bool {
	for _, sec := range rc.Sections {
		if sec == s {
			return true
		}
	}
	return false
}

// ════════════════════════════════════════════════════════════════════
// Report Data
// ════════════════════════════════════════════════════════════════════

// ReportData is the template model passed to the HTML template.
type ReportData struct {
	Title       string
	Symbol      string
	Timeframe   string
	RiskProfile string
	Author      string
	GeneratedAt string
	AnalyzedAt  string

	Signal      string
	SignalClass string // strong-buy, buy, hold, sell, strong-sell
	Confidence  string
	RiskLevel   string
	Trend       string
	Sentiment   string
	Summary     string
	Prediction  string
	ProTip      string
	Takeaways   []string
	Insights    string
	Astrology   string

	BuyTargets  string
	SellTargets string
	StopLoss    string

	Patterns   []PatternRow
	Indicators []IndicatorRow

	StrategyTitle       string
	StrategyDescription string
	EntryConditions     []string
	ExitConditions      []string
	AlternativeTitle    string
	AlternativeTrigger  string
	PositionSizing      string
	RiskReward          string
	BacktestNotes       string

	Backtest *BacktestRow

	NewsSummary string
	Sources     []SourceRow
	Files       []string

	PriceChart template.HTML
	GaugeChart template.HTML

	ShowSummary    bool
	ShowChart      bool
	ShowPatterns   bool
	ShowIndicators bool
	ShowStrategy   bool
	ShowBacktest   bool
	ShowNews       bool
	ShowSources    bool
}

// PatternRow is a flattened pattern for table display.
type PatternRow struct {
	Name        string
	Category    string
	Implication string
	Class       string // positive, negative, neutral
	Reliability string
	Levels      string
	Description string
}

// IndicatorRow is one indicator reading.
type IndicatorRow struct {
	Name        string
	Value       string
	Signal      string
	Description string
}

// BacktestRow is the formatted simulated backtest.
type BacktestRow struct {
	ProfitLoss   string
	WinRate      string
	MaxDrawdown  string
	ProfitFactor string
	Trades       string
	Period       string
}

// SourceRow is one grounding citation.
type SourceRow struct {
	Title string
	URI   string
}

// ════════════════════════════════════════════════════════════════════
// Generate Report
// ════════════════════════════════════════════════════════════════════

var reportTmpl = template.Must(template.New("report").Parse(ReportTemplate))

// GenerateHTML renders an analysis record as an HTML research report.
func GenerateHTML(rec *models.AnalysisRecord, cfg ReportConfig) (string, error) {
	if rec == nil {
		return "", ErrNilRecord
	}
	data := buildReportData(rec, cfg, time.Now())

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

// GenerateText renders a plain-text report for the terminal.
func GenerateText(rec *models.AnalysisRecord, cfg ReportConfig) (string, error) {
	if rec == nil {
		return "", ErrNilRecord
	}
	return renderTextReport(buildReportData(rec, cfg, time.Now())), nil
}

// ════════════════════════════════════════════════════════════════════
// Internal — Build template data
// ════════════════════════════════════════════════════════════════════

func buildReportData(rec *models.AnalysisRecord, cfg ReportConfig, now time.Time) ReportData {
	if len(cfg.Sections) == 0 {
		cfg.Sections = AllSections()
	}
	if cfg.Author == "" {
		cfg.Author = "TradeLens"
	}
	if cfg.ChartCfg.Width == 0 {
		cfg.ChartCfg = DefaultChartConfig()
	}
	loc := cfg.Location
	if loc == nil {
		loc = recordLocation(rec)
	}

	a := rec.Analysis
	data := ReportData{
		Title:       cfg.Title,
		Symbol:      rec.Symbol,
		Timeframe:   string(rec.Timeframe),
		RiskProfile: rec.RiskProfile.Label(),
		Author:      cfg.Author,
		GeneratedAt: now.In(loc).Format("02 Jan 2006, 15:04 MST"),
		AnalyzedAt:  rec.Timestamp.In(loc).Format("02 Jan 2006, 15:04 MST"),

		Signal:      formatSignal(a.Signal),
		SignalClass: string(a.Signal),
		Confidence:  fmt.Sprintf("%.0f%%", a.Confidence),
		RiskLevel:   strings.ToUpper(string(a.RiskLevel)),
		Trend:       a.Trend,
		Sentiment:   fmt.Sprintf("%s (%+.0f)", a.Sentiment, a.SentimentScore),
		Summary:     a.Summary,
		Prediction:  a.Prediction,
		ProTip:      a.ProTip,
		Takeaways:   a.KeyTakeaways,
		Astrology:   a.AstrologyAnalysis,

		BuyTargets:  joinPrices(a.BuyTargets),
		SellTargets: joinPrices(a.SellTargets),
		StopLoss:    formatPrice(a.StopLoss),

		NewsSummary: a.NewsSummary,

		ShowSummary:    cfg.hasSection(SectionSummary),
		ShowChart:      cfg.hasSection(SectionChart) && len(a.CandlestickData) > 0,
		ShowPatterns:   cfg.hasSection(SectionPatterns) && len(a.Patterns) > 0,
		ShowIndicators: cfg.hasSection(SectionIndicators),
		ShowStrategy:   cfg.hasSection(SectionStrategy) && a.Strategy != nil,
		ShowBacktest:   cfg.hasSection(SectionBacktest) && a.BacktestResult != nil,
		ShowNews:       cfg.hasSection(SectionNews) && a.NewsSummary != "",
	}
	if data.Title == "" {
		data.Title = fmt.Sprintf("%s · %s Analysis", rec.Symbol, rec.Timeframe)
	}
	if a.HasNewInsight() {
		data.Insights = a.LearnedInsights
	}

	data.GaugeChart = template.HTML(GaugeChart(a.Confidence, "Confidence", 160))
	if data.ShowChart {
		chartCfg := cfg.ChartCfg
		chartCfg.Title = rec.Symbol
		data.PriceChart = template.HTML(CandlestickChart(a.CandlestickData, a.PriceChartData, chartCfg))
	}

	for _, p := range a.Patterns {
		data.Patterns = append(data.Patterns, PatternRow{
			Name:        p.Name,
			Category:    string(p.Category),
			Implication: string(p.Implication),
			Class:       implicationClass(p.Implication),
			Reliability: string(p.Reliability),
			Levels:      joinLevels(p.KeyLevels),
			Description: p.Description,
		})
	}

	data.Indicators = []IndicatorRow{
		{Name: "RSI", Value: strconv.FormatFloat(a.Indicators.RSI.Value, 'f', 1, 64), Signal: a.Indicators.RSI.Signal, Description: a.Indicators.RSI.Description},
		{Name: "MACD", Signal: a.Indicators.MACD.Signal, Description: a.Indicators.MACD.Description},
		{Name: "Bollinger Bands", Signal: a.Indicators.Bollinger.Signal, Description: a.Indicators.Bollinger.Description},
	}

	if s := a.Strategy; s != nil {
		data.StrategyTitle = s.Primary.Title
		data.StrategyDescription = s.Primary.Description
		data.EntryConditions = s.Primary.EntryConditions
		data.ExitConditions = s.Primary.ExitConditions
		data.PositionSizing = s.RiskManagement.PositionSizing
		data.RiskReward = s.RiskManagement.RiskRewardRatio
		data.BacktestNotes = s.SimulatedBacktestNotes
		if s.Alternative != nil {
			data.AlternativeTitle = s.Alternative.Title
			data.AlternativeTrigger = s.Alternative.TriggerCondition
		}
	}

	if b := a.BacktestResult; b != nil {
		data.Backtest = &BacktestRow{
			ProfitLoss:   fmt.Sprintf("%+.2f%%", b.TotalProfitLoss),
			WinRate:      fmt.Sprintf("%.1f%%", b.WinRate),
			MaxDrawdown:  fmt.Sprintf("%.2f%%", b.MaxDrawdown),
			ProfitFactor: strconv.FormatFloat(b.ProfitFactor, 'f', 2, 64),
			Trades:       strconv.Itoa(b.TradesCount),
			Period:       b.Period,
		}
	}

	if cfg.hasSection(SectionSources) {
		for _, s := range rec.Sources {
			if s.Web == nil || s.Web.URI == "" {
				continue
			}
			title := s.Web.Title
			if title == "" {
				title = s.Web.URI
			}
			data.Sources = append(data.Sources, SourceRow{Title: title, URI: s.Web.URI})
		}
		for _, f := range rec.FilesUsed {
			data.Files = append(data.Files, f.Name)
		}
		data.ShowSources = len(data.Sources) > 0 || len(data.Files) > 0
	}

	return data
}

func recordLocation(rec *models.AnalysisRecord) *time.Location {
	if rec.Timezone != "" {
		if loc, err := time.LoadLocation(rec.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}

func formatSignal(s models.Signal) string {
	switch s {
	case models.SignalStrongBuy:
		return "STRONG BUY"
	case models.SignalStrongSell:
		return "STRONG SELL"
	default:
		return strings.ToUpper(string(s))
	}
}

func implicationClass(i models.PatternImplication) string {
	switch i {
	case models.ImplicationBullish:
		return "positive"
	case models.ImplicationBearish:
		return "negative"
	default:
		return "neutral"
	}
}

func formatPrice(v float64) string {
	if v == 0 {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func joinPrices(vs []float64) string {
	if len(vs) == 0 {
		return "-"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatPrice(v)
	}
	return strings.Join(parts, ", ")
}

func joinLevels(levels []models.KeyLevel) string {
	parts := make([]string, 0, len(levels))
	for _, l := range levels {
		parts = append(parts, fmt.Sprintf("%s %s", l.Name, formatPrice(l.Value)))
	}
	return strings.Join(parts, "; ")
}

// ════════════════════════════════════════════════════════════════════
// Plain-text renderer
// ════════════════════════════════════════════════════════════════════

func renderTextReport(d ReportData) string {
	var sb strings.Builder
	line := strings.Repeat("═", 60)
	thinLine := strings.Repeat("─", 60)

	sb.WriteString("\n" + line + "\n")
	sb.WriteString(fmt.Sprintf("  %s\n", d.Title))
	sb.WriteString(fmt.Sprintf("  Analyzed: %s | Generated: %s | %s\n", d.AnalyzedAt, d.GeneratedAt, d.Author))
	sb.WriteString(line + "\n\n")

	sb.WriteString(fmt.Sprintf("  %s | %s | Profile: %s\n", d.Symbol, d.Timeframe, d.RiskProfile))
	sb.WriteString(fmt.Sprintf("  Signal: %s (Confidence: %s) | Risk: %s\n", d.Signal, d.Confidence, d.RiskLevel))
	sb.WriteString(fmt.Sprintf("  Buy: %s | Sell: %s | Stop Loss: %s\n", d.BuyTargets, d.SellTargets, d.StopLoss))
	sb.WriteString(thinLine + "\n")

	if d.ShowSummary {
		sb.WriteString("\n  ★ SUMMARY\n")
		sb.WriteString(fmt.Sprintf("  Trend: %s | Sentiment: %s\n", d.Trend, d.Sentiment))
		sb.WriteString(fmt.Sprintf("\n  %s\n", d.Summary))
		if d.Prediction != "" {
			sb.WriteString(fmt.Sprintf("\n  Outlook: %s\n", d.Prediction))
		}
		for _, t := range d.Takeaways {
			sb.WriteString(fmt.Sprintf("    • %s\n", t))
		}
		if d.ProTip != "" {
			sb.WriteString(fmt.Sprintf("\n  Pro tip: %s\n", d.ProTip))
		}
		sb.WriteString(thinLine + "\n")
	}

	if d.ShowPatterns {
		sb.WriteString("\n  ■ PATTERNS\n")
		for _, p := range d.Patterns {
			sb.WriteString(fmt.Sprintf("    [%s] %s (%s, %s reliability)\n", p.Implication, p.Name, p.Category, p.Reliability))
			if p.Levels != "" {
				sb.WriteString(fmt.Sprintf("        %s\n", p.Levels))
			}
		}
		sb.WriteString(thinLine + "\n")
	}

	if d.ShowIndicators {
		sb.WriteString("\n  ■ INDICATORS\n")
		for _, ind := range d.Indicators {
			label := ind.Name
			if ind.Value != "" {
				label += " " + ind.Value
			}
			sb.WriteString(fmt.Sprintf("    %-20s %s\n", label, ind.Signal))
		}
		sb.WriteString(thinLine + "\n")
	}

	if d.ShowStrategy {
		sb.WriteString(fmt.Sprintf("\n  ■ STRATEGY: %s\n", d.StrategyTitle))
		sb.WriteString(fmt.Sprintf("  %s\n", d.StrategyDescription))
		for _, c := range d.EntryConditions {
			sb.WriteString(fmt.Sprintf("    entry: %s\n", c))
		}
		for _, c := range d.ExitConditions {
			sb.WriteString(fmt.Sprintf("    exit:  %s\n", c))
		}
		if d.AlternativeTitle != "" {
			sb.WriteString(fmt.Sprintf("  Alternative: %s (when %s)\n", d.AlternativeTitle, d.AlternativeTrigger))
		}
		sb.WriteString(fmt.Sprintf("  Sizing: %s | R/R: %s\n", d.PositionSizing, d.RiskReward))
		sb.WriteString(thinLine + "\n")
	}

	if d.ShowBacktest && d.Backtest != nil {
		b := d.Backtest
		sb.WriteString("\n  ■ SIMULATED BACKTEST\n")
		sb.WriteString(fmt.Sprintf("    P/L: %s | Win rate: %s | Max DD: %s\n", b.ProfitLoss, b.WinRate, b.MaxDrawdown))
		sb.WriteString(fmt.Sprintf("    Profit factor: %s | Trades: %s | Period: %s\n", b.ProfitFactor, b.Trades, b.Period))
		sb.WriteString(thinLine + "\n")
	}

	if d.ShowNews {
		sb.WriteString("\n  ■ NEWS\n")
		sb.WriteString(fmt.Sprintf("  %s\n", d.NewsSummary))
		sb.WriteString(thinLine + "\n")
	}

	if d.ShowSources {
		sb.WriteString("\n  ■ SOURCES\n")
		for _, s := range d.Sources {
			sb.WriteString(fmt.Sprintf("    %s <%s>\n", s.Title, s.URI))
		}
		for _, f := range d.Files {
			sb.WriteString(fmt.Sprintf("    file: %s\n", f))
		}
		sb.WriteString(thinLine + "\n")
	}

	sb.WriteString("\n" + line + "\n")
	sb.WriteString("  Disclaimer: This report is AI-generated for educational purposes.\n")
	sb.WriteString("  It is not financial advice.\n")
	sb.WriteString(line + "\n")

	return sb.String()
}
