package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/seenimoa/tradelens/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

func sampleCandles(n int) []models.Candle {
	out := make([]models.Candle, n)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		open := 100 + float64(i)
		close := open + float64(i%3) - 1
		out[i] = models.Candle{
			Date:   start.AddDate(0, 0, i).Format(time.RFC3339),
			Open:   open,
			High:   max(open, close) + 2,
			Low:    min(open, close) - 2,
			Close:  close,
			Volume: float64(1000 + i*10),
		}
	}
	return out
}

func sampleRecord() *models.AnalysisRecord {
	return &models.AnalysisRecord{
		ID:          7,
		Timestamp:   time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC),
		Symbol:      "AAPL",
		Timeframe:   models.TimeframeDaily,
		Timezone:    "UTC",
		RiskProfile: models.RiskBalanced,
		FilesUsed:   []models.Artifact{{Name: "q4.csv"}},
		Sources: []models.GroundingSource{
			{Web: &models.WebSource{URI: "https://example.com/a", Title: "Earnings beat"}},
			{Web: &models.WebSource{}},
		},
		Analysis: models.AnalysisResult{
			Symbol:         "AAPL",
			Timeframe:      models.TimeframeDaily,
			Trend:          "Uptrend",
			Summary:        "Momentum is strong <script>alert(1)</script>",
			Signal:         models.SignalStrongBuy,
			Sentiment:      "Bullish",
			SentimentScore: 62,
			NewsSummary:    "Services revenue grew.",
			Patterns: []models.Pattern{{
				Name:        "Cup and Handle",
				Description: "Rounded base",
				Implication: models.ImplicationBullish,
				Category:    models.PatternClassic,
				Reliability: models.ReliabilityHigh,
				KeyLevels:   []models.KeyLevel{{Name: "Breakout", Value: 198.5}},
			}},
			Indicators: models.IndicatorAnalysis{
				RSI:       models.RSIReading{Value: 64.2, Signal: "Neutral", Description: "Room to run"},
				MACD:      models.SignalReading{Signal: "Bullish crossover"},
				Bollinger: models.SignalReading{Signal: "Upper band"},
			},
			Strategy: &models.Strategy{
				Primary: models.PrimaryStrategy{
					Title:           "Breakout continuation",
					EntryConditions: []string{"Close above 198.5"},
					ExitConditions:  []string{"Close below 190"},
				},
				Alternative:    &models.AlternativeStrategy{Title: "Pullback buy", TriggerCondition: "retest of 190"},
				RiskManagement: models.RiskManagement{PositionSizing: "2% of equity", RiskRewardRatio: "1:3"},
			},
			BuyTargets:      []float64{198.5, 205},
			SellTargets:     []float64{215},
			StopLoss:        189.9,
			Prediction:      "Higher highs likely",
			RiskLevel:       models.RiskMedium,
			Confidence:      78,
			CandlestickData: sampleCandles(20),
			PriceChartData: []models.PricePoint{
				{Date: "2025-01-21", Price: 125, Type: "predicted"},
				{Date: "2025-01-22T00:00:00Z", Price: 128, Type: "predicted"},
			},
			LearnedInsights: models.NoNewInsight,
			KeyTakeaways:    []string{"Trend intact", "Watch 190"},
			ProTip:          "Scale in.",
			BacktestResult: &models.BacktestResult{
				TotalProfitLoss: 12.5, WinRate: 58, MaxDrawdown: 6.2, ProfitFactor: 1.8, Period: "1y", TradesCount: 24,
			},
		},
	}
}

// ════════════════════════════════════════════════════════════════════
// HTML Report
// ════════════════════════════════════════════════════════════════════

func TestGenerateHTML(t *testing.T) {
	html, err := GenerateHTML(sampleRecord(), DefaultReportConfig())
	if err != nil {
		t.Fatalf("GenerateHTML: %v", err)
	}

	for _, want := range []string{
		"<!DOCTYPE html>",
		`<span class="ticker-badge">AAPL</span>`,
		`rec-box strong-buy`,
		"STRONG BUY",
		"Cup and Handle",
		"Breakout 198.5",
		"Breakout continuation",
		"Pullback buy",
		"&#43;12.50%",
		"198.5, 205",
		`href="https://example.com/a"`,
		"file: q4.csv",
		"Price &amp; Projection",
		"<svg",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Error("summary was not escaped")
	}
	if strings.Contains(html, "Learned:") {
		t.Error("placeholder insight should not be shown")
	}
}

func TestGenerateHTML_SectionFilter(t *testing.T) {
	cfg := DefaultReportConfig()
	cfg.Sections = []ReportSection{SectionSummary}
	html, err := GenerateHTML(sampleRecord(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "<h2>Summary</h2>") {
		t.Error("summary section missing")
	}
	for _, absent := range []string{"<h2>Patterns</h2>", "<h2>Indicators</h2>", "<h2>Sources</h2>", "Simulated Backtest"} {
		if strings.Contains(html, absent) {
			t.Errorf("filtered report still contains %q", absent)
		}
	}
}

func TestGenerateHTML_NoOptionalBlocks(t *testing.T) {
	rec := sampleRecord()
	rec.Analysis.Strategy = nil
	rec.Analysis.BacktestResult = nil
	rec.Analysis.CandlestickData = nil
	rec.Sources = nil
	rec.FilesUsed = nil

	html, err := GenerateHTML(rec, DefaultReportConfig())
	if err != nil {
		t.Fatal(err)
	}
	for _, absent := range []string{"Strategy:", "Simulated Backtest", "Price &amp; Projection", "<h2>Sources</h2>"} {
		if strings.Contains(html, absent) {
			t.Errorf("report contains %q for a record without it", absent)
		}
	}
}

func TestGenerate_NilRecord(t *testing.T) {
	if _, err := GenerateHTML(nil, DefaultReportConfig()); !errors.Is(err, ErrNilRecord) {
		t.Errorf("GenerateHTML(nil) = %v", err)
	}
	if _, err := GenerateText(nil, DefaultReportConfig()); !errors.Is(err, ErrNilRecord) {
		t.Errorf("GenerateText(nil) = %v", err)
	}
}

func TestBuildReportData_Timezone(t *testing.T) {
	rec := sampleRecord()
	rec.Timezone = "Asia/Kolkata"
	d := buildReportData(rec, ReportConfig{}, rec.Timestamp)
	if !strings.Contains(d.AnalyzedAt, "15:00") {
		t.Errorf("AnalyzedAt = %q, want 15:00 local", d.AnalyzedAt)
	}
	if d.Author != "TradeLens" {
		t.Errorf("Author = %q", d.Author)
	}
	if d.Title != "AAPL · daily Analysis" {
		t.Errorf("Title = %q", d.Title)
	}

	rec.Timezone = "Not/AZone"
	d = buildReportData(rec, ReportConfig{}, rec.Timestamp)
	if !strings.Contains(d.AnalyzedAt, "09:30") {
		t.Errorf("unknown zone should fall back to UTC, got %q", d.AnalyzedAt)
	}
}

// ════════════════════════════════════════════════════════════════════
// Text Report
// ════════════════════════════════════════════════════════════════════

func TestGenerateText(t *testing.T) {
	txt, err := GenerateText(sampleRecord(), DefaultReportConfig())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Signal: STRONG BUY (Confidence: 78%) | Risk: MEDIUM",
		"Stop Loss: 189.9",
		"[Bullish] Cup and Handle",
		"RSI 64.2",
		"entry: Close above 198.5",
		"Trades: 24",
		"Earnings beat <https://example.com/a>",
		"• Watch 190",
		"not financial advice",
	} {
		if !strings.Contains(txt, want) {
			t.Errorf("text report missing %q", want)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Sections
// ════════════════════════════════════════════════════════════════════

func TestParseSections(t *testing.T) {
	tests := []struct {
		in      []string
		want    int
		wantErr bool
	}{
		{nil, len(AllSections()), false},
		{[]string{"summary", " Chart "}, 2, false},
		{[]string{"fundamental"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			got, err := ParseSections(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Charts
// ════════════════════════════════════════════════════════════════════

func TestCandlestickChart(t *testing.T) {
	rec := sampleRecord()
	svg := CandlestickChart(rec.Analysis.CandlestickData, rec.Analysis.PriceChartData, DefaultChartConfig())
	if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatal("not an svg document")
	}
	if !strings.Contains(svg, "Projection") || !strings.Contains(svg, "stroke-dasharray=\"6,4\"") {
		t.Error("projection path missing")
	}
	if !strings.Contains(svg, "2025-01-01") {
		t.Error("date labels missing")
	}

	empty := CandlestickChart(nil, nil, ChartConfig{})
	if !strings.Contains(empty, "No price data") {
		t.Errorf("empty chart = %q", empty)
	}
}

func TestGaugeChart(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{150, ">100<"},
		{-5, ">0<"},
		{42, ">42<"},
	}
	for _, tt := range tests {
		svg := GaugeChart(tt.value, "Confidence", 0)
		if !strings.Contains(svg, tt.want) {
			t.Errorf("GaugeChart(%v) missing %q", tt.value, tt.want)
		}
	}
}

func TestEscapeXML(t *testing.T) {
	if got := escapeXML(`<a & "b">`); got != "&lt;a &amp; &quot;b&quot;&gt;" {
		t.Errorf("escapeXML = %q", got)
	}
}

func TestProjectionPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := ProjectionPNG(&buf, sampleRecord(), DefaultChartConfig()); err != nil {
		t.Fatalf("ProjectionPNG: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}
}

func TestProjectionPNG_NotEnoughData(t *testing.T) {
	flatRec := sampleRecord()
	for i := range flatRec.Analysis.CandlestickData {
		flatRec.Analysis.CandlestickData[i].Close = 10
	}
	flatRec.Analysis.PriceChartData = []models.PricePoint{{Date: "2025-03-01", Price: 10}}

	emptyRec := sampleRecord()
	emptyRec.Analysis.CandlestickData = nil
	emptyRec.Analysis.PriceChartData = []models.PricePoint{{Date: "bad", Price: 1}}

	for name, rec := range map[string]*models.AnalysisRecord{"flat": flatRec, "empty": emptyRec} {
		t.Run(name, func(t *testing.T) {
			err := ProjectionPNG(&bytes.Buffer{}, rec, ChartConfig{})
			if !errors.Is(err, ErrNotEnoughData) {
				t.Errorf("err = %v, want ErrNotEnoughData", err)
			}
		})
	}
	if err := ProjectionPNG(&bytes.Buffer{}, nil, ChartConfig{}); !errors.Is(err, ErrNilRecord) {
		t.Errorf("nil record err = %v", err)
	}
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2025-01-02T03:04:05Z", "2025-01-02T03:04:05", "2025-01-02T03:04", "2025-01-02"} {
		if _, ok := parseDate(s); !ok {
			t.Errorf("parseDate(%q) failed", s)
		}
	}
	if _, ok := parseDate("02/01/2025"); ok {
		t.Error("parseDate accepted a non-ISO date")
	}
}

// ════════════════════════════════════════════════════════════════════
// PDF
// ════════════════════════════════════════════════════════════════════

func TestExportPDF_HTMLFallback(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultPDFConfig(filepath.Join(dir, "out", "report.pdf"))
	cfg.Engine = EngineNone

	path, err := ExportPDF(context.Background(), "<html>ok</html>", cfg)
	if err != nil {
		t.Fatalf("ExportPDF: %v", err)
	}
	if filepath.Ext(path) != ".html" {
		t.Errorf("fallback path = %q, want .html", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "<html>ok</html>" {
		t.Errorf("fallback content = %q", data)
	}
}

func TestExportPDF_Errors(t *testing.T) {
	if _, err := ExportPDF(context.Background(), "", PDFConfig{}); err == nil {
		t.Error("expected error for missing output path")
	}
	if _, err := ExportPDF(context.Background(), "", PDFConfig{OutputPath: "x.pdf", Engine: "prince"}); err == nil {
		t.Error("expected error for unsupported engine")
	}
}
