package models

import "time"

// Signal is the trade direction returned by the reasoning engine.
type Signal string

const (
	SignalStrongBuy  Signal = "strong-buy"
	SignalBuy        Signal = "buy"
	SignalHold       Signal = "hold"
	SignalSell       Signal = "sell"
	SignalStrongSell Signal = "strong-sell"
)

// Signals lists every valid signal in display order.
var Signals = []Signal{SignalStrongBuy, SignalBuy, SignalHold, SignalSell, SignalStrongSell}

// RiskLevel is the risk grade attached to an analysis.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskLevels lists every valid risk level.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh}

// NoNewInsight is the exact text the engine returns in learnedInsights when
// the analysis produced nothing worth remembering.
const NoNewInsight = "No new insight was learned from this analysis."

// ── Patterns ──

// PatternImplication is the directional bias of a detected pattern.
type PatternImplication string

const (
	ImplicationBullish PatternImplication = "Bullish"
	ImplicationBearish PatternImplication = "Bearish"
	ImplicationNeutral PatternImplication = "Neutral"
)

// PatternCategory groups chart patterns.
type PatternCategory string

const (
	PatternClassic     PatternCategory = "Classic Chart"
	PatternCandlestick PatternCategory = "Candlestick"
	PatternHarmonic    PatternCategory = "Harmonic"
)

// PatternReliability grades how trustworthy a pattern is.
type PatternReliability string

const (
	ReliabilityLow    PatternReliability = "Low"
	ReliabilityMedium PatternReliability = "Medium"
	ReliabilityHigh   PatternReliability = "High"
)

// KeyLevel is a named price level attached to a pattern.
type KeyLevel struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Pattern is one chart pattern detected by the engine.
type Pattern struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Implication PatternImplication `json:"implication"`
	Category    PatternCategory    `json:"category"`
	Reliability PatternReliability `json:"reliability"`
	KeyLevels   []KeyLevel         `json:"keyLevels,omitempty"`
	StartDate   string             `json:"startDate,omitempty"`
	EndDate     string             `json:"endDate,omitempty"`
}

// ── Indicators ──

// RSIReading is the RSI block of the indicator analysis.
type RSIReading struct {
	Value       float64 `json:"value"`
	Signal      string  `json:"signal"` // Overbought, Oversold, Neutral
	Description string  `json:"description"`
}

// SignalReading is a signal + description pair (MACD, Bollinger).
type SignalReading struct {
	Signal      string `json:"signal"`
	Description string `json:"description"`
}

// IndicatorAnalysis holds the indicator readings.
type IndicatorAnalysis struct {
	RSI       RSIReading    `json:"rsi"`
	MACD      SignalReading `json:"macd"`
	Bollinger SignalReading `json:"bollinger"`
}

// ── Strategy ──

// PrimaryStrategy is the main plan of an analysis.
type PrimaryStrategy struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	EntryConditions []string `json:"entryConditions"`
	ExitConditions  []string `json:"exitConditions"`
}

// AlternativeStrategy is the fallback plan and its trigger.
type AlternativeStrategy struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	TriggerCondition string `json:"triggerCondition"`
}

// RiskManagement carries position sizing guidance.
type RiskManagement struct {
	PositionSizing  string `json:"positionSizing"`
	RiskRewardRatio string `json:"riskRewardRatio"`
}

// Strategy is the two-tier strategy object.
type Strategy struct {
	Primary                PrimaryStrategy      `json:"primary"`
	Alternative            *AlternativeStrategy `json:"alternative,omitempty"`
	RiskManagement         RiskManagement       `json:"riskManagement"`
	SimulatedBacktestNotes string               `json:"simulatedBacktestNotes"`
}

// ── Series ──

// Candle is one OHLCV bar. Date is an ISO-8601 UTC string.
type Candle struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Time parses the candle date.
func (c Candle) Time() (time.Time, error) {
	return time.Parse(time.RFC3339, c.Date)
}

// PricePoint is one point of the projected price series.
type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
	Type  string  `json:"type"` // always "predicted"
}

// BacktestResult is the engine's simulated backtest summary.
type BacktestResult struct {
	TotalProfitLoss float64 `json:"totalProfitLoss"` // percent
	WinRate         float64 `json:"winRate"`         // percent
	MaxDrawdown     float64 `json:"maxDrawdown"`     // percent
	ProfitFactor    float64 `json:"profitFactor"`
	Period          string  `json:"period"`
	TradesCount     int     `json:"tradesCount"`
}

// AnalysisResult is the structured answer of the reasoning engine. It is
// produced only by the validation gate in the analysis package.
type AnalysisResult struct {
	Symbol            string            `json:"symbol"`
	Timeframe         Timeframe         `json:"timeframe"`
	Timezone          string            `json:"timezone"`
	Trend             string            `json:"trend"`
	Summary           string            `json:"summary"`
	Signal            Signal            `json:"signal"`
	Sentiment         string            `json:"sentiment"`
	SentimentScore    float64           `json:"sentimentScore"`
	NewsSummary       string            `json:"newsSummary"`
	Patterns          []Pattern         `json:"patterns"`
	Indicators        IndicatorAnalysis `json:"indicators"`
	Strategy          *Strategy         `json:"strategy,omitempty"`
	BuyTargets        []float64         `json:"buyTargets"`
	SellTargets       []float64         `json:"sellTargets"`
	StopLoss          float64           `json:"stopLoss"`
	Prediction        string            `json:"prediction"`
	RiskLevel         RiskLevel         `json:"riskLevel"`
	Confidence        float64           `json:"confidence"`
	CandlestickData   []Candle          `json:"candlestickData"`
	PriceChartData    []PricePoint      `json:"priceChartData"`
	LearnedInsights   string            `json:"learnedInsights,omitempty"`
	KeyTakeaways      []string          `json:"keyTakeaways"`
	ProTip            string            `json:"proTip"`
	AstrologyAnalysis string            `json:"astrologyAnalysis,omitempty"`
	BacktestResult    *BacktestResult   `json:"backtestResult,omitempty"`
}

// HasNewInsight reports whether learnedInsights carries something to keep.
func (r *AnalysisResult) HasNewInsight() bool {
	return r.LearnedInsights != "" && r.LearnedInsights != NoNewInsight
}
