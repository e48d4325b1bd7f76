// Package catalog holds the built-in trading strategies and indicators the
// user can select for an analysis, and the default selection rules.
package catalog

import (
	"slices"
	"strings"

	"github.com/seenimoa/tradelens/pkg/models"
)

// Technique is one built-in strategy or indicator.
type Technique struct {
	Name        string               `json:"name"`
	Type        models.TechniqueType `json:"type"`
	Description string               `json:"description"`
}

// Strategy names.
const (
	ClassicTechnical = "Classic Technical Analysis"
	PriceAction      = "Price Action"
	ElliottWave      = "Elliott Wave"
	DayTrading       = "Day Trading"
	SwingTrading     = "Swing Trading"
	Scalping         = "Scalping"
	PositionTrading  = "Position Trading"
	ValueInvesting   = "Value Investing"
	GrowthInvesting  = "Growth Investing"
	NewsTrading      = "News Trading"
	Contrarian       = "Contrarian Trading"
	Astrology        = "Financial Astrology"
)

// Indicator names.
const (
	RSI            = "RSI"
	MACD           = "MACD"
	BollingerBands = "Bollinger Bands"
	IchimokuCloud  = "Ichimoku Cloud"
	VolumeProfile  = "Volume Profile"
	ATR            = "ATR"
	Stochastic     = "Stochastic Oscillator"
	Fibonacci      = "Fibonacci Retracement"
)

var strategies = []Technique{
	{ClassicTechnical, models.TechniqueStrategy, "Common indicators and classic chart patterns."},
	{PriceAction, models.TechniqueStrategy, "Reads price movement and candles without indicators."},
	{ElliottWave, models.TechniqueStrategy, "Identifies impulse and corrective waves in the trend."},
	{DayTrading, models.TechniqueStrategy, "Short-term trades opened and closed within one day."},
	{SwingTrading, models.TechniqueStrategy, "Trades held from a few days to a few weeks."},
	{Scalping, models.TechniqueStrategy, "Small gains from very fast trades."},
	{PositionTrading, models.TechniqueStrategy, "Positions held for a long period."},
	{ValueInvesting, models.TechniqueStrategy, "Buys assets trading below intrinsic value."},
	{GrowthInvesting, models.TechniqueStrategy, "Focuses on assets with high growth potential."},
	{NewsTrading, models.TechniqueStrategy, "Reacts quickly to news and economic events."},
	{Contrarian, models.TechniqueStrategy, "Trades against the prevailing market direction."},
	{Astrology, models.TechniqueStrategy, "Unconventional view based on astronomical events."},
}

var indicators = []Technique{
	{RSI, models.TechniqueIndicator, "Relative Strength Index, momentum oscillator between 0 and 100."},
	{MACD, models.TechniqueIndicator, "Moving Average Convergence Divergence, trend and momentum."},
	{BollingerBands, models.TechniqueIndicator, "Volatility bands around a moving average."},
	{IchimokuCloud, models.TechniqueIndicator, "Support, resistance and trend direction from the cloud."},
	{VolumeProfile, models.TechniqueIndicator, "Traded volume distributed across price levels."},
	{ATR, models.TechniqueIndicator, "Average True Range, a measure of volatility."},
	{Stochastic, models.TechniqueIndicator, "Closing price relative to the recent range."},
	{Fibonacci, models.TechniqueIndicator, "Retracement levels derived from the Fibonacci ratios."},
}

// Strategies returns a copy of the built-in strategies.
func Strategies() []Technique { return slices.Clone(strategies) }

// Indicators returns a copy of the built-in indicators.
func Indicators() []Technique { return slices.Clone(indicators) }

// Lookup finds a built-in technique by name, case-insensitively.
func Lookup(name string) (Technique, bool) {
	for _, t := range append(Strategies(), indicators...) {
		if strings.EqualFold(t.Name, strings.TrimSpace(name)) {
			return t, true
		}
	}
	return Technique{}, false
}

// Filter keeps the built-in techniques named in names, in catalog order.
// Unknown names are dropped.
func Filter(names []string) []Technique {
	var out []Technique
	for _, t := range append(Strategies(), indicators...) {
		if slices.ContainsFunc(names, func(n string) bool { return strings.EqualFold(n, t.Name) }) {
			out = append(out, t)
		}
	}
	return out
}

// WantsAstrology reports whether the astrology strategy is among the selection.
func WantsAstrology(selected []string) bool {
	return slices.ContainsFunc(selected, func(n string) bool { return strings.EqualFold(n, Astrology) })
}

// Selection is a set of strategy and indicator names.
type Selection struct {
	Strategies []string `json:"strategies"`
	Indicators []string `json:"indicators"`
}

// DefaultSelection builds the suggested selection for a timeframe and risk
// profile. Layers are applied in order: base, timeframe, risk.
func DefaultSelection(tf models.Timeframe, risk models.RiskProfile) Selection {
	s := Selection{
		Strategies: []string{ClassicTechnical, PriceAction},
		Indicators: []string{RSI, MACD},
	}

	switch tf {
	case models.Timeframe5m, models.Timeframe15m:
		s.Strategies = append(s.Strategies, Scalping)
		s.Indicators = append(s.Indicators, Stochastic)
	case models.Timeframe1h, models.Timeframe4h, models.TimeframeDaily:
		s.Strategies = append(s.Strategies, DayTrading, SwingTrading)
		s.Indicators = append(s.Indicators, BollingerBands)
	case models.TimeframeWeekly, models.TimeframeMonthly, models.TimeframeYearly:
		s.Strategies = append(s.Strategies, PositionTrading, GrowthInvesting)
		s.Indicators = append(s.Indicators, IchimokuCloud)
	}

	switch risk {
	case models.RiskAggressive:
		s.Strategies = append(s.Strategies, NewsTrading)
	case models.RiskConservative:
		s.Strategies = append(s.Strategies, ValueInvesting)
	}
	return s
}
