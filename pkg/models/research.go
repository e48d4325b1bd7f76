package models

import "time"

// MarketType groups symbols by market.
type MarketType string

const (
	MarketCrypto     MarketType = "Crypto"
	MarketForex      MarketType = "Forex"
	MarketUSStocks   MarketType = "US Stocks"
	MarketIranBourse MarketType = "Iran Bourse"
	MarketOther      MarketType = "Other"
)

// FinancialSymbol is a symbol suggestion.
type FinancialSymbol struct {
	Symbol  string     `json:"symbol"`
	Name    string     `json:"name"`
	Market  MarketType `json:"market"`
	Popular bool       `json:"popular,omitempty"`
}

// NewsItem is one headline.
type NewsItem struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Link        string    `json:"link"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"publishedAt,omitzero"`
}

// ComparisonMetric is one row of a side-by-side comparison.
type ComparisonMetric struct {
	Metric       string `json:"metric"`
	SymbolAValue string `json:"symbolAValue"`
	SymbolBValue string `json:"symbolBValue"`
}

// ComparativeAnalysisResult compares two symbols for one risk profile.
type ComparativeAnalysisResult struct {
	SymbolA            string             `json:"symbolA"`
	SymbolB            string             `json:"symbolB"`
	Timeframe          Timeframe          `json:"timeframe"`
	RiskProfile        RiskProfile        `json:"riskProfile"`
	KeyMetrics         []ComparisonMetric `json:"keyMetrics"`
	ComparativeSummary string             `json:"comparativeSummary"`
	Recommendation     string             `json:"recommendation"`
	ProRecommendation  string             `json:"proRecommendation"`
	ConRecommendation  string             `json:"conRecommendation"`
}

// HotMetric is a labelled figure attached to a hot symbol.
type HotMetric struct {
	Metric string `json:"metric"`
	Value  string `json:"value"`
}

// HotSymbol is a trending symbol with the reason it is trending.
type HotSymbol struct {
	Symbol           string      `json:"symbol"`
	Name             string      `json:"name"`
	Market           MarketType  `json:"market"`
	Reason           string      `json:"reason"`
	KeyMetrics       []HotMetric `json:"keyMetrics"`
	DetailedAnalysis string      `json:"detailedAnalysis"`
}
