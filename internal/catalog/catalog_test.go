package catalog

import (
	"slices"
	"testing"

	"github.com/seenimoa/tradelens/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Built-in lists
// ════════════════════════════════════════════════════════════════════

func TestCatalogSizes(t *testing.T) {
	if got := len(Strategies()); got != 12 {
		t.Errorf("strategies: got %d, want 12", got)
	}
	if got := len(Indicators()); got != 8 {
		t.Errorf("indicators: got %d, want 8", got)
	}
	for _, s := range Strategies() {
		if s.Description == "" || s.Type != models.TechniqueStrategy {
			t.Errorf("strategy %q malformed: %+v", s.Name, s)
		}
	}
	for _, i := range Indicators() {
		if i.Description == "" || i.Type != models.TechniqueIndicator {
			t.Errorf("indicator %q malformed: %+v", i.Name, i)
		}
	}
}

func TestStrategiesReturnsCopy(t *testing.T) {
	s := Strategies()
	s[0].Name = "mutated"
	if Strategies()[0].Name != ClassicTechnical {
		t.Error("Strategies should return a copy")
	}
}

func TestLookupAndFilter(t *testing.T) {
	if tech, ok := Lookup("  rsi "); !ok || tech.Name != RSI {
		t.Errorf("Lookup(rsi) = %+v, %v", tech, ok)
	}
	if _, ok := Lookup("Tea Leaves"); ok {
		t.Error("unknown name should not be found")
	}

	got := Filter([]string{MACD, "unknown", Scalping})
	if len(got) != 2 {
		t.Fatalf("Filter: got %d, want 2", len(got))
	}
	if got[0].Name != Scalping || got[1].Name != MACD {
		t.Errorf("Filter should keep catalog order, got %q, %q", got[0].Name, got[1].Name)
	}
}

func TestWantsAstrology(t *testing.T) {
	if WantsAstrology([]string{ClassicTechnical}) {
		t.Error("astrology not selected")
	}
	if !WantsAstrology([]string{"financial astrology"}) {
		t.Error("astrology match should be case-insensitive")
	}
}

// ════════════════════════════════════════════════════════════════════
// Default selection
// ════════════════════════════════════════════════════════════════════

func TestDefaultSelection(t *testing.T) {
	tests := []struct {
		name       string
		tf         models.Timeframe
		risk       models.RiskProfile
		strategies []string
		indicators []string
	}{
		{"short balanced", models.Timeframe5m, models.RiskBalanced,
			[]string{ClassicTechnical, PriceAction, Scalping},
			[]string{RSI, MACD, Stochastic}},
		{"mid aggressive", models.Timeframe4h, models.RiskAggressive,
			[]string{ClassicTechnical, PriceAction, DayTrading, SwingTrading, NewsTrading},
			[]string{RSI, MACD, BollingerBands}},
		{"long conservative", models.TimeframeMonthly, models.RiskConservative,
			[]string{ClassicTechnical, PriceAction, PositionTrading, GrowthInvesting, ValueInvesting},
			[]string{RSI, MACD, IchimokuCloud}},
		{"short aggressive", models.Timeframe15m, models.RiskAggressive,
			[]string{ClassicTechnical, PriceAction, Scalping, NewsTrading},
			[]string{RSI, MACD, Stochastic}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultSelection(tt.tf, tt.risk)
			if !slices.Equal(got.Strategies, tt.strategies) {
				t.Errorf("strategies: got %v, want %v", got.Strategies, tt.strategies)
			}
			if !slices.Equal(got.Indicators, tt.indicators) {
				t.Errorf("indicators: got %v, want %v", got.Indicators, tt.indicators)
			}
		})
	}
}
