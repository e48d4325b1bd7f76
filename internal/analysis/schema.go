package analysis

import (
	"github.com/seenimoa/tradelens/internal/llm"
	"github.com/seenimoa/tradelens/pkg/models"
)

// AnalysisSchema is the structured-output contract of the analysis call.
// The same schema drives response validation.
func AnalysisSchema() *llm.JSONSchema {
	keyLevel := llm.ObjectSchema("A named price level.", map[string]*llm.JSONSchema{
		"name":  llm.StringProp("Level name, e.g. Neckline."),
		"value": llm.NumberProp("Price of the level."),
	}, "name", "value")

	pattern := llm.ObjectSchema("A detected chart pattern.", map[string]*llm.JSONSchema{
		"name":        llm.StringProp("Pattern name."),
		"description": llm.StringProp("What the pattern shows on this chart."),
		"implication": llm.EnumProp("Directional bias.",
			string(models.ImplicationBullish), string(models.ImplicationBearish), string(models.ImplicationNeutral)),
		"category": llm.EnumProp("Pattern family.",
			string(models.PatternClassic), string(models.PatternCandlestick), string(models.PatternHarmonic)),
		"reliability": llm.EnumProp("How trustworthy the pattern is.",
			string(models.ReliabilityLow), string(models.ReliabilityMedium), string(models.ReliabilityHigh)),
		"keyLevels": llm.ArrayProp("Important levels of the pattern.", keyLevel),
		"startDate": llm.StringProp("UTC ISO-8601 start of the pattern."),
		"endDate":   llm.StringProp("UTC ISO-8601 end of the pattern."),
	}, "name", "description", "implication", "category", "reliability")

	signalReading := func(desc string) *llm.JSONSchema {
		return llm.ObjectSchema(desc, map[string]*llm.JSONSchema{
			"signal":      llm.StringProp("Reading, e.g. Bullish crossover."),
			"description": llm.StringProp("Explanation of the reading."),
		}, "signal", "description")
	}

	indicators := llm.ObjectSchema("Indicator readings.", map[string]*llm.JSONSchema{
		"rsi": llm.ObjectSchema("RSI reading.", map[string]*llm.JSONSchema{
			"value":       llm.RangeProp("RSI value.", 0, 100),
			"signal":      llm.StringProp("Overbought, Oversold or Neutral."),
			"description": llm.StringProp("Explanation of the reading."),
		}, "value", "signal", "description"),
		"macd":      signalReading("MACD reading."),
		"bollinger": signalReading("Bollinger Bands reading."),
	}, "rsi", "macd", "bollinger")

	strategy := llm.ObjectSchema("Two-tier trading strategy.", map[string]*llm.JSONSchema{
		"primary": llm.ObjectSchema("Main plan.", map[string]*llm.JSONSchema{
			"title":           llm.StringProp("Strategy title."),
			"description":     llm.StringProp("Strategy description."),
			"entryConditions": llm.ArrayProp("Entry conditions.", llm.StringProp("")),
			"exitConditions":  llm.ArrayProp("Exit conditions.", llm.StringProp("")),
		}, "title", "description", "entryConditions", "exitConditions"),
		"alternative": llm.ObjectSchema("Fallback plan.", map[string]*llm.JSONSchema{
			"title":            llm.StringProp("Strategy title."),
			"description":      llm.StringProp("Strategy description."),
			"triggerCondition": llm.StringProp("When to switch to this plan."),
		}, "title", "description", "triggerCondition"),
		"riskManagement": llm.ObjectSchema("Risk guidance.", map[string]*llm.JSONSchema{
			"positionSizing":  llm.StringProp("Position sizing advice."),
			"riskRewardRatio": llm.StringProp("Expected risk/reward, e.g. 1:3."),
		}, "positionSizing", "riskRewardRatio"),
		"simulatedBacktestNotes": llm.StringProp("Notes on how the strategy would have performed."),
	}, "primary", "riskManagement", "simulatedBacktestNotes")

	candle := llm.ObjectSchema("One OHLCV candle.", map[string]*llm.JSONSchema{
		"date":   llm.StringProp("UTC ISO-8601 timestamp."),
		"open":   llm.NumberProp("Open price."),
		"high":   llm.NumberProp("High price."),
		"low":    llm.NumberProp("Low price."),
		"close":  llm.NumberProp("Close price."),
		"volume": llm.NumberProp("Traded volume."),
	}, "date", "open", "high", "low", "close", "volume")

	point := llm.ObjectSchema("One projected price.", map[string]*llm.JSONSchema{
		"date":  llm.StringProp("UTC ISO-8601 timestamp."),
		"price": llm.NumberProp("Projected price."),
		"type":  llm.EnumProp("Always predicted.", "predicted"),
	}, "date", "price", "type")

	backtest := llm.ObjectSchema("Simulated backtest of the primary strategy.", map[string]*llm.JSONSchema{
		"totalProfitLoss": llm.NumberProp("Total profit or loss in percent."),
		"winRate":         llm.RangeProp("Winning trades in percent.", 0, 100),
		"maxDrawdown":     llm.NumberProp("Maximum drawdown in percent."),
		"profitFactor":    llm.NumberProp("Gross profit divided by gross loss."),
		"period":          llm.StringProp("Period covered."),
		"tradesCount":     llm.IntProp("Number of simulated trades."),
	}, "totalProfitLoss", "winRate", "maxDrawdown", "profitFactor", "period", "tradesCount")

	return llm.ObjectSchema("Complete financial analysis.", map[string]*llm.JSONSchema{
		"symbol":            llm.StringProp("Analysed symbol."),
		"timeframe":         llm.StringProp("Analysed timeframe."),
		"timezone":          llm.StringProp("Timezone used for dates in the narrative."),
		"trend":             llm.StringProp("Overall trend."),
		"summary":           llm.StringProp("Executive summary."),
		"signal":            llm.EnumProp("Trade signal.", enumValues(models.Signals)...),
		"sentiment":         llm.StringProp("Market sentiment label."),
		"sentimentScore":    llm.RangeProp("Sentiment score.", -100, 100),
		"newsSummary":       llm.StringProp("Summary of the relevant news."),
		"patterns":          llm.ArrayProp("Detected chart patterns.", pattern),
		"indicators":        indicators,
		"strategy":          strategy,
		"buyTargets":        llm.ArrayProp("Buy price targets.", llm.NumberProp("")),
		"sellTargets":       llm.ArrayProp("Sell price targets.", llm.NumberProp("")),
		"stopLoss":          llm.NumberProp("Stop-loss price."),
		"prediction":        llm.StringProp("Price prediction narrative."),
		"riskLevel":         llm.EnumProp("Risk of the setup.", enumValues(models.RiskLevels)...),
		"confidence":        llm.RangeProp("Confidence in percent.", 0, 100),
		"candlestickData":   llm.ArrayProp("The last 60 candles.", candle),
		"priceChartData":    llm.ArrayProp("Projection for the next 10 candles.", point),
		"learnedInsights":   llm.StringProp("New general insight, or the fixed no-insight sentence."),
		"keyTakeaways":      llm.ArrayProp("Key takeaways.", llm.StringProp("")),
		"proTip":            llm.StringProp("One professional tip."),
		"astrologyAnalysis": llm.StringProp("Financial astrology reading, only when requested."),
		"backtestResult":    backtest,
	},
		"symbol", "timeframe", "timezone", "trend", "summary", "signal", "sentiment",
		"sentimentScore", "newsSummary", "patterns", "indicators", "strategy",
		"buyTargets", "sellTargets", "stopLoss", "prediction", "riskLevel", "confidence",
		"candlestickData", "priceChartData", "learnedInsights", "keyTakeaways", "proTip",
	)
}

func enumValues[T ~string](vs []T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}
