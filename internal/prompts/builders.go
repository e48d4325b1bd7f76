package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/seenimoa/tradelens/internal/catalog"
	"github.com/seenimoa/tradelens/pkg/models"
)

// Fallback texts used when a best-effort web step returns nothing.
const (
	NoNews           = "No notable news found."
	NoWebContext     = "No additional web information found."
	notAvailable     = "Not available."
	fileSeparator    = "\n\n---\n\n"
	simulateFallback = "No file provided. Use your internal knowledge to simulate realistic, recent data."
)

// ── Phase 1: News ──

// News asks for a web-grounded summary of the latest news on symbol.
func News(symbol string) string {
	return fmt.Sprintf(`Using web search, give a summary of the latest and most important news and events related to the financial symbol "%s".`, symbol)
}

// ── Phase 2: Analysis ──

// AnalysisInput is everything the composite analysis prompt is built from.
type AnalysisInput struct {
	Symbol      string
	Timeframe   models.Timeframe
	Timezone    string
	RiskProfile models.RiskProfile
	Strategies  []string
	Indicators  []string
	Techniques  []models.LearnedTechnique
	Knowledge   string
	News        string
	Files       []models.Artifact
}

// Analysis builds the composite user prompt of the structured analysis call.
// Image files are only counted here; their bytes travel as attachments.
func Analysis(in AnalysisInput) string {
	var market, other []string
	images := 0
	for _, f := range in.Files {
		switch {
		case f.Category == models.CategoryChartImage || f.IsImage():
			images++
		case f.Category == models.CategoryMarketData:
			market = append(market, fmt.Sprintf("Market data file: %s\nContent:\n%s", f.Name, f.Content))
		default:
			other = append(other, fmt.Sprintf("File: %s\nContent:\n%s", f.Name, f.Content))
		}
	}

	news := in.News
	if strings.TrimSpace(news) == "" {
		news = NoNews
	}
	imageLine := notAvailable
	if images > 0 {
		imageLine = fmt.Sprintf("%d image(s) attached.", images)
	}

	var b strings.Builder
	b.WriteString("# Comprehensive Financial Analysis\n")
	b.WriteString("**Task:** You are a financial analyst API. Perform a complete analysis of the symbol below and return the result **only** as a valid JSON object.\n")
	b.WriteString("---\n## Input for the analysis:\n\n")

	b.WriteString("**1. Main parameters:**\n")
	fmt.Fprintf(&b, "   - **Symbol:** %s\n", in.Symbol)
	fmt.Fprintf(&b, "   - **Timeframe:** %s\n", in.Timeframe)
	fmt.Fprintf(&b, "   - **Timezone:** %s\n", in.Timezone)
	fmt.Fprintf(&b, "   - **User risk profile:** %s\n", in.RiskProfile.Label())
	fmt.Fprintf(&b, "   - **Selected strategies:** %s\n", strings.Join(in.Strategies, ", "))
	fmt.Fprintf(&b, "   - **Selected indicators:** %s\n\n", strings.Join(in.Indicators, ", "))

	b.WriteString("**2. User's custom library (learned strategies and indicators):**\n")
	fmt.Fprintf(&b, "   %s\n\n", orNotAvailable(Techniques(in.Techniques)))

	b.WriteString("**3. Learned knowledge (from previous analyses):**\n")
	fmt.Fprintf(&b, "   %s\n\n", orNotAvailable(in.Knowledge))

	b.WriteString("**4. Web news summary:**\n")
	fmt.Fprintf(&b, "   %s\n\n", news)

	b.WriteString("**5. User files:**\n")
	marketText := strings.Join(market, fileSeparator)
	if marketText == "" {
		marketText = simulateFallback
	}
	fmt.Fprintf(&b, "   - **Market data files (for price):** %s\n", marketText)
	fmt.Fprintf(&b, "   - **Other text files:** %s\n", orNotAvailable(strings.Join(other, fileSeparator)))
	fmt.Fprintf(&b, "   - **Chart images:** %s\n", imageLine)

	b.WriteString("---\n## Exact instructions for the JSON output:\n\n")
	b.WriteString("- **Output structure:** The output must be **exactly** one JSON object that fully matches the response schema. **Put no text outside this JSON object.** Every required field of the schema must be filled.\n")
	b.WriteString("- **Analysis focus:** Focus the technical analysis on the user's selected **strategies, indicators and custom techniques**.\n")
	b.WriteString("- **Data priority:** If the user uploaded market data files, the technical analysis (patterns, indicators) and the backtest simulation must be based *exclusively* on that data. Otherwise use your internal knowledge.\n")
	b.WriteString("- **Date format:** Every date field must be a UTC ISO 8601 string.\n")
	b.WriteString("- **Chart data:**\n")
	b.WriteString("    - **candlestickData:** provide an array of the **last 60 candles**.\n")
	b.WriteString("    - **priceChartData:** provide the price forecast for the **next 10 candles**.\n")
	b.WriteString("- **Backtest simulation:**\n")
	b.WriteString("    - **backtestResult:** give a **realistic, estimated** simulation of the primary strategy on past data. It is a statistical estimate, not an exact computation. If that is not possible, return an object with sensible default values.\n")
	b.WriteString("- **Learned insights:**\n")
	fmt.Fprintf(&b, "    - **learnedInsights:** if this analysis taught you something new, general and reusable, write it briefly here. Otherwise use the exact string %q.\n", models.NoNewInsight)
	b.WriteString("- **Astrology:**\n")
	if catalog.WantsAstrology(in.Strategies) {
		b.WriteString("    - The astrology strategy is selected: fill the `astrologyAnalysis` field.\n")
	} else {
		b.WriteString("    - The astrology strategy is not selected: do not include the `astrologyAnalysis` key.\n")
	}
	b.WriteString("\n**Start the analysis now and return only the JSON object.**\n")
	return b.String()
}

// Techniques renders learned techniques as the custom-library section.
func Techniques(ts []models.LearnedTechnique) string {
	lines := make([]string, 0, len(ts))
	for _, t := range ts {
		lines = append(lines, fmt.Sprintf("- Name: %s (Type: %s)\n  - Description: %s\n  - Parameters: %s",
			t.Name, t.Type, t.Description, t.Parameters))
	}
	return strings.Join(lines, "\n")
}

// ── Archive ──

// Categorize returns the system instruction and user prompt for file
// categorisation. Content is truncated to maxChars runes.
func Categorize(content string, maxChars int) (system, user string) {
	cats, _ := json.Marshal(models.FileCategories)
	return fmt.Sprintf(CategorizeSystem, cats), "File content:\n\n" + Truncate(content, maxChars)
}

// ── Techniques ──

// Extract builds the technique extraction prompt over a file's text.
func Extract(content string, maxChars int) string {
	return fmt.Sprintf("Analyse the content below and extract every trading strategy or indicator:\n\n---\n%s\n---",
		Truncate(content, maxChars))
}

// Discover builds the web discovery prompt, excluding the known techniques.
func Discover(existing []models.LearnedTechnique) string {
	lines := make([]string, 0, len(existing))
	for _, t := range existing {
		lines = append(lines, fmt.Sprintf("- %s (%s)", t.Name, t.Type))
	}
	exclusion := strings.Join(lines, "\n")
	if exclusion == "" {
		exclusion = "None"
	}

	return fmt.Sprintf(`# Task: discover new trading techniques from the web

Using web search, find 5 new, popular or innovative trading strategies or indicators that are **not** in the list below.

## Existing techniques (skip these):
%s

---
## Output instructions:

1.  **JSON only:** your output must be **only** a valid JSON array.
2.  **Object structure:** every object must have the keys "name", "type", "description" and "parameters".
    - **name:** the common descriptive name of the technique.
    - **type:** one of the strings 'Strategy' or 'Indicator'.
    - **description:** a complete explanation of how it works, its signals and when to use it.
    - **parameters:** the main parameters as one string, e.g. "length: 14, source: close", or "N/A".
3.  **Empty result:** if you find no suitable new technique, return an empty array [].

**Start searching now and return only the JSON array.**`, exclusion)
}

// ── Follow-ups ──

// WhatIf builds the scenario prompt on top of the original result.
func WhatIf(original *models.AnalysisResult, scenario string) (string, error) {
	raw, err := json.MarshalIndent(original, "", "  ")
	if err != nil {
		return "", fmt.Errorf("prompts: encoding analysis: %w", err)
	}
	return fmt.Sprintf("Original analysis:\n%s\n\nNew scenario:\n%q\n\nGiven the original analysis, analyse the impact of this new scenario.",
		raw, scenario), nil
}

// Chat builds the system instruction for a follow-up conversation, embedding
// the analysis the conversation is about.
func Chat(result *models.AnalysisResult) (string, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("prompts: encoding analysis: %w", err)
	}
	return ChatSystem + "\n\nAnalysis under discussion (JSON):\n" + string(raw), nil
}

// ── Research ──

// Suggest builds the symbol suggestion prompt.
func Suggest(query string) string {
	return fmt.Sprintf("Please find financial symbols for the following phrase: %q", query)
}

// LatestNews builds the global headline prompt.
func LatestNews() string {
	return `Using web search, find the 5 latest and most important global financial news articles. Return the result as a valid JSON array of objects. Each object must have "title", "summary", "link", and "source" properties. The "link" must be a full, valid URL. Do not include any surrounding text or markdown. Just the JSON array.`
}

// CompareSearch builds the best-effort web context prompt for a comparison.
func CompareSearch(a, b string) string {
	return fmt.Sprintf(`Using web search, summarise the latest news, key data and market sentiment for both financial symbols "%s" and "%s".`, a, b)
}

// Compare builds the structured comparison prompt.
func Compare(a, b string, tf models.Timeframe, risk models.RiskProfile, webContext string) string {
	if strings.TrimSpace(webContext) == "" {
		webContext = NoWebContext
	}
	return fmt.Sprintf(`**Background from the web:**
%s
---
Using the background above and your internal knowledge, compare **%s** and **%s**.
- **Timeframe:** %s
- **Investor risk profile:** %s

**Instructions:**
1.  **JSON output:** the whole output must be a valid JSON object matching the provided schema.
2.  **Key metrics:** give a head-to-head comparison for these metrics:
    - "Current trend" (e.g. "Bullish", "Bearish", "Neutral")
    - "Volatility" (e.g. "Low", "Medium", "High")
    - "Market sentiment" (e.g. "Fear", "Neutral", "Greed")
    - "Key support level"
    - "Key resistance level"
3.  **Comparative summary:** write a detailed paragraph on the key differences and similarities in "comparativeSummary".
4.  **Recommendation:** which asset do you recommend for an investor with this risk profile and why? Put it in "recommendation".
5.  **Pros and cons:** list one main strength in "proRecommendation" and one main weakness in "conRecommendation" for the recommended asset.`,
		webContext, a, b, tf, risk.Label())
}

// Hot builds the trending-symbols prompt.
func Hot() string {
	return `Identify 10 hot, rising financial symbols and give one JSON object per symbol with this structure:
{
  "symbol": "string",
  "name": "string",
  "market": "one of: 'Crypto', 'Forex', 'US Stocks', 'Iran Bourse', 'Other'",
  "reason": "string (short, compelling reason)",
  "keyMetrics": [{ "metric": "string", "value": "string" }],
  "detailedAnalysis": "string (more detailed analysis)"
}
Your whole output must be a JSON array of these objects and nothing else.`
}

// ── Helpers ──

// Truncate cuts s to at most n runes. n <= 0 disables truncation.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}
