package report

// ReportTemplate is the HTML template for an analysis report. Charts are
// inlined as SVG so the page is self-contained.
const ReportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: #ffffff;
    --text: #1a1a2e;
    --muted: #6b7280;
    --border: #e5e7eb;
    --accent: #1a73e8;
    --green: #16a34a;
    --red: #dc2626;
    --section-bg: #f8fafc;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    color: var(--text);
    background: var(--bg);
    line-height: 1.6;
    max-width: 900px;
    margin: 0 auto;
    padding: 20px;
  }
  h1 { font-size: 1.5rem; margin-bottom: 4px; color: var(--accent); }
  h2 { font-size: 1.2rem; margin: 24px 0 12px; padding-bottom: 6px; border-bottom: 2px solid var(--accent); }
  h3 { font-size: 1rem; margin: 16px 0 8px; }
  p { margin: 6px 0; }
  ul { margin: 6px 0 6px 20px; }
  .muted { color: var(--muted); font-size: 0.85rem; }
  .positive { color: var(--green); }
  .negative { color: var(--red); }
  .neutral { color: var(--muted); }

  .header {
    display: flex;
    justify-content: space-between;
    align-items: flex-start;
    border-bottom: 3px solid var(--accent);
    padding-bottom: 12px;
    margin-bottom: 16px;
  }
  .header-right { text-align: right; }
  .ticker-badge {
    display: inline-block;
    background: var(--accent);
    color: white;
    padding: 2px 12px;
    border-radius: 4px;
    font-weight: 700;
    margin-right: 8px;
  }

  .rec-box {
    display: flex;
    align-items: center;
    justify-content: space-between;
    gap: 16px;
    padding: 16px;
    border-radius: 8px;
    margin: 12px 0;
  }
  .rec-box.strong-buy { background: #dcfce7; border-left: 5px solid var(--green); }
  .rec-box.buy { background: #ecfdf5; border-left: 5px solid #22c55e; }
  .rec-box.hold { background: #fefce8; border-left: 5px solid #eab308; }
  .rec-box.sell { background: #fef2f2; border-left: 5px solid #f97316; }
  .rec-box.strong-sell { background: #fef2f2; border-left: 5px solid var(--red); }
  .rec-label { font-size: 1.4rem; font-weight: 700; }

  .trade-grid {
    display: grid;
    grid-template-columns: repeat(3, 1fr);
    gap: 10px;
    margin: 12px 0;
  }
  .trade-item {
    background: var(--section-bg);
    padding: 10px;
    border-radius: 6px;
    text-align: center;
  }
  .trade-item .label { font-size: 0.75rem; color: var(--muted); text-transform: uppercase; }
  .trade-item .value { font-size: 1.05rem; font-weight: 600; }

  table { width: 100%; border-collapse: collapse; margin: 8px 0 16px; font-size: 0.9rem; }
  th { background: var(--section-bg); text-align: left; padding: 8px; font-weight: 600; }
  td { padding: 8px; border-bottom: 1px solid var(--border); vertical-align: top; }

  .chart-container { margin: 12px 0; overflow-x: auto; }
  .chart-container svg { max-width: 100%; height: auto; }
  .section { margin: 20px 0; }
  .section-summary {
    background: var(--section-bg);
    padding: 12px;
    border-radius: 6px;
    margin: 8px 0;
    font-size: 0.95rem;
    line-height: 1.7;
  }
  .footer {
    margin-top: 30px;
    padding-top: 12px;
    border-top: 2px solid var(--border);
    font-size: 0.8rem;
    color: var(--muted);
    text-align: center;
  }
  @media print {
    body { max-width: 100%; padding: 10px; }
    .section { page-break-inside: avoid; }
  }
</style>
</head>
<body>

<div class="header">
  <div>
    <h1><span class="ticker-badge">{{.Symbol}}</span> {{.Title}}</h1>
    <p class="muted">{{.Timeframe}} · {{.RiskProfile}} profile · analyzed {{.AnalyzedAt}}</p>
  </div>
  <div class="header-right">
    <p class="muted">{{.GeneratedAt}}</p>
    <p class="muted">{{.Author}}</p>
  </div>
</div>

<div class="rec-box {{.SignalClass}}">
  <div>
    <div class="rec-label">{{.Signal}}</div>
    <div class="muted">Confidence {{.Confidence}} · Risk {{.RiskLevel}}</div>
  </div>
  <div>{{.GaugeChart}}</div>
</div>

<div class="trade-grid">
  <div class="trade-item"><div class="label">Buy targets</div><div class="value positive">{{.BuyTargets}}</div></div>
  <div class="trade-item"><div class="label">Sell targets</div><div class="value">{{.SellTargets}}</div></div>
  <div class="trade-item"><div class="label">Stop loss</div><div class="value negative">{{.StopLoss}}</div></div>
</div>

{{if .ShowSummary}}
<div class="section">
  <h2>Summary</h2>
  <p class="muted">Trend: {{.Trend}} · Sentiment: {{.Sentiment}}</p>
  <div class="section-summary">{{.Summary}}</div>
  {{if .Prediction}}<p><strong>Outlook:</strong> {{.Prediction}}</p>{{end}}
  {{if .Takeaways}}
  <h3>Key takeaways</h3>
  <ul>{{range .Takeaways}}<li>{{.}}</li>{{end}}</ul>
  {{end}}
  {{if .ProTip}}<p><strong>Pro tip:</strong> {{.ProTip}}</p>{{end}}
  {{if .Insights}}<p class="muted">Learned: {{.Insights}}</p>{{end}}
  {{if .Astrology}}<p class="muted">Astrology: {{.Astrology}}</p>{{end}}
</div>
{{end}}

{{if .ShowChart}}
<div class="section">
  <h2>Price &amp; Projection</h2>
  <div class="chart-container">{{.PriceChart}}</div>
</div>
{{end}}

{{if .ShowPatterns}}
<div class="section">
  <h2>Patterns</h2>
  <table>
    <thead><tr><th>Pattern</th><th>Category</th><th>Bias</th><th>Reliability</th><th>Key levels</th></tr></thead>
    <tbody>
    {{range .Patterns}}
    <tr>
      <td><strong>{{.Name}}</strong><br><span class="muted">{{.Description}}</span></td>
      <td>{{.Category}}</td>
      <td class="{{.Class}}">{{.Implication}}</td>
      <td>{{.Reliability}}</td>
      <td>{{.Levels}}</td>
    </tr>
    {{end}}
    </tbody>
  </table>
</div>
{{end}}

{{if .ShowIndicators}}
<div class="section">
  <h2>Indicators</h2>
  <table>
    <thead><tr><th>Indicator</th><th>Value</th><th>Signal</th><th>Reading</th></tr></thead>
    <tbody>
    {{range .Indicators}}
    <tr><td>{{.Name}}</td><td>{{.Value}}</td><td>{{.Signal}}</td><td>{{.Description}}</td></tr>
    {{end}}
    </tbody>
  </table>
</div>
{{end}}

{{if .ShowStrategy}}
<div class="section">
  <h2>Strategy: {{.StrategyTitle}}</h2>
  <div class="section-summary">{{.StrategyDescription}}</div>
  {{if .EntryConditions}}<h3>Entry</h3><ul>{{range .EntryConditions}}<li>{{.}}</li>{{end}}</ul>{{end}}
  {{if .ExitConditions}}<h3>Exit</h3><ul>{{range .ExitConditions}}<li>{{.}}</li>{{end}}</ul>{{end}}
  {{if .AlternativeTitle}}<p><strong>Alternative:</strong> {{.AlternativeTitle}} <span class="muted">when {{.AlternativeTrigger}}</span></p>{{end}}
  <p class="muted">Position sizing: {{.PositionSizing}} · Risk/reward: {{.RiskReward}}</p>
  {{if .BacktestNotes}}<p class="muted">{{.BacktestNotes}}</p>{{end}}
</div>
{{end}}

{{if .ShowBacktest}}{{with .Backtest}}
<div class="section">
  <h2>Simulated Backtest</h2>
  <div class="trade-grid">
    <div class="trade-item"><div class="label">Total P/L</div><div class="value">{{.ProfitLoss}}</div></div>
    <div class="trade-item"><div class="label">Win rate</div><div class="value">{{.WinRate}}</div></div>
    <div class="trade-item"><div class="label">Max drawdown</div><div class="value negative">{{.MaxDrawdown}}</div></div>
    <div class="trade-item"><div class="label">Profit factor</div><div class="value">{{.ProfitFactor}}</div></div>
    <div class="trade-item"><div class="label">Trades</div><div class="value">{{.Trades}}</div></div>
    <div class="trade-item"><div class="label">Period</div><div class="value">{{.Period}}</div></div>
  </div>
</div>
{{end}}{{end}}

{{if .ShowNews}}
<div class="section">
  <h2>News</h2>
  <div class="section-summary">{{.NewsSummary}}</div>
</div>
{{end}}

{{if .ShowSources}}
<div class="section">
  <h2>Sources</h2>
  <ul>
  {{range .Sources}}<li><a href="{{.URI}}">{{.Title}}</a></li>{{end}}
  {{range .Files}}<li class="muted">file: {{.}}</li>{{end}}
  </ul>
</div>
{{end}}

<div class="footer">
  <p><strong>Disclaimer:</strong> This report is AI-generated by TradeLens for educational and informational purposes only.
  It does not constitute financial advice.</p>
  <p>Generated on {{.GeneratedAt}}</p>
</div>

</body>
</html>`
