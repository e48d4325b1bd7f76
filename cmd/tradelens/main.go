// TradeLens: AI-assisted market analysis with a personal archive.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seenimoa/tradelens/api"
	"github.com/seenimoa/tradelens/internal/analysis"
	"github.com/seenimoa/tradelens/internal/app"
	"github.com/seenimoa/tradelens/internal/config"
	"github.com/seenimoa/tradelens/internal/events"
	"github.com/seenimoa/tradelens/internal/logger"
	"github.com/seenimoa/tradelens/pkg/apperr"
	"github.com/seenimoa/tradelens/pkg/models"
	"github.com/seenimoa/tradelens/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", apperr.UserMessage(err))
		os.Exit(1)
	}
	_ = logger.Shutdown(context.Background())
}

var rootCmd = &cobra.Command{
	Use:   "tradelens",
	Short: "TradeLens: AI-assisted market analysis with a personal archive",
	Long: `TradeLens analyses a symbol with a generative-AI engine, grounded in
your own archived files, the knowledge derived from earlier analyses and
the latest news. Results are kept in a local history for follow-up chat,
reports and backups.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		return logger.Init(logger.Config{
			Level:   cfg.Logging.Level,
			Format:  cfg.Logging.Format,
			Tracing: cfg.Logging.Tracing,
		}, version)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(statusCmd)
	addLibraryCommands(rootCmd)
}

// openApp builds the service container for one command.
func openApp(ctx context.Context, opts ...app.Option) (*app.App, error) {
	return app.New(ctx, cfg, opts...)
}

// withApp runs fn against a freshly built container and closes it after.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error, opts ...app.Option) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn(ctx, "shutdown incomplete", "error", cerr)
		}
	}()
	return fn(ctx, a)
}

func printJSON(v any) error { return writeJSON(os.Stdout, v) }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("TradeLens %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			host, port, ok := strings.Cut(addr, ":")
			if !ok {
				return fmt.Errorf("--addr must be host:port")
			}
			cfg.API.Host = host
			if _, err := fmt.Sscan(port, &cfg.API.Port); err != nil {
				return fmt.Errorf("--addr port: %w", err)
			}
		}

		hub := api.NewWSHub()
		a, err := openApp(ctx, app.WithPublisher(hub))
		if err != nil {
			return err
		}
		defer a.Close()

		api.Version = version
		srv := api.NewServer(a, hub)
		fmt.Printf("🌐 TradeLens API listening on %s\n", cfg.API.Addr())
		if !a.HasProvider() {
			fmt.Println("⚠️  No AI key configured; analysis endpoints answer 503 until one is set.")
		}
		return srv.ListenAndServe(cfg.API.Addr())
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address override (host:port)")
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [symbol]",
	Short: "Run a full analysis on a symbol",
	Long: `Run a full analysis on a symbol using the archived files for it, the
knowledge base, learned techniques and a web news search. The result is
stored in history.

Examples:
  tradelens analyze BTCUSD
  tradelens analyze EURUSD --timeframe weekly --risk conservative
  tradelens analyze AAPL --strategies "Price Action" --indicators RSI,MACD`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		tf, _ := f.GetString("timeframe")
		risk, _ := f.GetString("risk")
		tz, _ := f.GetString("tz")
		strategies, _ := f.GetStringSlice("strategies")
		indicators, _ := f.GetStringSlice("indicators")
		asJSON, _ := f.GetBool("json")

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			req := analysis.Request{
				Symbol:      strings.ToUpper(strings.TrimSpace(args[0])),
				Timeframe:   models.Timeframe(tf),
				Timezone:    tz,
				RiskProfile: models.RiskProfile(risk),
				Strategies:  strategies,
				Indicators:  indicators,
			}
			if !asJSON {
				fmt.Printf("🔍 Analyzing %s...\n", req.Symbol)
			}
			rec, err := a.Analysis.Run(ctx, req)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(rec)
			}
			printAnalysis(rec)
			return nil
		}, app.WithPublisher(progress(asJSON)))
	},
}

// progress prints analysis milestones unless quiet is set.
func progress(quiet bool) events.Publisher {
	if quiet {
		return nil
	}
	return events.Func(func(_ context.Context, e events.Event) {
		switch e.Type {
		case events.AnalysisNews:
			fmt.Println("   📰 news gathered")
		case events.AnalysisCompleted:
			fmt.Println("   ✅ analysis validated and stored")
		}
	})
}

func init() {
	analyzeCmd.Flags().String("timeframe", "", "daily, weekly, monthly or yearly (default daily)")
	analyzeCmd.Flags().String("risk", "", "conservative, balanced or aggressive (default balanced)")
	analyzeCmd.Flags().String("tz", "", "IANA timezone for dates in the narrative")
	analyzeCmd.Flags().StringSlice("strategies", nil, "strategies to apply (default: suggested for the timeframe)")
	analyzeCmd.Flags().StringSlice("indicators", nil, "indicators to apply (default: suggested for the timeframe)")
	analyzeCmd.Flags().Bool("json", false, "print the full record as JSON")
}

func printAnalysis(rec *models.AnalysisRecord) {
	res := rec.Analysis
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("  %s · %s  (record #%d)\n", rec.Symbol, rec.Timeframe, rec.ID)
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("  Signal:      %s (%.0f%% confidence)\n", strings.ToUpper(strings.ReplaceAll(string(res.Signal), "-", " ")), res.Confidence)
	fmt.Printf("  Trend:       %s\n", res.Trend)
	fmt.Printf("  Risk:        %s\n", res.RiskLevel)
	fmt.Printf("  Buy:         %s\n", joinPrices(res.BuyTargets))
	fmt.Printf("  Sell:        %s\n", joinPrices(res.SellTargets))
	fmt.Printf("  Stop loss:   %s\n", utils.FormatPrice(res.StopLoss))
	fmt.Println()
	fmt.Println("  " + res.Summary)
	if res.Prediction != "" {
		fmt.Println()
		fmt.Println("  Outlook: " + res.Prediction)
	}
	if len(rec.Sources) > 0 {
		fmt.Println()
		fmt.Println("  Sources:")
		for _, s := range rec.Sources {
			if s.Web != nil {
				fmt.Printf("    - %s (%s)\n", utils.Truncate(s.Web.Title, 60), s.Web.URI)
			}
		}
	}
	fmt.Println("═══════════════════════════════════════")
}

func joinPrices(ps []float64) string {
	if len(ps) == 0 {
		return "-"
	}
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = utils.FormatPrice(p)
	}
	return strings.Join(out, ", ")
}

// --- News Command ---

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Show the latest market headlines",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			items, err := a.Research.LatestNews(ctx)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("No headlines right now.")
				return nil
			}
			for _, n := range items {
				fmt.Printf("📰 %s\n", n.Title)
				if n.Summary != "" {
					fmt.Printf("   %s\n", utils.Truncate(n.Summary, 160))
				}
				if n.Source != "" || n.Link != "" {
					fmt.Printf("   %s %s\n", n.Source, n.Link)
				}
			}
			return nil
		})
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  TradeLens · System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    LLM Provider:  %s (model: %s)\n", cfg.LLM.Primary, cfg.LLM.Model)
		fmt.Printf("    Store:         %s\n", cfg.Store.Driver)
		cacheKind := "memory"
		if cfg.Redis.Enabled {
			cacheKind = "redis (" + cfg.Redis.Addr + ")"
		}
		fmt.Printf("    Cache:         %s\n", cacheKind)
		fmt.Printf("    News feeds:    %d\n", len(cfg.News.Feeds))
		fmt.Printf("    API Server:    %s\n", cfg.API.Addr())
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		ping, _ := cmd.Flags().GetBool("ping")
		if ping {
			fmt.Println()
			fmt.Println("  Engines:")
			err := withApp(cmd, func(ctx context.Context, a *app.App) error {
				results := a.Ping(ctx)
				if len(results) == 0 {
					fmt.Println("    none configured")
				}
				for name, err := range results {
					if err != nil {
						fmt.Printf("    %-12s ❌ %v\n", name, err)
					} else {
						fmt.Printf("    %-12s ✅ reachable\n", name)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("ping", false, "check that each configured engine is reachable")
}
