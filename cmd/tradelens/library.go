package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/seenimoa/tradelens/internal/app"
	"github.com/seenimoa/tradelens/internal/archive"
	"github.com/seenimoa/tradelens/internal/backup"
	"github.com/seenimoa/tradelens/internal/knowledge"
	"github.com/seenimoa/tradelens/internal/report"
	"github.com/seenimoa/tradelens/pkg/apperr"
	"github.com/seenimoa/tradelens/pkg/models"
	"github.com/seenimoa/tradelens/pkg/utils"
)

func addLibraryCommands(root *cobra.Command) {
	archiveCmd.AddCommand(archiveListCmd, archiveRmCmd)
	techniquesCmd.AddCommand(techniquesListCmd, techniquesLearnCmd, techniquesDiscoverCmd)
	watchlistCmd.AddCommand(watchlistAddCmd, watchlistRmCmd)

	root.AddCommand(ingestCmd, archiveCmd, knowledgeCmd, techniquesCmd, watchlistCmd, exportCmd, importCmd)
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Newf(apperr.KindValidation, "%q is not a valid id", s)
	}
	return id, nil
}

// --- History Commands ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past analyses, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			recs, err := a.Store.History.GetAll(ctx)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println("No analyses yet. Run `tradelens analyze SYMBOL`.")
				return nil
			}
			tw := newTable()
			fmt.Fprintln(tw, "ID\tWHEN\tSYMBOL\tTIMEFRAME\tSIGNAL\tCONFIDENCE")
			for i := len(recs) - 1; i >= 0 && (limit <= 0 || len(recs)-i <= limit); i-- {
				r := recs[i]
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.0f%%\n",
					r.ID, utils.FormatInZone(r.Timestamp, r.Timezone), r.Symbol, r.Timeframe, r.Analysis.Signal, r.Analysis.Confidence)
			}
			return tw.Flush()
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			rec, err := a.Store.History.Get(ctx, id)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(rec)
			}
			printAnalysis(&rec)
			return nil
		})
	},
}

var historyRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete one analysis from history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Store.History.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Printf("🗑️  Deleted analysis #%d\n", id)
			return nil
		})
	},
}

var historyReportCmd = &cobra.Command{
	Use:   "report [id]",
	Short: "Write an HTML, text or PDF report for one analysis",
	Long: `Write a report for one analysis.

Examples:
  tradelens history report 12 --out btc.html
  tradelens history report 12 --format text --sections summary,strategy
  tradelens history report 12 --format pdf --out btc.pdf
  tradelens history report 12 --chart btc.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		f := cmd.Flags()
		format, _ := f.GetString("format")
		out, _ := f.GetString("out")
		sections, _ := f.GetStringSlice("sections")
		chartOut, _ := f.GetString("chart")

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			rec, err := a.Store.History.Get(ctx, id)
			if err != nil {
				return err
			}
			rcfg := report.DefaultReportConfig()
			rcfg.Format = report.ReportFormat(format)
			if rcfg.Sections, err = report.ParseSections(sections); err != nil {
				return apperr.New(apperr.KindValidation, err.Error(), err)
			}

			if chartOut != "" {
				if err := writeChart(&rec, chartOut); err != nil {
					return err
				}
			}

			switch rcfg.Format {
			case report.FormatText:
				txt, err := report.GenerateText(&rec, rcfg)
				if err != nil {
					return err
				}
				return writeOrPrint(out, txt)
			case report.FormatHTML:
				html, err := report.GenerateHTML(&rec, rcfg)
				if err != nil {
					return err
				}
				return writeOrPrint(out, html)
			case report.FormatPDF:
				if out == "" {
					out = fmt.Sprintf("tradelens-%s-%d.pdf", strings.ToLower(rec.Symbol), rec.ID)
				}
				html, err := report.GenerateHTML(&rec, rcfg)
				if err != nil {
					return err
				}
				path, err := report.ExportPDF(ctx, html, report.DefaultPDFConfig(out))
				if err != nil {
					return err
				}
				if filepath.Ext(path) != ".pdf" {
					fmt.Println("⚠️  No PDF converter found (wkhtmltopdf or chromium); wrote HTML instead.")
				}
				fmt.Printf("📄 Report written to %s\n", path)
				return nil
			default:
				return apperr.Newf(apperr.KindValidation, "unknown report format %q (html, text or pdf)", format)
			}
		})
	},
}

func writeChart(rec *models.AnalysisRecord, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.ProjectionPNG(f, rec, report.DefaultChartConfig()); err != nil {
		f.Close()
		os.Remove(path)
		if errors.Is(err, report.ErrNotEnoughData) {
			return apperr.New(apperr.KindValidation, "This analysis has no price data to chart.", err)
		}
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("📈 Chart written to %s\n", path)
	return nil
}

func writeOrPrint(out, body string) error {
	if out == "" {
		_, err := fmt.Print(body)
		return err
	}
	if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
		return err
	}
	fmt.Printf("📄 Report written to %s\n", out)
	return nil
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of records to show (0 for all)")
	historyShowCmd.Flags().Bool("json", false, "print the full record as JSON")
	historyReportCmd.Flags().String("format", "html", "html, text or pdf")
	historyReportCmd.Flags().String("out", "", "output file (default: stdout; pdf defaults to a file)")
	historyReportCmd.Flags().StringSlice("sections", nil, "sections to include (default: all)")
	historyReportCmd.Flags().String("chart", "", "also write the projection chart PNG to this file")
	historyCmd.AddCommand(historyShowCmd, historyRmCmd, historyReportCmd)
}

// --- Archive Commands ---

var ingestCmd = &cobra.Command{
	Use:   "ingest [symbol] [file...]",
	Short: "Add files to the archive of a symbol",
	Long: `Add files to the archive of a symbol. Each file is categorised by the
AI engine; duplicates of archived content are ignored and a file with the
same name replaces the archived one.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol := strings.ToUpper(strings.TrimSpace(args[0]))
		files := make([]archive.RawFile, 0, len(args)-1)
		for _, p := range args[1:] {
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("reading %s: %w", p, err)
			}
			files = append(files, archive.RawFile{Name: filepath.Base(p), Data: data})
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			rep, err := a.Archive.Ingest(ctx, symbol, files)
			for _, f := range rep.Added {
				fmt.Printf("  ✅ added    %s (%s)\n", f.Name, f.Category)
			}
			for _, f := range rep.Updated {
				fmt.Printf("  🔄 updated  %s (%s)\n", f.Name, f.Category)
			}
			for _, f := range rep.Ignored {
				fmt.Printf("  ⏭️  ignored  %s: %s\n", f.Name, f.Reason)
			}
			for _, f := range rep.Errors {
				fmt.Printf("  ❌ failed   %s: %s\n", f.Name, f.Error)
			}
			return err
		})
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage archived files",
}

var archiveListCmd = &cobra.Command{
	Use:   "list [symbol]",
	Short: "List archived files, optionally for one symbol",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			var (
				files []models.Artifact
				err   error
			)
			if len(args) == 1 {
				files, err = a.Archive.ListFor(ctx, strings.ToUpper(args[0]))
			} else {
				files, err = a.Archive.List(ctx)
			}
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Println("The archive is empty.")
				return nil
			}
			tw := newTable()
			fmt.Fprintln(tw, "SYMBOL\tNAME\tCATEGORY\tSIZE\tUPLOADED")
			for _, f := range files {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					f.Symbol, f.Name, f.Category, utils.FormatCompact(float64(f.SizeBytes)), f.UploadedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		})
	},
}

var archiveRmCmd = &cobra.Command{
	Use:   "rm [symbol] [name]",
	Short: "Remove one archived file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Archive.Remove(ctx, strings.ToUpper(args[0]), args[1]); err != nil {
				return err
			}
			fmt.Printf("🗑️  Removed %s from %s\n", args[1], strings.ToUpper(args[0]))
			return nil
		})
	},
}

// --- Knowledge Command ---

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "List knowledge derived from past analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol, _ := cmd.Flags().GetString("symbol")
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			items, err := a.Knowledge.List(ctx)
			if err != nil {
				return err
			}
			tw := newTable()
			fmt.Fprintln(tw, "ID\tTYPE\tSYMBOL\tTIMEFRAME\tCONTENT")
			n := 0
			for _, it := range items {
				if symbol != "" && !strings.EqualFold(it.Symbol, symbol) {
					continue
				}
				n++
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", it.ID, it.Type, it.Symbol, it.Timeframe, utils.Truncate(it.Content, 80))
			}
			if n == 0 {
				fmt.Println("No knowledge yet. It grows with every analysis.")
				return nil
			}
			return tw.Flush()
		})
	},
}

func init() {
	knowledgeCmd.Flags().String("symbol", "", "only show items for this symbol")
}

// --- Techniques Commands ---

var techniquesCmd = &cobra.Command{
	Use:   "techniques",
	Short: "Manage learned strategies and indicators",
}

var techniquesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List learned techniques",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			techs, err := a.Techniques.List(ctx)
			if err != nil {
				return err
			}
			if len(techs) == 0 {
				fmt.Println("No learned techniques yet.")
				return nil
			}
			tw := newTable()
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSOURCE\tDESCRIPTION")
			for _, t := range techs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Type, t.Source, utils.Truncate(t.Description, 70))
			}
			return tw.Flush()
		})
	},
}

var techniquesLearnCmd = &cobra.Command{
	Use:   "learn [file]",
	Short: "Extract techniques from a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		accept, _ := cmd.Flags().GetBool("accept")
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			batch, err := a.Learn(ctx, filepath.Base(args[0]), string(data))
			if err != nil {
				return err
			}
			return reviewBatch(ctx, a, batch, accept)
		})
	},
}

var techniquesDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Search the web for techniques not learned yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		accept, _ := cmd.Flags().GetBool("accept")
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			fmt.Println("🔎 Searching for new techniques...")
			batch, err := a.Discover(ctx)
			if err != nil {
				return err
			}
			return reviewBatch(ctx, a, batch, accept)
		})
	},
}

// reviewBatch prints the proposed techniques and stores them when accept
// is set. Staged batches live in memory, so the CLI reviews in one step.
func reviewBatch(ctx context.Context, a *app.App, batch knowledge.Batch, accept bool) error {
	if len(batch.Items) == 0 {
		fmt.Println("Nothing new found.")
		return nil
	}
	for i, it := range batch.Items {
		t := it.Technique
		fmt.Printf("  %d. [%s] %s\n     %s\n", i+1, t.Type, t.Name, utils.Truncate(t.Description, 120))
	}
	if !accept {
		fmt.Println("\nRe-run with --accept to store these techniques.")
		return nil
	}
	added, err := a.Staging.Accept(ctx, batch.ID)
	if err != nil {
		return err
	}
	fmt.Printf("\n✅ Stored %d technique(s)\n", len(added))
	return nil
}

func init() {
	techniquesLearnCmd.Flags().Bool("accept", false, "store every proposed technique")
	techniquesDiscoverCmd.Flags().Bool("accept", false, "store every proposed technique")
}

// --- Watchlist Commands ---

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Show the watchlist",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			items, err := a.Watchlist.List(ctx)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("The watchlist is empty.")
				return nil
			}
			for _, it := range items {
				fmt.Printf("  ⭐ %-12s added %s\n", it.Symbol, it.AddedAt.Format("2006-01-02"))
			}
			return nil
		})
	},
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add [symbol]",
	Short: "Add a symbol to the watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			item, err := a.Watchlist.Add(ctx, args[0])
			switch {
			case errors.Is(err, apperr.Duplicate):
				fmt.Printf("%s is already on the watchlist.\n", item.Symbol)
				return nil
			case err != nil:
				return err
			}
			fmt.Printf("⭐ Added %s\n", item.Symbol)
			return nil
		})
	},
}

var watchlistRmCmd = &cobra.Command{
	Use:   "rm [symbol]",
	Short: "Remove a symbol from the watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Watchlist.Remove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("🗑️  Removed %s\n", strings.ToUpper(args[0]))
			return nil
		})
	},
}

// --- Backup Commands ---

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export all data to a JSON backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			doc, err := a.Backup.Export(ctx)
			if err != nil {
				return err
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			if err := writeJSON(f, doc); err != nil {
				return err
			}
			fmt.Printf("💾 Exported %d analyses, %d saved, %d files to %s\n",
				len(doc.History), len(doc.SavedAnalyses), len(doc.ArchivedFiles), args[0])
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a JSON backup",
	Long: `Import a JSON backup. Each imported category replaces the current
data of that category; the others are left alone.

Categories: history, savedAnalyses, archivedFiles, watchlist,
knowledgeItems, techniques, preferences.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		only, _ := cmd.Flags().GetStringSlice("only")
		selected, err := backup.ParseCategories(only)
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			rep, err := a.Backup.Import(ctx, raw, selected)
			for c, n := range rep.Applied {
				fmt.Printf("  ✅ %-16s %d item(s)\n", c, n)
			}
			for _, w := range rep.Warnings {
				fmt.Printf("  ⚠️  %s\n", w)
			}
			return err
		})
	},
}

func init() {
	importCmd.Flags().StringSlice("only", nil, "categories to import (default: all)")
}
