package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ════════════════════════════════════════════════════════════════════
// PDF export: HTML → PDF via wkhtmltopdf or headless chromium
// ════════════════════════════════════════════════════════════════════

// PDFEngine names an external HTML-to-PDF converter.
type PDFEngine string

const (
	EngineWKHTML   PDFEngine = "wkhtmltopdf"
	EngineChromium PDFEngine = "chromium"
	EngineNone     PDFEngine = "none"
)

var chromiumBinaries = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

// PDFConfig holds configuration for PDF export.
type PDFConfig struct {
	Engine      PDFEngine // empty: auto-detect
	PageSize    string
	Orientation string // portrait or landscape
	Margin      string
	OutputPath  string
}

// DefaultPDFConfig returns A4 portrait with 12mm margins.
func DefaultPDFConfig(out string) PDFConfig {
	return PDFConfig{
		PageSize:    "A4",
		Orientation: "portrait",
		Margin:      "12mm",
		OutputPath:  out,
	}
}

// DetectPDFEngine reports which converter is on PATH.
func DetectPDFEngine() PDFEngine {
	if _, err := exec.LookPath("wkhtmltopdf"); err == nil {
		return EngineWKHTML
	}
	if chromiumPath() != "" {
		return EngineChromium
	}
	return EngineNone
}

func chromiumPath() string {
	for _, name := range chromiumBinaries {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

// ExportPDF converts html to a PDF at cfg.OutputPath. When no converter is
// available the HTML is written next to it with an .html extension and the
// returned path says so.
func ExportPDF(ctx context.Context, html string, cfg PDFConfig) (string, error) {
	if cfg.OutputPath == "" {
		return "", errors.New("report: output path is required")
	}
	engine := cfg.Engine
	if engine == "" {
		engine = DetectPDFEngine()
	}

	switch engine {
	case EngineNone:
		return writeHTMLFallback(html, cfg.OutputPath)
	case EngineWKHTML, EngineChromium:
	default:
		return "", fmt.Errorf("report: unsupported PDF engine %q", engine)
	}

	tmp, err := os.CreateTemp("", "tradelens-report-*.html")
	if err != nil {
		return "", fmt.Errorf("creating temp HTML: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(html); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing temp HTML: %w", err)
	}
	tmp.Close()

	out, err := filepath.Abs(cfg.OutputPath)
	if err != nil {
		return "", fmt.Errorf("resolving output path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	var cmd *exec.Cmd
	if engine == EngineWKHTML {
		cmd = exec.CommandContext(ctx, "wkhtmltopdf",
			"--page-size", cfg.PageSize,
			"--orientation", cfg.Orientation,
			"-T", cfg.Margin, "-B", cfg.Margin, "-L", cfg.Margin, "-R", cfg.Margin,
			"--encoding", "UTF-8",
			"--enable-local-file-access",
			"--quiet",
			tmp.Name(), out)
	} else {
		bin := chromiumPath()
		if bin == "" {
			return "", errors.New("report: chromium not found in PATH")
		}
		args := []string{"--headless", "--disable-gpu", "--no-sandbox", "--print-to-pdf=" + out, "--no-pdf-header-footer"}
		if strings.EqualFold(cfg.Orientation, "landscape") {
			args = append(args, "--landscape")
		}
		cmd = exec.CommandContext(ctx, bin, append(args, "file://"+tmp.Name())...)
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%s failed: %w: %s", engine, err, strings.TrimSpace(string(output)))
	}
	return out, nil
}

func writeHTMLFallback(html, out string) (string, error) {
	if ext := filepath.Ext(out); strings.EqualFold(ext, ".pdf") {
		out = strings.TrimSuffix(out, ext) + ".html"
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(out, []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("writing HTML fallback: %w", err)
	}
	return out, nil
}
