package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Records slower than this are flagged in the progress output.
const slowThreshold = 5 * time.Second

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// printer writes live progress. Callbacks arrive from parallel workers, so
// every write holds mu.
type printer struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

func newPrinter(w io.Writer, verbose bool) *printer {
	return &printer{w: w, verbose: verbose}
}

func (p *printer) header(scenario, dataFile string, info *core.PlatformInfo, records, parallel int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w)
	fmt.Fprintf(p.w, "  %spageflow %s%s\n", color(colorBold), Version, color(colorReset))
	fmt.Fprintf(p.w, "  Scenario: %s\n", scenario)
	fmt.Fprintf(p.w, "  Data:     %s (%d records)\n", dataFile, records)
	if info != nil {
		browser := info.Browser
		if info.BrowserVersion != "" {
			browser += " " + info.BrowserVersion
		}
		mode := ""
		if info.Headless {
			mode = ", headless"
		}
		fmt.Fprintf(p.w, "  Driver:   %s (%s%s)\n", info.Driver, browser, mode)
	}
	if parallel > 1 {
		fmt.Fprintf(p.w, "  Sessions: %d\n", parallel)
	}
	fmt.Fprintln(p.w, strings.Repeat("─", 60))
}

func (p *printer) recordStart(idx, total int, recordID string, rec core.TestRecord) {
	if !p.verbose {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "  %s[%d/%d]%s %s %s(%s)%s\n",
		color(colorCyan), idx+1, total, color(colorReset),
		rec.CaseID(), color(colorGray), recordID, color(colorReset))
}

func (p *printer) recordEnd(idx, total int, res core.ExecutionResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	symbol, symbolColor := statusSymbol(res.Status)
	dur := formatDuration(res.Duration)
	durColor := color(colorGray)
	if res.Duration >= slowThreshold && res.Status == core.StatusPassed {
		durColor = color(colorYellow)
	}
	flaky := ""
	if res.Flaky() {
		flaky = fmt.Sprintf(" %s(flaky, %d attempts)%s", color(colorYellow), res.Attempts, color(colorReset))
	}
	fmt.Fprintf(p.w, "  %s%s%s %s %s(%s)%s%s\n",
		symbolColor, symbol, color(colorReset), res.CaseID, durColor, dur, color(colorReset), flaky)
	if res.Message != "" && (!res.Status.IsSuccess() || p.verbose) {
		fmt.Fprintf(p.w, "      %s╰─%s %s\n", color(colorGray), color(colorReset), firstLine(res.Message))
	}
	if p.verbose {
		for _, a := range res.ArtifactPaths {
			fmt.Fprintf(p.w, "      %s↳ %s%s\n", color(colorGray), a, color(colorReset))
		}
	}
}

func statusSymbol(s core.Status) (string, string) {
	switch s {
	case core.StatusPassed:
		return "✓", color(colorGreen)
	case core.StatusFailed:
		return "✗", color(colorRed)
	case core.StatusErrored:
		return "!", color(colorRed)
	case core.StatusSkipped:
		return "-", color(colorCyan)
	}
	return "?", ""
}

func (p *printer) summary(run *core.RunResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := run.Summary
	fmt.Fprintln(p.w)
	if s.Passed > 0 {
		fmt.Fprintf(p.w, "  %s%d passing%s (%s)\n", color(colorGreen), s.Passed, color(colorReset), formatDuration(run.Duration))
	}
	if s.Failed > 0 {
		fmt.Fprintf(p.w, "  %s%d failing%s\n", color(colorRed), s.Failed, color(colorReset))
	}
	if s.Errored > 0 {
		fmt.Fprintf(p.w, "  %s%d errored%s\n", color(colorRed), s.Errored, color(colorReset))
	}
	if s.Skipped > 0 {
		fmt.Fprintf(p.w, "  %s%d skipped%s\n", color(colorCyan), s.Skipped, color(colorReset))
	}
	fmt.Fprintln(p.w)

	tableWidth := 84
	fmt.Fprintln(p.w, strings.Repeat("═", tableWidth))
	fmt.Fprintf(p.w, "  %-42s %-9s %-10s %8s %10s\n", "Record", "Status", "Category", "Attempts", "Duration")
	fmt.Fprintln(p.w, strings.Repeat("─", tableWidth))
	for _, r := range run.Results {
		name := r.CaseID
		if len(name) > 42 {
			name = name[:39] + "..."
		}
		_, statusColor := statusSymbol(r.Status)
		fmt.Fprintf(p.w, "  %-42s %s%-9s%s %-10s %8d %10s\n",
			name, statusColor, strings.ToUpper(r.Status.String()), color(colorReset),
			category(r), r.Attempts, formatDuration(r.Duration))
	}
	fmt.Fprintln(p.w, strings.Repeat("─", tableWidth))
	statusColor := color(colorGreen)
	if !run.Success() {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(p.w, "  %s%-42s%s %s%-9s%s %-10s %8s %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, fmt.Sprintf("%d/%d", s.Passed+s.Skipped, s.Total), color(colorReset),
		"", "", formatDuration(run.Duration))
	fmt.Fprintln(p.w, strings.Repeat("═", tableWidth))
}

func category(r core.ExecutionResult) string {
	if r.Category == core.ErrCategoryNone {
		return "-"
	}
	return r.Category.String()
}

func (p *printer) reports(results, index, metrics string, traced bool, trace string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, "  Reports:")
	fmt.Fprintf(p.w, "    Results: %s\n", results)
	fmt.Fprintf(p.w, "    Index:   %s\n", index)
	if metrics != "" {
		fmt.Fprintf(p.w, "    Metrics: %s\n", metrics)
	}
	if traced {
		fmt.Fprintf(p.w, "    Trace:   %s\n", trace)
	}
	fmt.Fprintln(p.w)
}

// formatDuration shows milliseconds below 1s, seconds below a minute.
func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
