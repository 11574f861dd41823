package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/tldrprivacy/policyscout/internal/database"
	"github.com/tldrprivacy/policyscout/internal/model"
)

// timeLayout is used for timestamps in text and Markdown output.
const timeLayout = "2006-01-02 15:04:05 MST"

// SimpleWriter outputs human-readable text for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors so output can be piped to files or other tools.
type SimpleWriter struct {
	baseWriter

	// verbose adds the crawled page list.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs one analysis.
func (w *SimpleWriter) Write(a *model.Analysis) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Site:    %s\n", a.SiteURL)
	if a.Location != nil {
		fmt.Fprintf(&sb, "Policy:  %s (%s)\n", a.Location.URL, a.Location.Source)
	}
	if a.Crawl != nil {
		fmt.Fprintf(&sb, "Pages:   %d of %d\n", a.Crawl.PagesVisited, a.Crawl.MaxPages)
	}
	fmt.Fprintf(&sb, "Status:  %s (%s)\n", a.Status, a.Source())
	sb.WriteString(Outcome(a))
	sb.WriteString("\n")

	if w.verbose && a.Crawl != nil {
		sb.WriteString("\nCrawled pages:\n")
		for _, p := range a.Crawl.Pages {
			w.writePage(&sb, p)
		}
	}

	if a.Summary != "" {
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\n")
		sb.WriteString(a.Summary)
		sb.WriteString("\n")
	}

	return w.output.Write([]byte(sb.String()))
}

// writePage writes one crawled page line.
func (w *SimpleWriter) writePage(sb *strings.Builder, p model.PageVisit) {
	fmt.Fprintf(sb, "  %s%s  %d chars", strings.Repeat("  ", p.Depth), p.URL, p.Characters)
	if p.Retried {
		sb.WriteString("  [retried]")
	}
	if p.Duplicate {
		sb.WriteString("  [duplicate]")
	}
	if p.Error != "" {
		fmt.Fprintf(sb, "  [error: %s]", p.Error)
	}
	sb.WriteString("\n")
}

// WriteBatch outputs one line per site followed by status totals.
func (w *SimpleWriter) WriteBatch(analyses []*model.Analysis) (int, error) {
	var sb strings.Builder

	for _, a := range analyses {
		if a == nil {
			continue
		}
		fmt.Fprintf(&sb, "%-10s %-40s %s\n", a.Status, a.SiteURL, policyURL(a))
	}

	counts := StatusCounts(analyses)
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Total: %d", len(analyses))
	for _, name := range statusOrder {
		if counts[name] > 0 {
			fmt.Fprintf(&sb, ", %s: %d", name, counts[name])
		}
	}
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

// WriteHistory outputs one line per cached policy.
func (w *SimpleWriter) WriteHistory(records []database.PolicyRecord) (int, error) {
	if len(records) == 0 {
		return io.WriteString(w.output, "No cached policies.\n")
	}

	var sb strings.Builder
	for _, r := range records {
		fmt.Fprintf(&sb, "%s  %-40s %s\n", r.LastUpdated.Format(timeLayout), r.BaseURL, r.PolicyURL)
		if w.verbose {
			fmt.Fprintf(&sb, "    key=%s source=%s pages=%d chars=%d summarized=%t\n",
				r.Key, r.LocationSource, r.PagesVisited, r.Characters, r.Summarized)
		}
	}
	return w.output.Write([]byte(sb.String()))
}
