package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/tldrprivacy/policyscout/internal/database"
	"github.com/tldrprivacy/policyscout/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides tables, alerts and mermaid charts without
// hand-built escaping.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs one analysis.
func (w *MarkdownWriter) Write(a *model.Analysis) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Privacy Policy: " + a.SiteURL)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", a.SiteURL},
			{"Policy URL", policyURL(a)},
			{"Found via", locationSource(a)},
			{"Pages crawled", strconv.Itoa(pagesVisited(a))},
			{"Status", a.Status.String()},
			{"Source", a.Source()},
		},
	})
	md.PlainText("")

	w.writeAlert(md, a)

	if a.Summary != "" {
		md.H2("Summary")
		md.PlainText("")
		md.PlainText(a.Summary)
		md.PlainText("")
	}

	if a.Crawl != nil && len(a.Crawl.Pages) > 0 {
		w.writePages(md, a.Crawl.Pages)
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// writeAlert writes an alert matching the outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, a *model.Analysis) {
	switch a.Status {
	case model.StatusFailed:
		md.Cautionf("Analysis failed: %s", a.ErrorMessage)
	case model.StatusEmpty:
		md.Warningf("A policy was located at %s but no readable text could be extracted.", policyURL(a))
	case model.StatusNotFound:
		md.Importantf("No privacy policy could be found for %s.", a.SiteURL)
	case model.StatusCached:
		md.Note("Summary served from cache.")
	default:
		if !a.Summarized {
			md.Note("Summarization failed; the cleaned policy text is shown instead.")
		} else {
			md.Tip("Policy located and summarized.")
		}
	}
	md.PlainText("")
}

// writePages writes the crawled pages table.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, pages []model.PageVisit) {
	rows := make([][]string, len(pages))
	for i, p := range pages {
		note := "-"
		switch {
		case p.Error != "":
			note = "error: " + truncateString(p.Error, 50)
		case p.Duplicate:
			note = "duplicate"
		case p.Retried:
			note = "retried"
		}
		rows[i] = []string{
			truncateString(p.URL, 70),
			strconv.Itoa(p.Depth),
			strconv.Itoa(p.Characters),
			note,
		}
	}

	md.H2("Crawled Pages")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Characters", "Note"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteBatch outputs a refresh run: a status chart and one row per site.
func (w *MarkdownWriter) WriteBatch(analyses []*model.Analysis) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Policy Refresh")
	md.PlainText("")

	counts := StatusCounts(analyses)
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Outcomes"),
		piechart.WithShowData(true),
	)
	for _, name := range statusOrder {
		if counts[name] > 0 {
			chart.LabelAndIntValue(name, uint64(counts[name]))
		}
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")

	rows := make([][]string, 0, len(analyses))
	for _, a := range analyses {
		if a == nil {
			continue
		}
		rows = append(rows, []string{
			a.SiteURL,
			a.Status.String(),
			policyURL(a),
			strconv.Itoa(pagesVisited(a)),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Site", "Status", "Policy URL", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteHistory outputs cached policies as a table.
func (w *MarkdownWriter) WriteHistory(records []database.PolicyRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Cached Policies")
	md.PlainText("")

	if len(records) == 0 {
		md.PlainText("No cached policies.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			r.BaseURL,
			truncateString(r.PolicyURL, 60),
			r.LocationSource,
			strconv.FormatBool(r.Summarized),
			r.LastUpdated.Format(timeLayout),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Site", "Policy URL", "Found via", "Summarized", "Updated"},
		Rows:   rows,
	})
	return len(md.String()), md.Build()
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by policyscout*")
}
