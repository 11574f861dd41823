package report

import (
	"io"
	"unicode/utf8"

	"github.com/tldrprivacy/policyscout/internal/database"
	"github.com/tldrprivacy/policyscout/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs one analysis.
	// Returns the number of bytes written and any error encountered.
	Write(analysis *model.Analysis) (int, error)

	// WriteBatch outputs the analyses of a refresh run.
	WriteBatch(analyses []*model.Analysis) (int, error)

	// WriteHistory outputs cached policies, newest first.
	WriteHistory(records []database.PolicyRecord) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Outcome returns the one-line message for an analysis' status.
func Outcome(a *model.Analysis) string {
	switch a.Status {
	case model.StatusCached:
		return "Summary served from cache."
	case model.StatusCompleted:
		if !a.Summarized {
			return "Policy found; summarization failed, showing the cleaned policy text."
		}
		return "Policy found and summarized."
	case model.StatusNotFound:
		return "No privacy policy found."
	case model.StatusEmpty:
		return "Privacy policy located, but no readable text could be extracted."
	case model.StatusFailed:
		return "Analysis failed: " + a.ErrorMessage
	default:
		return "Analysis did not finish."
	}
}

// StatusCounts tallies analyses by status name.
func StatusCounts(analyses []*model.Analysis) map[string]int {
	counts := make(map[string]int)
	for _, a := range analyses {
		if a == nil {
			counts["skipped"]++
			continue
		}
		counts[a.Status.String()]++
	}
	return counts
}

// statusOrder fixes the order statuses are listed in.
var statusOrder = []string{"completed", "cached", "not_found", "empty", "failed", "skipped"}

// policyURL returns the located policy URL or "-".
func policyURL(a *model.Analysis) string {
	if a.Location == nil {
		return "-"
	}
	return a.Location.URL
}

// locationSource returns where the policy was found or "-".
func locationSource(a *model.Analysis) string {
	if a.Location == nil {
		return "-"
	}
	return string(a.Location.Source)
}

// pagesVisited returns the crawl page count, zero when nothing was crawled.
func pagesVisited(a *model.Analysis) int {
	if a.Crawl == nil {
		return 0
	}
	return a.Crawl.PagesVisited
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
