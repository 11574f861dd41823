package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// LocationSource tells how a policy URL was discovered.
type LocationSource string

const (
	// SourcePage means the link was found among the root page's anchors.
	SourcePage LocationSource = "page"

	// SourceSearch means the web-search fallback supplied the URL.
	SourceSearch LocationSource = "search"
)

// Location is the result of a successful policy lookup.
type Location struct {
	// URL is the policy document address.
	URL string `json:"url"`

	// Source is where the URL came from.
	Source LocationSource `json:"source"`
}

// Status is the terminal state of an analysis.
//
// Design decision: "not found" and "empty" are separate states because
// callers surface them differently. A site without a discoverable policy
// is a normal outcome; a located policy without extractable text usually
// points at a rendering problem worth retrying.
type Status int

const (
	// StatusPending means the analysis has not reached a terminal state.
	StatusPending Status = iota

	// StatusCached means a stored summary was returned without crawling.
	StatusCached

	// StatusCompleted means the policy was located, crawled and summarized.
	StatusCompleted

	// StatusNotFound means no policy URL could be located.
	StatusNotFound

	// StatusEmpty means a policy was located but yielded no usable text.
	StatusEmpty

	// StatusFailed means an internal error aborted the analysis.
	StatusFailed
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCached:
		return "cached"
	case StatusCompleted:
		return "completed"
	case StatusNotFound:
		return "not_found"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further pipeline step should run.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// MarshalJSON encodes the status as its wire name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a wire name back into a Status.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for candidate := StatusPending; candidate <= StatusFailed; candidate++ {
		if candidate.String() == name {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", name)
}

// Analysis accumulates everything one pipeline run learns about a site.
// Pipeline steps read and modify it in sequence.
type Analysis struct {
	// SiteURL is the URL supplied by the caller.
	SiteURL string `json:"site_url"`

	// CacheKey is the persistence key derived from SiteURL.
	CacheKey string `json:"cache_key"`

	// Location is where the policy was found. Nil until located.
	Location *Location `json:"location,omitempty"`

	// Crawl is the traversal result. Nil until crawled.
	Crawl *CrawlResult `json:"crawl,omitempty"`

	// CleanText is the normalized policy text fed to the summarizer.
	CleanText string `json:"-"`

	// Summary is the stored or freshly generated summary.
	Summary string `json:"summary,omitempty"`

	// Summarized is false when the summarizer failed and Summary holds
	// the cleaned text instead.
	Summarized bool `json:"summarized"`

	// FromCache is true when Summary came from the persistence store.
	FromCache bool `json:"from_cache"`

	// Status is the terminal state.
	Status Status `json:"status"`

	// Error is the error that failed the analysis, if any.
	Error error `json:"-"`

	// ErrorMessage is Error rendered as text for JSON output.
	ErrorMessage string `json:"error,omitempty"`

	// PerformedSteps lists pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// StartedAt and CompletedAt bracket the pipeline run.
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`

	// TimedOut is true when the run was cancelled before finishing.
	TimedOut bool `json:"timed_out,omitempty"`
}

// NewAnalysis creates an Analysis for the given site.
func NewAnalysis(siteURL, cacheKey string) *Analysis {
	return &Analysis{
		SiteURL:   siteURL,
		CacheKey:  cacheKey,
		Status:    StatusPending,
		StartedAt: time.Now(),
	}
}

// Fail marks the analysis as failed with err.
func (a *Analysis) Fail(err error) {
	a.Status = StatusFailed
	a.Error = err
	if err != nil {
		a.ErrorMessage = err.Error()
	}
}

// Source returns "cached" or "new", the value the HTTP ingress reports.
func (a *Analysis) Source() string {
	if a.FromCache {
		return "cached"
	}
	return "new"
}

// Duration returns how long the analysis took.
// Zero if it has not completed.
func (a *Analysis) Duration() time.Duration {
	if a.CompletedAt.IsZero() {
		return 0
	}
	return a.CompletedAt.Sub(a.StartedAt)
}
