package crawler

import (
	"sync"

	"github.com/tldrprivacy/policyscout/internal/model"
)

// VisitedSet records URLs already claimed by a traversal.
// URLs are compared as exact strings; no normalization is applied.
type VisitedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewVisitedSet creates an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{urls: make(map[string]struct{})}
}

// Contains reports whether url was already claimed.
func (v *VisitedSet) Contains(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.urls[url]
	return ok
}

// MarkIfNotVisited claims url. It returns false if url was claimed before.
func (v *VisitedSet) MarkIfNotVisited(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.urls[url]; ok {
		return false
	}
	v.urls[url] = struct{}{}
	return true
}

// Len returns the number of claimed URLs.
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.urls)
}

// ContentSeen records page texts already aggregated, for content dedup.
type ContentSeen struct {
	mu    sync.Mutex
	texts map[string]struct{}
}

// NewContentSeen creates an empty set.
func NewContentSeen() *ContentSeen {
	return &ContentSeen{texts: make(map[string]struct{})}
}

// MarkIfNew records text and reports whether it had not been seen before.
func (c *ContentSeen) MarkIfNew(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.texts[text]; ok {
		return false
	}
	c.texts[text] = struct{}{}
	return true
}

// Session holds the mutable state of one top-level traversal.
// A new Session is created per Crawl call and discarded afterwards.
type Session struct {
	Budget  *Budget
	Visited *VisitedSet
	Content *ContentSeen

	mu    sync.Mutex
	pages []model.PageVisit
}

// NewSession creates a session with a budget of maxPages fetches.
func NewSession(maxPages int) *Session {
	return &Session{
		Budget:  NewBudget(maxPages),
		Visited: NewVisitedSet(),
		Content: NewContentSeen(),
	}
}

// record appends a page visit to the session log.
func (s *Session) record(visit model.PageVisit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, visit)
}

// Pages returns the visits recorded so far, in visitation order.
func (s *Session) Pages() []model.PageVisit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.PageVisit, len(s.pages))
	copy(out, s.pages)
	return out
}
