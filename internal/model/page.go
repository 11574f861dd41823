package model

import (
	"strings"
	"unicode/utf8"
)

// Link is an anchor element extracted from a rendered page.
// Href is always absolute: renderers resolve relative references
// against the page URL before handing links out.
type Link struct {
	// Text is the visible text of the anchor.
	Text string `json:"text"`

	// Href is the absolute target URL.
	Href string `json:"href"`
}

// Page is the output of a single rendering session.
type Page struct {
	// URL is the address that was rendered.
	URL string `json:"url"`

	// Text is the visible text of the document body.
	Text string `json:"text"`

	// Links contains every anchor on the page in document order.
	Links []Link `json:"links,omitempty"`
}

// ContentLength returns the number of characters of meaningful text,
// ignoring leading and trailing whitespace.
func (p *Page) ContentLength() int {
	if p == nil {
		return 0
	}
	return utf8.RuneCountInString(strings.TrimSpace(p.Text))
}

// PageVisit records what happened to one URL during a crawl.
// It is diagnostic only; the aggregated text is in CrawlResult.Text.
type PageVisit struct {
	// URL is the visited address.
	URL string `json:"url"`

	// Depth is the distance from the crawl start (0 for the start page).
	Depth int `json:"depth"`

	// Characters is the length of the text this page contributed.
	Characters int `json:"characters"`

	// Retried is true when the short-content retry fired.
	Retried bool `json:"retried,omitempty"`

	// Duplicate is true when content dedup discarded this page's text.
	Duplicate bool `json:"duplicate,omitempty"`

	// Error holds the render error message if no render succeeded.
	Error string `json:"error,omitempty"`
}

// CrawlResult is the outcome of one budgeted traversal.
type CrawlResult struct {
	// StartURL is where the traversal began.
	StartURL string `json:"start_url"`

	// Text is the concatenation of all page texts in pre-order,
	// joined by a blank line.
	Text string `json:"-"`

	// Pages lists the fetched pages in visitation order.
	Pages []PageVisit `json:"pages"`

	// PagesVisited is the number of fetches the budget allowed.
	PagesVisited int `json:"pages_visited"`

	// MaxPages is the budget the traversal ran with.
	MaxPages int `json:"max_pages"`
}
