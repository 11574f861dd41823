// Package crawler assembles the full text of a policy document.
//
// # Architecture
//
// A Crawler starts from the located policy URL, renders it, and follows
// links the relevance classifier accepts, depth-first and in document
// order. The text of each page is followed by the text of each child,
// separated by a blank line, so the aggregate reads in pre-order.
//
// All mutable state of a traversal lives in a Session:
//
//   - Budget: an upper bound on fetches, checked on entry and before
//     every child
//   - VisitedSet: URLs claimed before they are fetched, so cycles end
//   - ContentSeen: page texts already aggregated (only with content dedup)
//
// Crawl creates a fresh Session per call. Nothing is kept at package level.
//
// # Two-tier fetch
//
// Each page is rendered with a fast wait first. When that fails or yields
// fewer runes than the content threshold, the page is rendered once more
// with a settled wait. A failed retry keeps the fast result if there is one.
//
// # Failure handling
//
// Crawl never returns an error. Render failures are logged and the page
// contributes no text and no children; the rest of the traversal continues.
//
// # Politeness
//
// WithDelay spaces renders with a golang.org/x/time/rate limiter, and
// WithIgnorePatterns keeps the crawler away from paths such as downloads.
//
// # Usage
//
//	c := crawler.New(renderer, crawler.WithMaxPages(10))
//	result := c.Crawl(ctx, "https://example.com/privacy")
package crawler
