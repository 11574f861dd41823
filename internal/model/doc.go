// Package model defines the core data structures used throughout policyscout.
//
// This package contains the following main types:
//   - Link: An anchor discovered on a rendered page
//   - Page: The text and anchors produced by one rendering session
//   - CrawlResult: The aggregated text of a budgeted traversal
//   - Location: Where a policy document was found and how
//   - Analysis: The full result of analyzing one site
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The renderer, crawler, locator, pipeline and report packages
// all exchange these types, so centralizing them prevents import cycles.
//
// The models are serializable to JSON for report output and HTTP responses.
package model
