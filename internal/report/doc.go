// Package report renders analyses and cache listings for the CLI.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - MarkdownWriter: Markdown for sharing and documentation
//   - JSONWriter: Structured JSON output for tool integration
//
// Design decision: We separate report writing from the analysis data
// structures (which are in the model package) so new output formats can be
// added without touching the pipeline.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably.
package report
