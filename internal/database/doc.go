// Package database provides the policy cache for policyscout.
//
// This package implements PolicyDB, which stores one row per site:
//   - the summary (or the cleaned policy text when summarizing failed)
//   - where the policy was found and how many pages the crawl visited
//   - a SHA3-256 hash of the cleaned text, to spot unchanged policies
//   - when the row was last written and last read
//
// Design decision: We use SQLite (via modernc.org/sqlite) by default because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
//
// Deployments that share one cache between several servers can use MySQL
// (via github.com/go-sql-driver/mysql) instead. Both backends run the same
// queries; only the schema and the upsert syntax differ.
//
// Rows are keyed by Key(siteURL), so the read path and the write path always
// agree on where a site's entry lives.
package database
