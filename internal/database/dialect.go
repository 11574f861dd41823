package database

import "time"

// dialect holds the SQL that differs between backends.
type dialect struct {
	// name is the driver name passed to database/sql.
	name string

	// schema creates the tables if they do not exist.
	schema []string

	// upsert inserts or replaces a policy row.
	upsert string

	// timeArg converts a timestamp into a query argument.
	timeArg func(time.Time) any
}

// sqliteTimeFormat is how timestamps are stored in SQLite.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// upsertColumns is the column list shared by both upserts.
const upsertColumns = `(cache_key, base_url, policy_url, location_source, summary, summarized,
	content_hash, characters, pages_visited, last_updated, last_requested)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{`
	-- One row per site, keyed by Key(siteURL)
	CREATE TABLE IF NOT EXISTS privacy_policies (
		cache_key TEXT PRIMARY KEY,
		base_url TEXT NOT NULL,
		policy_url TEXT NOT NULL DEFAULT '',
		location_source TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL,
		summarized INTEGER NOT NULL DEFAULT 0,
		content_hash TEXT NOT NULL DEFAULT '',
		characters INTEGER NOT NULL DEFAULT 0,
		pages_visited INTEGER NOT NULL DEFAULT 0,
		last_updated DATETIME NOT NULL,
		last_requested DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_policies_updated ON privacy_policies(last_updated);
	`},
	upsert: `
	INSERT INTO privacy_policies ` + upsertColumns + `
	ON CONFLICT(cache_key) DO UPDATE SET
		base_url = excluded.base_url,
		policy_url = excluded.policy_url,
		location_source = excluded.location_source,
		summary = excluded.summary,
		summarized = excluded.summarized,
		content_hash = excluded.content_hash,
		characters = excluded.characters,
		pages_visited = excluded.pages_visited,
		last_updated = excluded.last_updated,
		last_requested = excluded.last_requested
	`,
	// Fixed-width text sorts in time order.
	timeArg: func(t time.Time) any {
		return t.UTC().Format(sqliteTimeFormat)
	},
}

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{`
	CREATE TABLE IF NOT EXISTS privacy_policies (
		cache_key VARCHAR(255) NOT NULL PRIMARY KEY,
		base_url TEXT NOT NULL,
		policy_url TEXT NOT NULL,
		location_source VARCHAR(16) NOT NULL DEFAULT '',
		summary MEDIUMTEXT NOT NULL,
		summarized BOOLEAN NOT NULL DEFAULT FALSE,
		content_hash CHAR(64) NOT NULL DEFAULT '',
		characters INT NOT NULL DEFAULT 0,
		pages_visited INT NOT NULL DEFAULT 0,
		last_updated DATETIME(6) NOT NULL,
		last_requested DATETIME(6) NULL,
		INDEX idx_policies_updated (last_updated)
	) CHARACTER SET utf8mb4`,
	},
	upsert: `
	INSERT INTO privacy_policies ` + upsertColumns + `
	ON DUPLICATE KEY UPDATE
		base_url = VALUES(base_url),
		policy_url = VALUES(policy_url),
		location_source = VALUES(location_source),
		summary = VALUES(summary),
		summarized = VALUES(summarized),
		content_hash = VALUES(content_hash),
		characters = VALUES(characters),
		pages_visited = VALUES(pages_visited),
		last_updated = VALUES(last_updated),
		last_requested = VALUES(last_requested)
	`,
	timeArg: func(t time.Time) any {
		return t.UTC()
	},
}
