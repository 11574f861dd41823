package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite" // SQLite driver
)

// FileName is the SQLite database file created inside the data directory.
const FileName = "policyscout.db"

// PolicyDB stores located and summarized policies.
type PolicyDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dialect holds backend-specific SQL.
	dialect dialect

	// location is the SQLite file path or the MySQL address, for logging.
	location string

	// now is the clock; replaced in tests.
	now func() time.Time
}

// Options configures SQLite behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a SQLite PolicyDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*PolicyDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open(sqliteDialect.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	return newPolicyDB(context.Background(), db, sqliteDialect, dbPath)
}

// OpenMySQL connects to the MySQL database described by dsn and creates the
// schema if needed. Timestamps are always read and written in UTC.
func OpenMySQL(ctx context.Context, dsn string) (*PolicyDB, error) {
	cfg, err := mysqlConfig(dsn)
	if err != nil {
		return nil, err
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to mysql at %s: %w", cfg.Addr, err)
	}

	return newPolicyDB(ctx, db, mysqlDialect, cfg.Addr+"/"+cfg.DBName)
}

// mysqlConfig parses dsn and applies the settings PolicyDB relies on.
func mysqlConfig(dsn string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql DSN: %w", err)
	}
	if cfg.DBName == "" {
		return nil, errors.New("invalid mysql DSN: database name is required")
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if cfg.Params == nil {
		cfg.Params = make(map[string]string)
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}
	return cfg, nil
}

func newPolicyDB(ctx context.Context, db *sql.DB, d dialect, location string) (*PolicyDB, error) {
	pdb := &PolicyDB{
		db:       db,
		dialect:  d,
		location: location,
		now:      time.Now,
	}
	if err := pdb.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return pdb, nil
}

// Close closes the database connection.
func (pdb *PolicyDB) Close() error {
	return pdb.db.Close()
}

// Ping checks that the database is reachable.
func (pdb *PolicyDB) Ping(ctx context.Context) error {
	return pdb.db.PingContext(ctx)
}

// Driver returns the backend name ("sqlite" or "mysql").
func (pdb *PolicyDB) Driver() string {
	return pdb.dialect.name
}

// Location returns the database file or server address.
func (pdb *PolicyDB) Location() string {
	return pdb.location
}

// createTables creates the database schema if it doesn't exist.
func (pdb *PolicyDB) createTables(ctx context.Context) error {
	for _, stmt := range pdb.dialect.schema {
		if _, err := pdb.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// PolicyRecord is one cached policy.
type PolicyRecord struct {
	// Key is the cache key, see Key.
	Key string `json:"key"`

	// BaseURL is the site URL the analysis was requested for.
	BaseURL string `json:"base_url"`

	// PolicyURL is where the policy was found.
	PolicyURL string `json:"policy_url"`

	// LocationSource is "page" or "search".
	LocationSource string `json:"location_source"`

	// Summary is the summary, or the cleaned text if Summarized is false.
	Summary string `json:"summary"`

	// Summarized reports whether Summary came from the summarizer.
	Summarized bool `json:"summarized"`

	// ContentHash is the SHA3-256 of the cleaned text.
	ContentHash string `json:"content_hash"`

	// Characters is the length of the cleaned text.
	Characters int `json:"characters"`

	// PagesVisited is the number of pages the crawl fetched.
	PagesVisited int `json:"pages_visited"`

	// LastUpdated is when the row was written.
	LastUpdated time.Time `json:"last_updated"`

	// LastRequested is when the row was last read, zero if never.
	LastRequested time.Time `json:"last_requested"`
}

// Put inserts or replaces the row for key. LastUpdated and LastRequested
// are set to the current time.
func (pdb *PolicyDB) Put(ctx context.Context, key string, record *PolicyRecord) error {
	now := pdb.now()

	_, err := pdb.db.ExecContext(ctx, pdb.dialect.upsert,
		key,
		record.BaseURL,
		record.PolicyURL,
		record.LocationSource,
		record.Summary,
		record.Summarized,
		record.ContentHash,
		record.Characters,
		record.PagesVisited,
		pdb.dialect.timeArg(now),
		pdb.dialect.timeArg(now),
	)
	if err != nil {
		return fmt.Errorf("failed to store policy %s: %w", key, err)
	}

	record.Key = key
	record.LastUpdated = now
	record.LastRequested = now
	return nil
}

// GetCached returns the stored summary for key and refreshes its
// last-requested time. The second result is false on a miss.
func (pdb *PolicyDB) GetCached(ctx context.Context, key string) (string, bool, error) {
	var summary string
	err := pdb.db.QueryRowContext(ctx,
		`SELECT summary FROM privacy_policies WHERE cache_key = ?`, key,
	).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read policy %s: %w", key, err)
	}

	if err := pdb.touch(ctx, key); err != nil {
		return "", false, err
	}
	return summary, true, nil
}

// touch sets last_requested for key to now.
func (pdb *PolicyDB) touch(ctx context.Context, key string) error {
	_, err := pdb.db.ExecContext(ctx,
		`UPDATE privacy_policies SET last_requested = ? WHERE cache_key = ?`,
		pdb.dialect.timeArg(pdb.now()), key,
	)
	if err != nil {
		return fmt.Errorf("failed to update last requested time for %s: %w", key, err)
	}
	return nil
}

// selectColumns lists the columns scanned by scanRecord.
const selectColumns = `cache_key, base_url, policy_url, location_source, summary, summarized,
	content_hash, characters, pages_visited, last_updated, last_requested`

// Get returns the full row for key without touching it.
// It returns nil, nil when there is no row.
func (pdb *PolicyDB) Get(ctx context.Context, key string) (*PolicyRecord, error) {
	row := pdb.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM privacy_policies WHERE cache_key = ?`, key)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy %s: %w", key, err)
	}
	return record, nil
}

// List returns stored policies, most recently updated first.
// A limit of zero or less returns every row.
func (pdb *PolicyDB) List(ctx context.Context, limit int) ([]PolicyRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM privacy_policies ORDER BY last_updated DESC, cache_key`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := pdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var results []PolicyRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		results = append(results, *record)
	}
	return results, rows.Err()
}

// Delete removes the row for key and reports whether one existed.
func (pdb *PolicyDB) Delete(ctx context.Context, key string) (bool, error) {
	result, err := pdb.db.ExecContext(ctx, `DELETE FROM privacy_policies WHERE cache_key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("failed to delete policy %s: %w", key, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*PolicyRecord, error) {
	var (
		record        PolicyRecord
		lastUpdated   string
		lastRequested sql.NullString
	)
	err := row.Scan(
		&record.Key,
		&record.BaseURL,
		&record.PolicyURL,
		&record.LocationSource,
		&record.Summary,
		&record.Summarized,
		&record.ContentHash,
		&record.Characters,
		&record.PagesVisited,
		&lastUpdated,
		&lastRequested,
	)
	if err != nil {
		return nil, err
	}

	record.LastUpdated = parseTimestamp(lastUpdated)
	if lastRequested.Valid {
		record.LastRequested = parseTimestamp(lastRequested.String)
	}
	return &record, nil
}

// timestampFormats contains the timestamp formats the backends may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,                      // What we write to SQLite
	"2006-01-02 15:04:05.999999999-07:00", // modernc time.Time text form
	"2006-01-02 15:04:05",                 // SQLite default datetime format
	"2006-01-02T15:04:05Z",                // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",                 // ISO 8601 without timezone
	"2006-01-02 15:04:05.999",             // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
