package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoTarget is returned when a command needs at least one site URL.
	ErrNoTarget = errors.New("no target specified: provide a site URL")

	// ErrInvalidURL is returned when a target does not start with "http".
	ErrInvalidURL = errors.New("invalid URL: must start with http:// or https://")

	// ErrInvalidMaxPages is returned when the page budget is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidMinContentLength is returned when the content threshold is negative.
	ErrInvalidMinContentLength = errors.New("invalid min content length: must be non-negative")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrUnknownRenderer is returned for a renderer other than chrome or static.
	ErrUnknownRenderer = errors.New("unknown renderer: must be \"chrome\" or \"static\"")

	// ErrUnknownDriver is returned for a database driver other than sqlite or mysql.
	ErrUnknownDriver = errors.New("unknown database driver: must be \"sqlite\" or \"mysql\"")

	// ErrMissingMySQLDSN is returned when the mysql driver has no DSN.
	ErrMissingMySQLDSN = errors.New("mysql driver selected but no DSN given: set " + EnvMySQLDSN + " or --mysql-dsn")
)
