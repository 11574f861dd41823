// Package log provides secure logging built on top of the standard slog
// package.
//
// This package extends slog to provide:
//   - Automatic masking of credentials (API keys, subscription tokens,
//     database passwords) in attributes, messages and errors
//   - Verbose mode mapped to the Debug level
//   - Text output for the CLI and JSON output for the server
//   - Size-based log file rotation via lumberjack
//
// # Security Features
//
// The SecureHandler masks:
//   - Attributes whose key names a secret (x-subscription-token, dsn, ...)
//   - Values that look like a secret as a whole (bearer tokens, Google keys)
//   - Secrets inside longer values: "?key=..." in request URLs and the
//     password of a MySQL DSN
//
// Even in verbose mode secrets are masked, so logs can be shared freely.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	w, err := log.NewRotatingWriter("/var/log/policyscout/server.log")
//	if err != nil { ... }
//	defer w.Close()
//	logger = log.NewSecureJSONLogger(w, verbose)
package log
