package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKeys contains attribute keys whose values are always masked.
var sensitiveKeys = map[string]bool{
	// HTTP headers sent to the search and model APIs
	"authorization":        true,
	"cookie":               true,
	"set-cookie":           true,
	"x-api-key":            true,
	"x-goog-api-key":       true,
	"x-subscription-token": true,

	// Credentials from config and environment
	"password":       true,
	"secret":         true,
	"token":          true,
	"api_key":        true,
	"apikey":         true,
	"api-key":        true,
	"brave_api_key":  true,
	"gemini_api_key": true,
	"dsn":            true,
	"mysql_dsn":      true,
}

// sensitiveKeywords mark a key as sensitive when contained anywhere in it.
// The bare "key" is left out: "cache_key" is logged everywhere and is not
// a secret.
var sensitiveKeywords = []string{"password", "passwd", "secret", "token", "auth", "credential", "dsn"}

// sensitivePatterns match values that are secrets in their entirety.
var sensitivePatterns = []*regexp.Regexp{
	// JWT tokens
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),

	// Bearer tokens
	regexp.MustCompile(`(?i)^bearer\s+.+`),

	// Google API keys
	regexp.MustCompile(`^AIza[0-9A-Za-z_-]{35}$`),

	// Long opaque tokens such as Brave subscription keys
	regexp.MustCompile(`^[A-Za-z0-9_-]{32,}$`),
}

// inlineSecrets match secrets embedded in longer values, such as an API key
// in a request URL or a password in a MySQL DSN. Only the secret part is
// replaced so the rest of the value stays useful.
var inlineSecrets = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{
		// ?key=... and &api_key=... query parameters
		pattern:     regexp.MustCompile(`(?i)([?&](?:key|api_key|apikey|token)=)[^&\s"']+`),
		replacement: "${1}" + MaskValue,
	},
	{
		// user:password@tcp(host)/db
		pattern:     regexp.MustCompile(`([^\s:/@]+):[^\s@/]+@(tcp|unix)\(`),
		replacement: "${1}:" + MaskValue + "@${2}(",
	},
}

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// SecureHandler wraps an slog.Handler to keep credentials out of logs.
// It masks attributes whose key names a secret, attributes whose value looks
// like one, and secrets embedded in URLs, DSNs and error messages.
//
// Design decision: We use a handler wrapper rather than a custom logger
// so every component can keep taking a plain *slog.Logger, and the wrapper
// works with any underlying handler (text, JSON, etc.).
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled delegates to the underlying handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's message and attributes and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, redactInline(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes sanitized and added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(clean)}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

// sanitizeAttr sanitizes a single attribute, recursively handling groups.
func sanitizeAttr(a slog.Attr) slog.Attr {
	value := a.Value.Resolve()

	if value.Kind() == slog.KindGroup {
		group := value.Group()
		clean := make([]slog.Attr, len(group))
		for i, ga := range group {
			clean[i] = sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch value.Kind() {
	case slog.KindString:
		s := value.String()
		if isSensitiveValue(s) {
			return slog.String(a.Key, MaskValue)
		}
		if redacted := redactInline(s); redacted != s {
			return slog.String(a.Key, redacted)
		}
	case slog.KindAny:
		// Errors often quote the failing request URL.
		if err, ok := value.Any().(error); ok {
			msg := err.Error()
			if redacted := redactInline(msg); redacted != msg {
				return slog.String(a.Key, redacted)
			}
		}
	}

	return slog.Attr{Key: a.Key, Value: value}
}

// isSensitiveKey reports whether an attribute key names a secret.
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	if sensitiveKeys[lower] {
		return true
	}
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// isSensitiveValue reports whether a value is a secret as a whole.
func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// redactInline masks secrets embedded in s.
func redactInline(s string) string {
	for _, secret := range inlineSecrets {
		s = secret.pattern.ReplaceAllString(s, secret.replacement)
	}
	return s
}

// level maps the verbose flag to a log level.
// Non-verbose runs show progress (Info) and problems.
func level(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// NewSecureLogger creates a text logger that sanitizes all output.
// If verbose is true the level is Debug, otherwise Info.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level(verbose)}
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, opts)))
}

// NewSecureJSONLogger creates a JSON logger that sanitizes all output.
// Useful for the server, whose logs usually go to an aggregator.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level(verbose)}
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, opts)))
}
