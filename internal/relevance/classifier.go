// Package relevance decides whether a link discovered while crawling a
// policy document is worth following.
//
// Design decision: The classifier is a cheap keyword filter rather than a
// semantic model. The traversal is budget-capped, so an occasional wasted
// fetch is acceptable; following off-topic or off-site links is not.
package relevance

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultKeywords are the topical markers a link must carry in its text or URL.
var DefaultKeywords = []string{"privacy", "data", "gdpr", "cookie", "tracking"}

// DefaultLanguageCodes are the non-English language codes whose localized
// mirrors are skipped.
var DefaultLanguageCodes = []string{"ar", "de", "es", "fr", "it", "nl", "pl", "pt", "ru", "zh"}

// languageParams are the query parameters that select a page language.
var languageParams = []string{"lang", "locale"}

// Classifier filters links by host, language and topic.
// A Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	keywords       []string
	languages      map[string]bool
	excludedTokens []string
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithKeywords replaces the topical keyword set.
func WithKeywords(keywords []string) Option {
	return func(c *Classifier) {
		c.keywords = keywords
	}
}

// WithLanguageCodes replaces the set of rejected language codes.
func WithLanguageCodes(codes []string) Option {
	return func(c *Classifier) {
		c.languages = toSet(codes)
	}
}

// WithExcludedTokens rejects any link whose URL contains one of tokens.
// Some sites append a tracking marker (for example "privacy_mutation_token")
// to policy links; whether those links should be followed is a per-site
// decision, so the filter is off unless configured.
func WithExcludedTokens(tokens []string) Option {
	return func(c *Classifier) {
		c.excludedTokens = tokens
	}
}

// New creates a Classifier with the default keyword and language sets.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		keywords:  DefaultKeywords,
		languages: toSet(DefaultLanguageCodes),
	}
	for _, opt := range opts {
		opt(c)
	}

	folded := make([]string, 0, len(c.keywords))
	for _, k := range c.keywords {
		folded = append(folded, fold(k))
	}
	c.keywords = folded

	return c
}

// IsRelevant reports whether a link should be followed from a page on baseDomain.
//
// The checks run in order:
//  1. linkURL must parse and its hostname must equal baseDomain exactly
//     (subdomains are different hosts)
//  2. no path segment and no lang/locale query value may name a rejected language
//  3. the link text or URL must contain a keyword, case-insensitively
//
// Malformed URLs are simply not relevant; IsRelevant never fails.
func (c *Classifier) IsRelevant(linkText, linkURL, baseDomain string) bool {
	u, err := url.Parse(linkURL)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Hostname() != baseDomain {
		return false
	}

	if c.isLocalized(u) {
		return false
	}

	if c.HasExcludedToken(linkURL) {
		return false
	}

	text := fold(linkText)
	target := fold(linkURL)
	for _, k := range c.keywords {
		if strings.Contains(text, k) || strings.Contains(target, k) {
			return true
		}
	}
	return false
}

// HasExcludedToken reports whether linkURL contains a configured excluded token.
func (c *Classifier) HasExcludedToken(linkURL string) bool {
	for _, token := range c.excludedTokens {
		if token != "" && strings.Contains(linkURL, token) {
			return true
		}
	}
	return false
}

// isLocalized reports whether u points at a localized mirror.
func (c *Classifier) isLocalized(u *url.URL) bool {
	for _, segment := range strings.Split(u.Path, "/") {
		if c.languages[strings.ToLower(segment)] {
			return true
		}
	}

	for key, values := range u.Query() {
		if !isLanguageParam(key) {
			continue
		}
		for _, v := range values {
			if c.isRejectedLanguage(v) {
				return true
			}
		}
	}
	return false
}

// isRejectedLanguage matches a bare code ("de") and regional variants
// ("de-DE", "pt_BR").
func (c *Classifier) isRejectedLanguage(value string) bool {
	value = strings.ToLower(value)
	if c.languages[value] {
		return true
	}
	if i := strings.IndexAny(value, "-_"); i > 0 {
		return c.languages[value[:i]]
	}
	return false
}

func isLanguageParam(key string) bool {
	for _, p := range languageParams {
		if strings.EqualFold(key, p) {
			return true
		}
	}
	return false
}

// fold returns the case-folded form of s. A Caser keeps state between
// calls, so a fresh one is built each time.
func fold(s string) string {
	return cases.Fold().String(s)
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = true
	}
	return set
}
