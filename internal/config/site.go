package config

import (
	"net/url"
	"strings"
)

// SiteConfig holds crawl settings for one site.
// Zero values mean "not set" and leave the inherited value in place.
type SiteConfig struct {
	// MaxPages overrides the page budget.
	MaxPages int `yaml:"maxPages,omitempty"`

	// MinContentLength overrides the settled-retry threshold.
	MinContentLength int `yaml:"minContentLength,omitempty"`

	// ContentDedup overrides content dedup. A pointer so "false" can
	// override an inherited "true".
	ContentDedup *bool `yaml:"contentDedup,omitempty"`

	// ExcludeTokens are href substrings that disqualify a link.
	ExcludeTokens []string `yaml:"excludeTokens,omitempty"`

	// IgnorePatterns are URL path globs never followed.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`
}

// Dedup reports whether content dedup is enabled.
func (s SiteConfig) Dedup() bool {
	return s.ContentDedup != nil && *s.ContentDedup
}

// merge returns s with every field set in override replaced.
func (s SiteConfig) merge(override SiteConfig) SiteConfig {
	if override.MaxPages != 0 {
		s.MaxPages = override.MaxPages
	}
	if override.MinContentLength != 0 {
		s.MinContentLength = override.MinContentLength
	}
	if override.ContentDedup != nil {
		s.ContentDedup = override.ContentDedup
	}
	if len(override.ExcludeTokens) > 0 {
		s.ExcludeTokens = override.ExcludeTokens
	}
	if len(override.IgnorePatterns) > 0 {
		s.IgnorePatterns = override.IgnorePatterns
	}
	return s
}

// File represents the structure of the .policyscout configuration file.
type File struct {
	// Defaults contains settings applied to all sites unless overridden
	// in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps hostnames (e.g. "www.example.com") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// TopSites are the site URLs the refresh command re-analyzes.
	TopSites []string `yaml:"topSites,omitempty"`
}

// GetSiteConfig returns the configuration for a host, merged over the
// defaults. A host with a leading "www." also matches an entry without it.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults

	if site, ok := cf.Sites[host]; ok {
		return result.merge(site)
	}
	if bare := strings.TrimPrefix(host, "www."); bare != host {
		if site, ok := cf.Sites[bare]; ok {
			return result.merge(site)
		}
	}
	return result
}

// HostKey returns the hostname of siteURL used to look up site settings,
// or siteURL itself when it does not parse.
func HostKey(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil || u.Hostname() == "" {
		return siteURL
	}
	return strings.ToLower(u.Hostname())
}
