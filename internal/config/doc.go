// Package config provides configuration structures and utilities for policyscout.
// It defines the crawl budget and timeouts, renderer and storage selection,
// external API credentials, and report preferences, plus the optional
// .policyscout YAML file with per-site overrides.
package config
