package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the name of the per-directory configuration file.
const DefaultConfigFile = ".policyscout"

// xdgConfigFile is the name of the configuration file inside the XDG
// config directory.
const xdgConfigFile = "config.yaml"

// ErrConfigNotFound is returned when a configuration file is missing.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile reads site settings and the top-sites list from a YAML file.
// A missing file yields ErrConfigNotFound; whether that matters is up to the
// caller, which knows if the path was given explicitly.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the user
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	// Hostnames are matched in lower case.
	sites := make(map[string]SiteConfig, len(cf.Sites))
	for host, site := range cf.Sites {
		sites[strings.ToLower(host)] = site
	}
	cf.Sites = sites

	for _, target := range cf.TopSites {
		if err := ValidateTarget(target); err != nil {
			return nil, fmt.Errorf("topSites entry %q: %w", target, err)
		}
	}

	return &cf, nil
}

// FindConfigFile returns the configuration file to load, or "" if there is
// none. An explicit configPath is returned only if it exists. Otherwise the
// first existing candidate of configCandidates wins.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if fileExists(configPath) {
			return configPath
		}
		return ""
	}

	for _, candidate := range configCandidates() {
		if fileExists(candidate) {
			return candidate
		}
	}
	return ""
}

// configCandidates lists the implicit configuration locations in lookup
// order: the working directory, the home directory, then the XDG config
// directory (~/.config/policyscout/config.yaml on Linux).
func configCandidates() []string {
	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	return append(candidates, filepath.Join(xdg.ConfigHome, AppName, xdgConfigFile))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
