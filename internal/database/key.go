package database

import (
	"encoding/hex"
	"net/url"
	"strings"

	"golang.org/x/crypto/sha3"
)

// GenericKey is the key used for URLs that cannot be parsed.
const GenericKey = "privacy_policy_generic.txt"

// Key derives the cache key for siteURL:
// "privacy_policy_<hostname with dots replaced by underscores>.txt".
func Key(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil {
		return GenericKey
	}
	host := u.Hostname()
	if host == "" {
		return GenericKey
	}
	return "privacy_policy_" + strings.ReplaceAll(host, ".", "_") + ".txt"
}

// ContentHash returns the hex SHA3-256 digest of text.
func ContentHash(text string) string {
	sum := sha3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
