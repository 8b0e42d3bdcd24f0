// Package cache derives cache keys and guards cache backends so that
// storage failures never reach request handling.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Key derives the cache key for an endpoint and its parameters.
// Parameter names are trimmed and lower-cased, values trimmed, and pairs sorted,
// so argument order never changes the key. The result is the SHA-256 hex digest
// of "endpoint?k=v&k=v".
func Key(endpoint string, params map[string]string) string {
	return hashCanonical(Canonical(endpoint, params))
}

// Canonical returns the pre-hash form of the key.
func Canonical(endpoint string, params map[string]string) string {
	pairs := make([]string, 0, len(params))
	for name, value := range params {
		pairs = append(pairs, strings.ToLower(strings.TrimSpace(name))+"="+strings.TrimSpace(value))
	}
	sort.Strings(pairs)

	var b strings.Builder
	b.WriteString(strings.TrimSpace(endpoint))
	if len(pairs) > 0 {
		b.WriteByte('?')
		b.WriteString(strings.Join(pairs, "&"))
	}
	return b.String()
}

func hashCanonical(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
