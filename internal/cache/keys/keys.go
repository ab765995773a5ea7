// Package keys builds the storage key under which the building snapshot of
// one directory source is kept.
package keys

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const prefix = "campus:buildings:v1"

// Document returns the key for the snapshot fetched from directoryURL.
// Equivalent spellings of the same URL map to the same key.
func Document(directoryURL string) string {
	norm := normalizeURL(directoryURL)

	src := sanitizeForKey(norm)
	const maxSrcLen = 96
	if len(src) > maxSrcLen {
		src = src[:maxSrcLen]
	}

	sum := xxhash.Sum64String(norm)
	return fmt.Sprintf("%s:src=%s:h=%016x", prefix, src, sum)
}

// lower-cases scheme and host, drops credentials, query and trailing slashes
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	host := strings.ToLower(u.Host)
	path := strings.TrimRight(u.EscapedPath(), "/")
	return strings.ToLower(u.Scheme) + "://" + host + path
}

func sanitizeForKey(s string) string {
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if s == "" {
		return "none"
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := '-'
		if isAlphaNum(r) || r == '.' || r == '_' {
			out = r
		}
		if out == '-' && prev == '-' {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return strings.Trim(b.String(), "-")
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r < unicode.MaxASCII && unicode.IsDigit(r))
}
