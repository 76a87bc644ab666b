package crawl

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"
)

// Page naming limits.
const (
	defaultPageName   = "Deep"
	minPageNameLength = 2
	maxPageNameLength = 20
)

// SanitizeName replaces every rune that is not a letter or digit with "_".
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, name)
}

// PageNameFromURL derives a short name from the last path segment of rawURL.
// Non-alphanumeric runes are dropped; names shorter than two runes fall
// back to "Deep" and long names are cut at twenty runes.
func PageNameFromURL(rawURL string) string {
	segment := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		segment = u.Path
	}
	if idx := strings.LastIndex(segment, "/"); idx != -1 {
		segment = segment[idx+1:]
	}

	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, segment)

	runes := []rune(name)
	if len(runes) < minPageNameLength {
		return defaultPageName
	}
	if len(runes) > maxPageNameLength {
		runes = runes[:maxPageNameLength]
	}
	return string(runes)
}

// NameRegistry hands out unique file-safe page names within a session.
type NameRegistry struct {
	used map[string]int
}

// NewNameRegistry returns an empty registry.
func NewNameRegistry() *NameRegistry {
	return &NameRegistry{used: make(map[string]int)}
}

// Claim sanitizes name and suffixes _2, _3, ... on collision.
func (r *NameRegistry) Claim(name string) string {
	base := SanitizeName(name)
	if base == "" {
		base = defaultPageName
	}
	n := r.used[base]
	r.used[base] = n + 1
	if n == 0 {
		return base
	}
	candidate := base + "_" + strconv.Itoa(n+1)
	for r.used[candidate] > 0 {
		n++
		candidate = base + "_" + strconv.Itoa(n+1)
	}
	r.used[candidate] = 1
	return candidate
}
