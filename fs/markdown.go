// Package fs provides file-based storage for captured pages.
package fs

import (
	"net/url"
	"strings"

	"github.com/fwojciec/siteclone"
)

// FormatMarkdown formats a page's markdown sidecar with YAML frontmatter.
func FormatMarkdown(page *siteclone.CapturedPage, markdown string) string {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("source: ")
	b.WriteString(page.URL)
	b.WriteString("\ntitle: ")
	b.WriteString(page.Title)
	b.WriteString("\npriority: ")
	b.WriteString(page.Priority.String())
	b.WriteString("\ncaptured: ")
	b.WriteString(page.CapturedAt.Format("2006-01-02"))
	b.WriteString("\n---\n\n")
	b.WriteString(markdown)
	if !strings.HasSuffix(markdown, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

// DirName derives a session's output directory name from its root URL's
// host and the session ID, e.g. "www_example_com-3f2a9c1e".
func DirName(rootURL, sessionID string) string {
	host := "site"
	if u, err := url.Parse(rootURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	host = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '_'
	}, strings.ToLower(host))

	id := strings.ReplaceAll(sessionID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		return host
	}
	return host + "-" + id
}
