package crawl

import (
	"fmt"
	"strings"
)

// TruncateURL shortens a URL for a progress line. The scheme is dropped
// and, when still too long, the head is replaced by "..." so the path end
// stays readable.
func TruncateURL(rawURL string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	s := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 4 {
		return s[:maxLen]
	}
	return "..." + s[len(s)-maxLen+3:]
}

// FormatBytes formats a byte count with binary units, e.g. "1.5 KB".
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit && exp < 2; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMG"[exp])
}

// FormatProgress renders a phase with its counters, e.g. "crawl 3/10 30%".
// Phases without a known total render the count alone.
func FormatProgress(phase string, current, total int) string {
	if total <= 0 {
		if current == 0 {
			return phase
		}
		return fmt.Sprintf("%s %d", phase, current)
	}
	if total < current {
		total = current
	}
	return fmt.Sprintf("%s %d/%d %d%%", phase, current, total, current*100/total)
}
