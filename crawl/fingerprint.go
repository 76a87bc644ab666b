package crawl

import (
	"fmt"
	"math/bits"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint identifies normalized page content.
// Exact is the xxhash of the normalized content; Sim is a 64-bit SimHash
// over its tokens, so near-identical content yields nearby values.
type Fingerprint struct {
	Exact string
	Sim   uint64
}

// NewFingerprint fingerprints content that has already been normalized
// (scripts, styles and redundant whitespace removed).
func NewFingerprint(normalized string) Fingerprint {
	return Fingerprint{
		Exact: fmt.Sprintf("%016x", xxhash.Sum64String(normalized)),
		Sim:   simHash(normalized),
	}
}

// Hash returns the printable form stored on captured pages.
func (f Fingerprint) Hash() string {
	return fmt.Sprintf("%016x", f.Sim)
}

// Similarity returns the fraction of SimHash bits two fingerprints share,
// in [0, 1]. Identical exact hashes are always fully similar.
func Similarity(a, b Fingerprint) float64 {
	if a.Exact != "" && a.Exact == b.Exact {
		return 1
	}
	return SimHashSimilarity(a.Sim, b.Sim)
}

// SimHashSimilarity returns 1 - hamming(a, b)/64.
func SimHashSimilarity(a, b uint64) float64 {
	return 1 - float64(bits.OnesCount64(a^b))/64
}

// simHash computes a frequency-weighted SimHash over lowercase word tokens.
func simHash(s string) uint64 {
	weights := make(map[string]int)
	for _, tok := range tokenize(s) {
		weights[tok]++
	}
	if len(weights) == 0 {
		return 0
	}

	var v [64]int
	for tok, w := range weights {
		h := xxhash.Sum64String(tok)
		for i := 0; i < 64; i++ {
			if h&(1<<uint(i)) != 0 {
				v[i] += w
			} else {
				v[i] -= w
			}
		}
	}

	var out uint64
	for i := 0; i < 64; i++ {
		if v[i] > 0 {
			out |= 1 << uint(i)
		}
	}
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// HashSet is a session's set of captured fingerprints.
// It is not safe for concurrent use; the session coordinator owns it.
type HashSet struct {
	threshold float64
	exact     map[string]string
	entries   []hashEntry
}

type hashEntry struct {
	fp  Fingerprint
	url string
}

// NewHashSet creates a HashSet that treats fingerprints above threshold
// similarity as duplicates. Exact hash matches are always duplicates.
func NewHashSet(threshold float64) *HashSet {
	return &HashSet{
		threshold: threshold,
		exact:     make(map[string]string),
	}
}

// Match returns the URL of the most similar stored fingerprint when its
// similarity exceeds the threshold.
func (s *HashSet) Match(fp Fingerprint) (url string, similarity float64, ok bool) {
	if u, found := s.exact[fp.Exact]; found {
		return u, 1, true
	}
	best := -1.0
	for _, e := range s.entries {
		if sim := Similarity(fp, e.fp); sim > best {
			best, url = sim, e.url
		}
	}
	if best > s.threshold {
		return url, best, true
	}
	return "", 0, false
}

// Add stores a fingerprint for url.
func (s *HashSet) Add(fp Fingerprint, url string) {
	if _, found := s.exact[fp.Exact]; !found {
		s.exact[fp.Exact] = url
	}
	s.entries = append(s.entries, hashEntry{fp: fp, url: url})
}

// Len returns the number of stored fingerprints.
func (s *HashSet) Len() int {
	return len(s.entries)
}
