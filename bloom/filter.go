// Package bloom provides a probabilistic membership pre-filter for crawl keys.
//
// A Filter never reports a false negative, so a miss proves a key is new and
// lets callers skip the exact lookup. A hit must be confirmed against an
// exact set.
package bloom

import "github.com/bits-and-blooms/bloom/v3"

// Filter wraps a Bloom filter for crawl key deduplication.
type Filter struct {
	f *bloom.BloomFilter
}

// NewFilter creates a new Bloom filter sized for n expected keys
// with the given false positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	if n == 0 {
		n = 1
	}
	return &Filter{
		f: bloom.NewWithEstimates(n, fpRate),
	}
}

// Add adds a key to the filter.
func (f *Filter) Add(key string) {
	f.f.AddString(key)
}

// Test returns true if the key might be in the filter.
// False positives are possible; false negatives are not.
func (f *Filter) Test(key string) bool {
	return f.f.TestString(key)
}

// TestAndAdd adds the key and reports whether it might already have been present.
func (f *Filter) TestAndAdd(key string) bool {
	return f.f.TestAndAddString(key)
}

// EstimatedCount returns the approximate number of keys in the filter.
func (f *Filter) EstimatedCount() uint {
	return uint(f.f.ApproximatedSize())
}
