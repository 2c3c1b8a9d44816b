package filter

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// SlugFilter keeps a bloom filter of every known slug so the redirect path can
// reject unknown slugs without touching the store. False positives cost one
// store lookup; false negatives cannot happen for slugs added through it.
type SlugFilter struct {
	filter *bloom.BloomFilter
	mu     sync.RWMutex
}

func NewSlugFilter(capacity uint, fpRate float64) *SlugFilter {
	return &SlugFilter{
		filter: bloom.NewWithEstimates(capacity, fpRate),
	}
}

func (f *SlugFilter) Add(slug string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.AddString(slug)
}

func (f *SlugFilter) AddBatch(slugs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, slug := range slugs {
		f.filter.AddString(slug)
	}
}

// MayExist reports whether the slug might be known. A false result is definitive.
func (f *SlugFilter) MayExist(slug string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(slug)
}
