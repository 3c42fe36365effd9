package ordkv

import (
	"sync"

	"github.com/dgraph-io/ristretto/z"
)

// bloom remembers every storage key ever written to a collection. Removals
// are not tracked, so it only errs towards false positives.
type bloom struct {
	mu     sync.RWMutex
	filter *z.Bloom
	n      int
	fp     float64
}

func newBloom(expectedKeys int, fpRate float64) *bloom {
	return &bloom{
		filter: z.NewBloomFilter(float64(expectedKeys), fpRate),
		n:      expectedKeys,
		fp:     fpRate,
	}
}

func (b *bloom) add(key []byte) {
	h := z.MemHash(key)

	b.mu.Lock()
	b.filter.Add(h)
	b.mu.Unlock()
}

func (b *bloom) has(key []byte) bool {
	h := z.MemHash(key)

	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter.Has(h)
}

func (b *bloom) reset() {
	b.mu.Lock()
	b.filter = z.NewBloomFilter(float64(b.n), b.fp)
	b.mu.Unlock()
}
