package convgrad

import (
	"sync"

	"github.com/born-ml/convgrad/internal/envconfig"
)

// sizeClass groups scratch buffers by capacity.
type sizeClass int

const (
	// smallScratch holds buffers < 4KB.
	smallScratch sizeClass = iota
	// mediumScratch holds buffers 4KB-1MB.
	mediumScratch
	// largeScratch holds buffers > 1MB.
	largeScratch
	numSizeClasses
)

const (
	smallThreshold  = 4 * 1024    // 4KB
	mediumThreshold = 1024 * 1024 // 1MB
)

// ScratchPool recycles the byte buffers layout conversions write into.
// Buffers are grouped by size class and at most limit buffers are kept per
// class; the rest are left to the garbage collector.
type ScratchPool struct {
	mu      sync.Mutex
	classes [numSizeClasses][][]byte
	limit   int

	acquired uint64
	released uint64
	hits     uint64
	misses   uint64
}

// ScratchStats is a snapshot of pool usage.
type ScratchStats struct {
	Acquired uint64
	Released uint64
	Hits     uint64
	Misses   uint64
	Pooled   int
}

// NewScratchPool creates a pool that retains up to limit buffers per size
// class. A limit of zero disables retention.
func NewScratchPool(limit int) *ScratchPool {
	if limit < 0 {
		limit = 0
	}
	return &ScratchPool{limit: limit}
}

// DefaultScratchPool creates a pool sized from CONVGRAD_SCRATCH_POOL.
func DefaultScratchPool() *ScratchPool {
	return NewScratchPool(int(envconfig.ScratchPool()))
}

// Acquire returns a zeroed buffer of exactly size bytes.
func (p *ScratchPool) Acquire(size int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.acquired++
	c := categorize(size)
	pool := p.classes[c]
	for i, buf := range pool {
		if cap(buf) >= size {
			p.classes[c] = append(pool[:i], pool[i+1:]...)
			p.hits++
			buf = buf[:size]
			clear(buf)
			return buf
		}
	}

	p.misses++
	return make([]byte, size)
}

// Release returns buf to the pool. Buffers beyond the class limit are
// dropped.
func (p *ScratchPool) Release(buf []byte) {
	if buf == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.released++
	c := categorize(cap(buf))
	if len(p.classes[c]) >= p.limit {
		return
	}
	p.classes[c] = append(p.classes[c], buf[:0])
}

// Clear drops every pooled buffer.
func (p *ScratchPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.classes {
		p.classes[i] = nil
	}
}

// Stats returns statistics about pool usage.
func (p *ScratchPool) Stats() ScratchStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	pooled := 0
	for _, c := range p.classes {
		pooled += len(c)
	}
	return ScratchStats{
		Acquired: p.acquired,
		Released: p.released,
		Hits:     p.hits,
		Misses:   p.misses,
		Pooled:   pooled,
	}
}

func categorize(size int) sizeClass {
	if size < smallThreshold {
		return smallScratch
	}
	if size < mediumThreshold {
		return mediumScratch
	}
	return largeScratch
}
