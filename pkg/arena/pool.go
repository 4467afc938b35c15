// Package arena implements the page-backed memory resources described in
// the arena memory resource component: a monotonic bump allocator and a
// LIFO checkpointing allocator, both drawing pages from a shared Pool.
//
// Neither allocator is safe for concurrent use — each task owns its own
// arena, matching the "shared-resource policy" (variable tables and
// arenas are per-task, never shared).
package arena

import "sync"

// PageSize is the fixed size of every page vended by a Pool.
const PageSize = 64 * 1024

type page struct {
	buf [PageSize]byte
}

// Pool is a process-wide free-list of fixed-size pages, analogous to the
// engine's global page pool service (constructed once, handed to
// allocators rather than reached for via a package global).
type Pool struct {
	mu   sync.Mutex
	free []*page
	// Allocated counts pages currently checked out, for diagnostics.
	allocated int
}

// NewPool creates an empty page pool. Pages are allocated lazily and
// recycled on Release.
func NewPool() *Pool {
	return &Pool{}
}

func (p *Pool) acquire() *page {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		pg := p.free[n-1]
		p.free = p.free[:n-1]
		p.allocated++
		return pg
	}
	p.allocated++
	return &page{}
}

func (p *Pool) release(pg *page) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, pg)
	p.allocated--
}

// Allocated reports the number of pages currently checked out of the
// pool (i.e. held by live arenas), used by pkg/metrics.
func (p *Pool) Allocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}
