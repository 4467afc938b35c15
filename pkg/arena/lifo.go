package arena

// Checkpoint is an opaque cursor into a LIFO arena, taken with
// Checkpoint() and consumed by DeallocateAfter. Restoring to an earlier
// checkpoint is valid; a checkpoint whose page has already been
// recycled by a later DeallocateAfter must never be reused.
type Checkpoint struct {
	pageIdx int
	offset  int
}

// LIFO is a stack-discipline allocator: allocations are released in
// bulk back to a prior checkpoint, which is how take-cogroup scopes its
// per-tuple value buffers (§4.6.7) — a checkpoint before each cogroup
// tuple, restored after the downstream operator returns.
type LIFO struct {
	pool   *Pool
	pages  []*page
	cur    int
	offset int
}

// NewLIFO creates an allocator backed by pool.
func NewLIFO(pool *Pool) *LIFO {
	return &LIFO{pool: pool}
}

// Checkpoint captures the current allocation cursor.
func (l *LIFO) Checkpoint() Checkpoint {
	return Checkpoint{pageIdx: l.cur, offset: l.offset}
}

// Allocate returns n zeroed, aligned bytes, growing the page chain as
// needed.
func (l *LIFO) Allocate(n int, align int) []byte {
	if align <= 0 {
		align = 1
	}
	if len(l.pages) == 0 {
		l.pages = append(l.pages, l.pool.acquire())
		l.cur = 0
		l.offset = 0
	}
	for {
		aligned := alignUp(l.offset, align)
		if aligned+n <= PageSize {
			l.offset = aligned + n
			b := l.pages[l.cur].buf[aligned : aligned+n : aligned+n]
			clear(b) // space released by DeallocateAfter or the pool keeps old contents
			return b
		}
		if n > PageSize {
			return make([]byte, n)
		}
		l.cur++
		if l.cur >= len(l.pages) {
			l.pages = append(l.pages, l.pool.acquire())
		}
		l.offset = 0
	}
}

// DeallocateAfter truncates every allocation made since cp was taken,
// releasing any pages that are no longer referenced back to the pool.
// Restoring to cp twice, or to a checkpoint earlier than the most recent
// DeallocateAfter target, is valid; cp must not name a page index beyond
// the arena's current page count.
func (l *LIFO) DeallocateAfter(cp Checkpoint) {
	for idx := len(l.pages) - 1; idx > cp.pageIdx; idx-- {
		l.pool.release(l.pages[idx])
		l.pages = l.pages[:idx]
	}
	l.cur = cp.pageIdx
	l.offset = cp.offset
}

// Reset releases every page the arena holds.
func (l *LIFO) Reset() {
	for _, p := range l.pages {
		l.pool.release(p)
	}
	l.pages = l.pages[:0]
	l.cur = 0
	l.offset = 0
}
