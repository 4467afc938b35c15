// Package exchange implements the group and cogroup streams an exchange
// step's flow hands to take-group and take-cogroup operators: sequences
// of (key, [values...]) delivered in ascending key order under a
// declared comparator, plus a cogroup that parallel-advances N such
// readers.
package exchange

// Compare orders two key byte-strings, returning <0, 0, >0 like
// bytes.Compare. Exchanges install the comparator derived from the
// GroupMetadata's declared key ordering (record.Ascending/Descending
// per field already folded in by the caller).
type Compare func(a, b []byte) int

// kv is one partition entry as handed off by the producing writer.
type kv struct {
	key   []byte
	value []byte
}

// GroupReader is the sequence-of-groups protocol take-group and cogroup
// pull from. A reader must be released back to its owning flow exactly
// once; after Release its other methods must not be called.
type GroupReader interface {
	// NextGroup advances to the next distinct key, returning false once
	// exhausted.
	NextGroup() bool
	// GetGroup returns the current group's key. Valid only after a
	// NextGroup call returned true.
	GetGroup() []byte
	// NextMember advances within the current group, returning false once
	// the group's members are exhausted.
	NextMember() bool
	// GetMember returns the current member's value. Valid only after a
	// NextMember call returned true.
	GetMember() []byte
	// Release returns the reader to its flow.
	Release()
}

// SliceReader is a GroupReader over an already key-sorted, pre-grouped
// slice — the shape an in-process exchange partition settles into once
// its writer has sorted and merged its spill runs.
type SliceReader struct {
	entries []kv
	cmp     Compare

	groupStart int // index of the first entry of the current group
	groupEnd   int // index one past the last entry of the current group
	pos        int // cursor within [groupStart, groupEnd) for NextMember
	started    bool
	next       int // index of the first entry of the next, not-yet-entered group
}

// NewSliceReader wraps entries, which must already be sorted ascending
// by cmp applied to entry keys; entries sharing an equal key must be
// contiguous.
func NewSliceReader(entries []kv, cmp Compare) *SliceReader {
	return &SliceReader{entries: entries, cmp: cmp}
}

func (r *SliceReader) NextGroup() bool {
	if r.next >= len(r.entries) {
		return false
	}
	r.groupStart = r.next
	end := r.groupStart + 1
	for end < len(r.entries) && r.cmp(r.entries[end].key, r.entries[r.groupStart].key) == 0 {
		end++
	}
	r.groupEnd = end
	r.next = end
	r.pos = r.groupStart
	r.started = true
	return true
}

func (r *SliceReader) GetGroup() []byte {
	return r.entries[r.groupStart].key
}

func (r *SliceReader) NextMember() bool {
	if !r.started || r.pos >= r.groupEnd {
		return false
	}
	r.pos++
	return true
}

func (r *SliceReader) GetMember() []byte {
	return r.entries[r.pos-1].value
}

func (r *SliceReader) Release() {
	r.entries = nil
}
