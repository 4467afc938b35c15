package exchange

import "sort"

// Writer accumulates (key, value) pairs for one exchange partition and
// hands back a GroupReader once the producer side is done. Not safe for
// concurrent use — each writer belongs to one upstream task.
type Writer struct {
	cmp     Compare
	entries []kv
}

// NewWriter creates a writer that will sort accumulated entries by cmp.
func NewWriter(cmp Compare) *Writer {
	return &Writer{cmp: cmp}
}

// Put appends one (key, value) pair. key and value are copied so the
// writer does not alias the caller's arena-backed buffers past this
// call.
func (w *Writer) Put(key, value []byte) {
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	w.entries = append(w.entries, kv{key: k, value: v})
}

// Len reports how many entries have been written so far.
func (w *Writer) Len() int { return len(w.entries) }

// Reader sorts the accumulated entries by key (stable, so same-key
// entries keep their Put order — the "values keep their partition
// order" guarantee) and returns a GroupReader over the result. Reader
// may be called only once per writer.
func (w *Writer) Reader() *SliceReader {
	sort.SliceStable(w.entries, func(i, j int) bool {
		return w.cmp(w.entries[i].key, w.entries[j].key) < 0
	})
	return NewSliceReader(w.entries, w.cmp)
}
