package exchange

import "container/heap"

// heapItem is one reader's currently pending group key.
type heapItem struct {
	idx int
	key []byte
}

// itemHeap is a container/heap.Interface ordered by cmp over keys.
type itemHeap struct {
	items []heapItem
	cmp   Compare
}

func (h itemHeap) Len() int { return len(h.items) }
func (h itemHeap) Less(i, j int) bool {
	return h.cmp(h.items[i].key, h.items[j].key) < 0
}
func (h itemHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *itemHeap) Push(x any)   { h.items = append(h.items, x.(heapItem)) }
func (h *itemHeap) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

// heapMerger is the container/heap-backed Strategy: a classic K-way
// merge priority queue over the readers' pending keys.
type heapMerger struct {
	h itemHeap
}

func (m *heapMerger) init(readers []GroupReader, cmp Compare) {
	m.h = itemHeap{cmp: cmp}
	heap.Init(&m.h)
	for i, r := range readers {
		if r.NextGroup() {
			heap.Push(&m.h, heapItem{idx: i, key: r.GetGroup()})
		}
	}
}

func (m *heapMerger) popMin() ([]byte, []int, bool) {
	if m.h.Len() == 0 {
		return nil, nil, false
	}
	first := heap.Pop(&m.h).(heapItem)
	key := first.key
	indices := []int{first.idx}
	for m.h.Len() > 0 && m.h.cmp(m.h.items[0].key, key) == 0 {
		next := heap.Pop(&m.h).(heapItem)
		indices = append(indices, next.idx)
	}
	return key, indices, true
}

func (m *heapMerger) requeue(i int, readers []GroupReader, cmp Compare) {
	if readers[i].NextGroup() {
		heap.Push(&m.h, heapItem{idx: i, key: readers[i].GetGroup()})
	}
}
