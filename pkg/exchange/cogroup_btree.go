package exchange

import "github.com/google/btree"

// btreeItem orders by (key, idx) so two readers sharing an equal key
// occupy distinct slots instead of colliding under btree.Item equality.
type btreeItem struct {
	key []byte
	idx int
	cmp Compare
}

func (a btreeItem) Less(than btree.Item) bool {
	b := than.(btreeItem)
	if c := a.cmp(a.key, b.key); c != 0 {
		return c < 0
	}
	return a.idx < b.idx
}

// btreeMerger is the google/btree-backed Strategy: readers' pending
// keys live in an ordered tree instead of a binary heap, trading
// per-step update cost for the tree's better locality on the "many
// inputs, wide fan-in" cogroups the sorted-vector strategy targets.
type btreeMerger struct {
	tree *btree.BTree
	cmp  Compare
}

func (m *btreeMerger) init(readers []GroupReader, cmp Compare) {
	m.cmp = cmp
	m.tree = btree.New(8)
	for i, r := range readers {
		if r.NextGroup() {
			m.tree.ReplaceOrInsert(btreeItem{key: r.GetGroup(), idx: i, cmp: cmp})
		}
	}
}

func (m *btreeMerger) popMin() ([]byte, []int, bool) {
	min := m.tree.DeleteMin()
	if min == nil {
		return nil, nil, false
	}
	first := min.(btreeItem)
	key := first.key
	indices := []int{first.idx}
	for {
		next := m.tree.Min()
		if next == nil || m.cmp(next.(btreeItem).key, key) != 0 {
			break
		}
		removed := m.tree.DeleteMin().(btreeItem)
		indices = append(indices, removed.idx)
	}
	return key, indices, true
}

func (m *btreeMerger) requeue(i int, readers []GroupReader, cmp Compare) {
	if readers[i].NextGroup() {
		m.tree.ReplaceOrInsert(btreeItem{key: readers[i].GetGroup(), idx: i, cmp: cmp})
	}
}
