package exchange

// MemberIterator is the per-input view a cogroup hands the take-cogroup
// operator for one key: either the input's real members (when it has
// the key) or an always-empty iterator (when it doesn't).
type MemberIterator interface {
	NextMember() bool
	GetMember() []byte
}

type emptyMembers struct{}

func (emptyMembers) NextMember() bool { return false }
func (emptyMembers) GetMember() []byte { return nil }

// Strategy selects the internal structure a Cogroup uses to find, at
// each step, the smallest not-yet-emitted key across its inputs.
type Strategy int

const (
	// StrategyHeap merges inputs through a container/heap priority
	// queue — cheap per-step cost, the default for small input counts.
	StrategyHeap Strategy = iota
	// StrategySortedVector merges inputs through a google/btree ordered
	// structure, trading per-step overhead for better cache behavior
	// when the input count is large (config.UseSortedVector).
	StrategySortedVector
)

// Cogroup parallel-advances N GroupReaders that share a comparator,
// producing, for each distinct key across all inputs in ascending
// order, a MemberIterator per input.
type Cogroup struct {
	readers []GroupReader
	cmp     Compare
	merger  merger

	curKey []byte
	active []int // reader indices that hold curKey this round
}

// merger is the strategy-specific structure that tracks which readers
// are still live and finds the minimum pending key among them.
type merger interface {
	// init primes the merger with each reader's first group key; a
	// reader with no group at all is left out of the pending set.
	init(readers []GroupReader, cmp Compare)
	// popMin returns the smallest pending key and every reader index
	// sharing it, removing them from the pending set. ok is false once
	// every reader is exhausted.
	popMin() (key []byte, indices []int, ok bool)
	// requeue re-inserts reader i after the caller has advanced it to
	// its next group (or marks it permanently done if exhausted).
	requeue(i int, readers []GroupReader, cmp Compare)
}

// NewCogroup builds a cogroup over readers using the given strategy.
func NewCogroup(readers []GroupReader, cmp Compare, strategy Strategy) *Cogroup {
	var m merger
	switch strategy {
	case StrategySortedVector:
		m = &btreeMerger{}
	default:
		m = &heapMerger{}
	}
	m.init(readers, cmp)
	return &Cogroup{readers: readers, cmp: cmp, merger: m}
}

// NextKey advances to the next distinct key across every input,
// returning false once all inputs are exhausted.
func (c *Cogroup) NextKey() bool {
	// advance every reader that was active in the prior round before
	// asking the merger for the next minimum.
	for _, i := range c.active {
		c.merger.requeue(i, c.readers, c.cmp)
	}
	key, indices, ok := c.merger.popMin()
	if !ok {
		c.curKey = nil
		c.active = nil
		return false
	}
	c.curKey = key
	c.active = indices
	return true
}

// Key returns the current round's key.
func (c *Cogroup) Key() []byte { return c.curKey }

// Input returns input i's member iterator for the current key: its real
// reader if i is active this round, otherwise an always-empty iterator.
func (c *Cogroup) Input(i int) MemberIterator {
	for _, idx := range c.active {
		if idx == i {
			return c.readers[i]
		}
	}
	return emptyMembers{}
}

// InputCount reports how many inputs this cogroup merges.
func (c *Cogroup) InputCount() int { return len(c.readers) }

// Release releases every underlying reader.
func (c *Cogroup) Release() {
	for _, r := range c.readers {
		r.Release()
	}
}
