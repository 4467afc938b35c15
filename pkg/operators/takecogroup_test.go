package operators

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/queryrt/pkg/exchange"
	"github.com/cuemby/queryrt/pkg/record"
)

func TestTakeCogroupVisitsEveryDistinctKeyInOrder(t *testing.T) {
	req, _, _ := newTestRequest(t)
	meta := keyMetaSingleInt()
	cmp := func(a, b []byte) int { return bytes.Compare(a, b) }

	left := exchange.NewWriter(cmp)
	left.Put(encodeInt4(meta, 1), encodeInt4(meta, 100))
	left.Put(encodeInt4(meta, 2), encodeInt4(meta, 200))

	right := exchange.NewWriter(cmp)
	right.Put(encodeInt4(meta, 2), encodeInt4(meta, 2000))
	right.Put(encodeInt4(meta, 3), encodeInt4(meta, 3000))

	cg := exchange.NewCogroup([]exchange.GroupReader{left.Reader(), right.Reader()}, cmp, exchange.StrategyHeap)

	var keys []int32
	var leftCounts, rightCounts []int
	down := &cogroupCollector{fn: func(c *exchange.Cogroup) {
		keys = append(keys, record.NewRef(c.Key(), meta).GetInt4(0))
		l, r := 0, 0
		li := c.Input(0)
		for li.NextMember() {
			l++
		}
		ri := c.Input(1)
		for ri.NextMember() {
			r++
		}
		leftCounts = append(leftCounts, l)
		rightCounts = append(rightCounts, r)
	}}

	tc := NewTakeCogroup(req, cg, down, false, false)
	runToComplete(t, tc)

	require.NoError(t, req.Errors.Err())
	assert.Equal(t, []int32{1, 2, 3}, keys)
	assert.Equal(t, []int{1, 1, 0}, leftCounts)
	assert.Equal(t, []int{0, 1, 1}, rightCounts)
}

type cogroupCollector struct {
	fn func(cg *exchange.Cogroup)
}

func (c *cogroupCollector) PushCogroup(cg *exchange.Cogroup) bool {
	c.fn(cg)
	return true
}
