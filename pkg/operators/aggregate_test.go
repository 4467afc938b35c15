package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/queryrt/pkg/record"
)

func TestAggregateGroupSumCountAvgMinMax(t *testing.T) {
	req, _, _ := newTestRequest(t)
	vars := newVars(
		varDecl{"val", record.I4(), false},
		varDecl{"total", record.I8(), true},
		varDecl{"n", record.I8(), true},
		varDecl{"avg", record.F8(), true},
		varDecl{"lo", record.I8(), true},
		varDecl{"hi", record.I8(), true},
	)

	funcs := []AggFunc{
		{Kind: AggSum, Arg: "val", Dest: "total"},
		{Kind: AggCount, Arg: "", Dest: "n"},
		{Kind: AggAvg, Arg: "val", Dest: "avg"},
		{Kind: AggMin, Arg: "val", Dest: "lo"},
		{Kind: AggMax, Arg: "val", Dest: "hi"},
	}

	var pushed int
	down := &recordCollector{fn: func() { pushed++ }}
	ag := NewAggregateGroup(req, funcs, vars, down)

	values := []int32{5, 1, 9}
	for i, v := range values {
		vars.Ref().SetInt4(vars.Index("val"), v)
		last := i == len(values)-1
		assert.True(t, ag.PushMember(last))
	}

	require.NoError(t, req.Errors.Err())
	assert.Equal(t, 1, pushed)
	assert.Equal(t, int64(15), vars.Ref().GetInt8(vars.Index("total")))
	assert.Equal(t, int64(3), vars.Ref().GetInt8(vars.Index("n")))
	assert.InDelta(t, 5.0, vars.Ref().GetFloat8(vars.Index("avg")), 0.0001)
	assert.Equal(t, int64(1), vars.Ref().GetInt8(vars.Index("lo")))
	assert.Equal(t, int64(9), vars.Ref().GetInt8(vars.Index("hi")))
}

func TestAggregateGroupCountDistinct(t *testing.T) {
	req, _, _ := newTestRequest(t)
	vars := newVars(
		varDecl{"val", record.I4(), false},
		varDecl{"distinctN", record.I8(), true},
	)

	funcs := []AggFunc{
		{Kind: AggCountDistinct, Arg: "val", Dest: "distinctN"},
	}

	down := &recordCollector{fn: func() {}}
	ag := NewAggregateGroup(req, funcs, vars, down)

	values := []int32{3, 1, 3, 2, 1, 1}
	for i, v := range values {
		vars.Ref().SetInt4(vars.Index("val"), v)
		last := i == len(values)-1
		assert.True(t, ag.PushMember(last))
	}

	require.NoError(t, req.Errors.Err())
	assert.Equal(t, int64(3), vars.Ref().GetInt8(vars.Index("distinctN")))
}

func TestAggregateGroupResetsBetweenGroups(t *testing.T) {
	req, _, _ := newTestRequest(t)
	vars := newVars(
		varDecl{"val", record.I4(), false},
		varDecl{"total", record.I8(), true},
	)
	funcs := []AggFunc{{Kind: AggSum, Arg: "val", Dest: "total"}}

	var totals []int64
	down := &recordCollector{fn: func() {
		totals = append(totals, vars.Ref().GetInt8(vars.Index("total")))
	}}
	ag := NewAggregateGroup(req, funcs, vars, down)

	vars.Ref().SetInt4(vars.Index("val"), 4)
	assert.True(t, ag.PushMember(true))

	vars.Ref().SetInt4(vars.Index("val"), 10)
	assert.True(t, ag.PushMember(true))

	require.NoError(t, req.Errors.Err())
	assert.Equal(t, []int64{4, 10}, totals)
}

func TestAggregateGroupSumOfEmptyGroupIsNull(t *testing.T) {
	req, _, _ := newTestRequest(t)
	vars := newVars(
		varDecl{"val", record.I4(), true},
		varDecl{"total", record.I8(), true},
	)
	funcs := []AggFunc{{Kind: AggSum, Arg: "val", Dest: "total"}}

	down := &recordCollector{fn: func() {}}
	ag := NewAggregateGroup(req, funcs, vars, down)

	vars.SetNull("val", true)
	assert.True(t, ag.PushMember(true))

	require.NoError(t, req.Errors.Err())
	assert.True(t, vars.IsNull("total"))
}
