package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/storage"
)

func TestJoinScanRangeBoundTracksUpstreamRow(t *testing.T) {
	req, db, provider := newTestRequest(t)
	_, idx, rowMeta := setupUsersTable(t, db, provider)
	putUser(t, db, idx, rowMeta, 1, "alice")
	putUser(t, db, idx, rowMeta, 2, "bob")
	putUser(t, db, idx, rowMeta, 3, "carol")

	vars := newVars(varDecl{"minID", record.I4(), false}, varDecl{"uid", record.I4(), false}, varDecl{"uname", record.Char(8), false})
	bindings := []ColumnBinding{{Source: 0, Dest: "uid"}, {Source: 1, Dest: "uname"}}

	lower := RangeBound{
		Fields:      []KeyField{func() (record.Ref, int) { return vars.Ref(), vars.Index("minID") }},
		Inclusivity: storage.Inclusive,
	}
	upper := RangeBound{}

	var ids []int32
	down := &recordCollector{fn: func() {
		ids = append(ids, vars.Ref().GetInt4(vars.Index("uid")))
	}}

	js := &JoinScan{Req: req, Index: idx, Lower: lower, Upper: upper, Bindings: bindings, Vars: vars, Kind: JoinInner, Down: down}

	vars.Ref().SetInt4(vars.Index("minID"), 2)
	assert.True(t, js.Push())
	require.NoError(t, req.Errors.Err())
	assert.Equal(t, []int32{2, 3}, ids)
}

func TestJoinScanUnboundedBothSidesScansEverything(t *testing.T) {
	req, db, provider := newTestRequest(t)
	_, idx, rowMeta := setupUsersTable(t, db, provider)
	putUser(t, db, idx, rowMeta, 1, "alice")
	putUser(t, db, idx, rowMeta, 2, "bob")

	vars := newVars(varDecl{"uid", record.I4(), false}, varDecl{"uname", record.Char(8), false})
	bindings := []ColumnBinding{{Source: 0, Dest: "uid"}, {Source: 1, Dest: "uname"}}

	seen := 0
	down := &recordCollector{fn: func() { seen++ }}
	js := &JoinScan{Req: req, Index: idx, Lower: RangeBound{}, Upper: RangeBound{}, Bindings: bindings, Vars: vars, Kind: JoinInner, Down: down}

	assert.True(t, js.Push())
	require.NoError(t, req.Errors.Err())
	assert.Equal(t, 2, seen)
}

func TestJoinScanAntiEmitsOnlyWhenRangeEmpty(t *testing.T) {
	req, db, provider := newTestRequest(t)
	_, idx, rowMeta := setupUsersTable(t, db, provider)
	putUser(t, db, idx, rowMeta, 1, "alice")

	vars := newVars(varDecl{"minID", record.I4(), false}, varDecl{"uid", record.I4(), true}, varDecl{"uname", record.Char(8), true})
	bindings := []ColumnBinding{{Source: 0, Dest: "uid"}, {Source: 1, Dest: "uname"}}
	lower := RangeBound{
		Fields:      []KeyField{func() (record.Ref, int) { return vars.Ref(), vars.Index("minID") }},
		Inclusivity: storage.Inclusive,
	}

	calls := 0
	down := &recordCollector{fn: func() { calls++ }}
	js := &JoinScan{Req: req, Index: idx, Lower: lower, Upper: RangeBound{}, Bindings: bindings, Vars: vars, Kind: JoinAnti, Down: down}

	vars.Ref().SetInt4(vars.Index("minID"), 1)
	assert.True(t, js.Push())
	assert.Equal(t, 0, calls)

	vars.Ref().SetInt4(vars.Index("minID"), 5)
	assert.True(t, js.Push())
	assert.Equal(t, 1, calls)

	require.NoError(t, req.Errors.Err())
}
