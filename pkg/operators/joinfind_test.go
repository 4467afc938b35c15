package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/queryrt/pkg/record"
)

func TestJoinFindInnerKeepsOnlyMatches(t *testing.T) {
	req, db, provider := newTestRequest(t)
	_, idx, rowMeta := setupUsersTable(t, db, provider)
	putUser(t, db, idx, rowMeta, 1, "alice")

	vars := newVars(varDecl{"fk", record.I4(), false}, varDecl{"uid", record.I4(), false}, varDecl{"uname", record.Char(8), false})
	bindings := []ColumnBinding{{Source: 0, Dest: "uid"}, {Source: 1, Dest: "uname"}}
	keyFields := []KeyField{
		func() (record.Ref, int) { return vars.Ref(), vars.Index("fk") },
	}

	var matched []string
	down := &recordCollector{fn: func() {
		matched = append(matched, string(vars.Ref().GetFixedChar(vars.Index("uname"))))
	}}

	jf := &JoinFind{Req: req, Index: idx, KeyFields: keyFields, Bindings: bindings, Vars: vars, Kind: JoinInner, Down: down}

	vars.Ref().SetInt4(vars.Index("fk"), 1)
	assert.True(t, jf.Push())
	require.NoError(t, req.Errors.Err())
	assert.Equal(t, []string{"alice   "}, matched)

	matched = nil
	vars.Ref().SetInt4(vars.Index("fk"), 99)
	assert.True(t, jf.Push())
	require.NoError(t, req.Errors.Err())
	assert.Empty(t, matched)
}

func TestJoinFindLeftOuterEmitsNullOnce(t *testing.T) {
	req, db, provider := newTestRequest(t)
	_, idx, rowMeta := setupUsersTable(t, db, provider)
	putUser(t, db, idx, rowMeta, 1, "alice")

	vars := newVars(varDecl{"fk", record.I4(), false}, varDecl{"uid", record.I4(), true}, varDecl{"uname", record.Char(8), true})
	bindings := []ColumnBinding{{Source: 0, Dest: "uid"}, {Source: 1, Dest: "uname"}}
	keyFields := []KeyField{
		func() (record.Ref, int) { return vars.Ref(), vars.Index("fk") },
	}

	calls := 0
	var sawNull bool
	down := &recordCollector{fn: func() {
		calls++
		sawNull = vars.IsNull("uname")
	}}

	jf := &JoinFind{Req: req, Index: idx, KeyFields: keyFields, Bindings: bindings, Vars: vars, Kind: JoinLeftOuter, Down: down}

	vars.Ref().SetInt4(vars.Index("fk"), 99)
	assert.True(t, jf.Push())
	require.NoError(t, req.Errors.Err())
	assert.Equal(t, 1, calls)
	assert.True(t, sawNull)
}

func TestJoinFindSemiEmitsAtMostOnce(t *testing.T) {
	req, db, provider := newTestRequest(t)
	tbl, primary, rowMeta := setupUsersTable(t, db, provider)
	putUser(t, db, primary, rowMeta, 1, "alice")
	putUser(t, db, primary, rowMeta, 2, "alice")

	secIdx := setupUsersByName(t, db, provider, tbl)
	putUserByName(t, db, secIdx, "alice", 1)
	putUserByName(t, db, secIdx, "alice", 2)

	vars := newVars(varDecl{"name", record.Char(8), false}, varDecl{"uid", record.I4(), false}, varDecl{"uname", record.Char(8), false})
	bindings := []ColumnBinding{{Source: 0, Dest: "uid"}, {Source: 1, Dest: "uname"}}
	keyFields := []KeyField{
		func() (record.Ref, int) { return vars.Ref(), vars.Index("name") },
	}

	calls := 0
	down := &recordCollector{fn: func() { calls++ }}

	jf := &JoinFind{Req: req, Index: secIdx, KeyFields: keyFields, Bindings: bindings, Vars: vars, Kind: JoinSemi, Down: down}

	vars.Ref().SetFixedChar(vars.Index("name"), []byte("alice"))
	assert.True(t, jf.Push())
	require.NoError(t, req.Errors.Err())
	assert.Equal(t, 1, calls)
}

func TestJoinFindAntiEmitsOnlyWhenNoMatch(t *testing.T) {
	req, db, provider := newTestRequest(t)
	_, idx, rowMeta := setupUsersTable(t, db, provider)
	putUser(t, db, idx, rowMeta, 1, "alice")

	vars := newVars(varDecl{"fk", record.I4(), false}, varDecl{"uid", record.I4(), true}, varDecl{"uname", record.Char(8), true})
	bindings := []ColumnBinding{{Source: 0, Dest: "uid"}, {Source: 1, Dest: "uname"}}
	keyFields := []KeyField{
		func() (record.Ref, int) { return vars.Ref(), vars.Index("fk") },
	}

	calls := 0
	down := &recordCollector{fn: func() { calls++ }}
	jf := &JoinFind{Req: req, Index: idx, KeyFields: keyFields, Bindings: bindings, Vars: vars, Kind: JoinAnti, Down: down}

	vars.Ref().SetInt4(vars.Index("fk"), 1)
	assert.True(t, jf.Push())
	assert.Equal(t, 0, calls)

	vars.Ref().SetInt4(vars.Index("fk"), 99)
	assert.True(t, jf.Push())
	assert.Equal(t, 1, calls)

	require.NoError(t, req.Errors.Err())
}
