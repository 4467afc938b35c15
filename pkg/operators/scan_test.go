package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/storage"
)

func TestScanUnboundedPrimary(t *testing.T) {
	req, db, provider := newTestRequest(t)
	_, idx, _ := setupUsersTable(t, db, provider)
	putUser(t, db, idx, userRowMeta(), 2, "bob")
	putUser(t, db, idx, userRowMeta(), 1, "alice")

	vars := newVars(varDecl{"id", record.I4(), false}, varDecl{"name", record.Char(8), false})
	bindings := []ColumnBinding{{Source: 0, Dest: "id"}, {Source: 1, Dest: "name"}}

	var ids []int32
	down := &recordCollector{fn: func() {
		ids = append(ids, vars.Ref().GetInt4(vars.Index("id")))
	}}

	s := NewScan(req, idx, storage.Range{}, bindings, vars, down, false, false)
	runToComplete(t, s)

	require.NoError(t, req.Errors.Err())
	assert.Equal(t, []int32{1, 2}, ids)
}

func TestScanSecondaryChasesToPrimary(t *testing.T) {
	req, db, provider := newTestRequest(t)
	tbl, primary, rowMeta := setupUsersTable(t, db, provider)
	putUser(t, db, primary, rowMeta, 1, "alice")
	putUser(t, db, primary, rowMeta, 2, "bob")

	secIdx := setupUsersByName(t, db, provider, tbl)
	putUserByName(t, db, secIdx, "alice", 1)
	putUserByName(t, db, secIdx, "bob", 2)

	vars := newVars(varDecl{"id", record.I4(), false}, varDecl{"name", record.Char(8), false})
	bindings := []ColumnBinding{{Source: 0, Dest: "id"}, {Source: 1, Dest: "name"}}

	var ids []int32
	down := &recordCollector{fn: func() {
		ids = append(ids, vars.Ref().GetInt4(vars.Index("id")))
	}}

	s := NewScan(req, secIdx, storage.Range{}, bindings, vars, down, false, false)
	runToComplete(t, s)

	require.NoError(t, req.Errors.Err())
	assert.Equal(t, []int32{1, 2}, ids)
}

func TestScanDownstreamStopsEarly(t *testing.T) {
	req, db, provider := newTestRequest(t)
	_, idx, rowMeta := setupUsersTable(t, db, provider)
	putUser(t, db, idx, rowMeta, 1, "alice")
	putUser(t, db, idx, rowMeta, 2, "bob")

	vars := newVars(varDecl{"id", record.I4(), false}, varDecl{"name", record.Char(8), false})
	bindings := []ColumnBinding{{Source: 0, Dest: "id"}, {Source: 1, Dest: "name"}}

	seen := 0
	down := &stopAfterN{limit: 1, fn: func() { seen++ }}

	s := NewScan(req, idx, storage.Range{}, bindings, vars, down, false, false)
	runToComplete(t, s)

	require.NoError(t, req.Errors.Err())
	assert.Equal(t, 1, seen)
}

type stopAfterN struct {
	limit int
	count int
	fn    func()
}

func (s *stopAfterN) Push() bool {
	s.fn()
	s.count++
	return s.count < s.limit
}
