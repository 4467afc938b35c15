package operators

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/queryrt/pkg/arena"
	"github.com/cuemby/queryrt/pkg/config"
	"github.com/cuemby/queryrt/pkg/plan"
	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/request"
	"github.com/cuemby/queryrt/pkg/storage"
	"github.com/cuemby/queryrt/pkg/vartable"
)

func newTestRequest(t *testing.T) (*request.Context, *storage.KVS, *storage.Provider) {
	t.Helper()
	db, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	provider := storage.NewProvider()
	req := request.New(config.Default(), arena.NewPool(), db, provider, nil, nil, 8)
	return req, db, provider
}

type varDecl struct {
	name     vartable.Variable
	ft       record.FieldType
	nullable bool
}

func newVars(decls ...varDecl) *vartable.Table {
	b := vartable.NewBuilder()
	for _, d := range decls {
		b.Declare(d.name, d.ft, d.nullable)
	}
	return b.Build(make([]byte, 256))
}

// userRowMeta/userKeyMeta describe a minimal two-column table: id int4
// (primary key), name char(8).
func userRowMeta() *record.Metadata {
	return record.NewMetadata([]record.FieldType{record.I4(), record.Char(8)}, []bool{false, false})
}

func userKeyMeta() *record.Metadata {
	return record.NewMetadata([]record.FieldType{record.I4()}, []bool{false})
}

func encodeUserKey(id int32) []byte {
	meta := userKeyMeta()
	buf := make([]byte, meta.RecordSize())
	ref := record.NewRef(buf, meta)
	ref.SetInt4(0, id)
	b := record.NewKeyBuilder()
	b.AppendField(ref, 0)
	return b.Bytes()
}

func encodeUserRow(meta *record.Metadata, id int32, name string) []byte {
	buf := make([]byte, meta.RecordSize())
	ref := record.NewRef(buf, meta)
	ref.SetInt4(0, id)
	ref.SetFixedChar(1, []byte(name))
	return buf
}

func setupUsersTable(t *testing.T, db *storage.KVS, provider *storage.Provider) (*storage.Table, *storage.Index, *record.Metadata) {
	t.Helper()
	rowMeta := userRowMeta()
	tbl := &storage.Table{Name: "users", Columns: rowMeta}
	idx := &storage.Index{Name: "users_pk", Table: tbl, Primary: true, Key: userKeyMeta()}
	provider.RegisterTable(tbl)
	provider.RegisterIndex(idx)
	require.NoError(t, db.EnsureIndex(idx.Name))
	return tbl, idx, rowMeta
}

func putUser(t *testing.T, db *storage.KVS, idx *storage.Index, rowMeta *record.Metadata, id int32, name string) {
	t.Helper()
	tx, err := db.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx.Put(idx.Name, encodeUserKey(id), encodeUserRow(rowMeta, id, name)))
	require.NoError(t, tx.Commit())
}

// setupUsersByName registers a secondary index over name, with the
// primary key embedded as a key suffix (name char(8), id int4).
func setupUsersByName(t *testing.T, db *storage.KVS, provider *storage.Provider, tbl *storage.Table) *storage.Index {
	t.Helper()
	secKeyMeta := record.NewMetadata([]record.FieldType{record.Char(8), record.I4()}, []bool{false, false})
	idx := &storage.Index{Name: "users_by_name", Table: tbl, Primary: false, Key: secKeyMeta, EmbeddedPKCols: []int{1}}
	provider.RegisterIndex(idx)
	require.NoError(t, db.EnsureIndex(idx.Name))
	return idx
}

func putUserByName(t *testing.T, db *storage.KVS, idx *storage.Index, name string, id int32) {
	t.Helper()
	nameMeta := record.NewMetadata([]record.FieldType{record.Char(8)}, []bool{false})
	nameBuf := make([]byte, nameMeta.RecordSize())
	nameRef := record.NewRef(nameBuf, nameMeta)
	nameRef.SetFixedChar(0, []byte(name))

	b := record.NewKeyBuilder()
	b.AppendField(nameRef, 0)
	b.AppendBytes(encodeUserKey(id))

	tx, err := db.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx.Put(idx.Name, b.Bytes(), []byte{}))
	require.NoError(t, tx.Commit())
}

func runToComplete(t *testing.T, task plan.OperatorTask) {
	t.Helper()
	for i := 0; i < 100000; i++ {
		switch task.Invoke() {
		case plan.Complete, plan.CompleteAndTeardown:
			return
		case plan.Proceed, plan.Yield:
			continue
		}
	}
	t.Fatal("operator task never completed")
}

// recordCollector is a RecordSink/GroupSink/CogroupSink stand-in that
// invokes fn on every Push/PushMember/PushCogroup and always keeps
// going.
type recordCollector struct {
	fn func()
}

func (c *recordCollector) Push() bool {
	c.fn()
	return true
}

func (c *recordCollector) PushMember(lastMember bool) bool {
	c.fn()
	return true
}
