package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestKVS(t *testing.T) *KVS {
	t.Helper()
	k, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Close() })
	require.NoError(t, k.EnsureIndex("t1"))
	return k
}

func TestPutGetDelete(t *testing.T) {
	k := openTestKVS(t)

	tx, err := k.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx.Put("t1", []byte("a"), []byte("1")))
	require.NoError(t, tx.Commit())

	tx, err = k.Begin(false)
	require.NoError(t, err)
	v, ok, err := tx.Get("t1", []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)
	require.NoError(t, tx.Rollback())

	tx, err = k.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx.Delete("t1", []byte("a")))
	require.NoError(t, tx.Commit())

	tx, err = k.Begin(false)
	require.NoError(t, err)
	_, ok, err = tx.Get("t1", []byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, tx.Rollback())
}

func seedKeys(t *testing.T, k *KVS, keys ...string) {
	t.Helper()
	tx, err := k.Begin(true)
	require.NoError(t, err)
	for _, key := range keys {
		require.NoError(t, tx.Put("t1", []byte(key), []byte(key)))
	}
	require.NoError(t, tx.Commit())
}

func scanKeys(t *testing.T, k *KVS, r Range) []string {
	t.Helper()
	tx, err := k.Begin(false)
	require.NoError(t, err)
	defer tx.Rollback()
	cur, err := tx.Scan("t1", r)
	require.NoError(t, err)
	var out []string
	for cur.Next() {
		out = append(out, string(cur.Key()))
	}
	return out
}

func TestScanUnbounded(t *testing.T) {
	k := openTestKVS(t)
	seedKeys(t, k, "a", "b", "c")
	assert.Equal(t, []string{"a", "b", "c"}, scanKeys(t, k, Range{}))
}

func TestScanInclusiveExclusiveBounds(t *testing.T) {
	k := openTestKVS(t)
	seedKeys(t, k, "a", "b", "c", "d")

	r := Range{
		Lower: Endpoint{Key: []byte("b"), Inclusivity: Inclusive},
		Upper: Endpoint{Key: []byte("d"), Inclusivity: Exclusive},
	}
	assert.Equal(t, []string{"b", "c"}, scanKeys(t, k, r))

	r2 := Range{
		Lower: Endpoint{Key: []byte("b"), Inclusivity: Exclusive},
		Upper: Endpoint{Key: []byte("d"), Inclusivity: Inclusive},
	}
	assert.Equal(t, []string{"c", "d"}, scanKeys(t, k, r2))
}

func TestScanPrefixedInclusiveCoversWholePrefix(t *testing.T) {
	k := openTestKVS(t)
	seedKeys(t, k, "ab0", "ab1", "ac0")

	r := Range{
		Lower: Endpoint{Key: []byte("ab"), Inclusivity: PrefixedInclusive},
		Upper: Endpoint{Key: []byte("ab"), Inclusivity: PrefixedInclusive},
	}
	assert.Equal(t, []string{"ab0", "ab1"}, scanKeys(t, k, r))
}

func TestProviderFindMissingReturnsTargetNotFound(t *testing.T) {
	p := NewProvider()
	_, err := p.FindTable("missing")
	require.Error(t, err)
}

func TestProviderRegisterAndFindPrimaryIndex(t *testing.T) {
	p := NewProvider()
	tbl := &Table{Name: "t"}
	p.RegisterTable(tbl)
	p.RegisterIndex(&Index{Name: "t_pk", Table: tbl, Primary: true})

	idx, err := p.FindPrimaryIndex("t")
	require.NoError(t, err)
	assert.Equal(t, "t_pk", idx.Name)
}

func TestTableLockIsStableAcrossCalls(t *testing.T) {
	p := NewProvider()
	a := p.TableLock("t")
	b := p.TableLock("t")
	assert.Same(t, a, b)
}
