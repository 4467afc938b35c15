// Package storage implements the KVS contract the engine depends on: a
// cursor/iterator and put/get/delete interface over BoltDB buckets, plus
// a storage provider that resolves table/index/sequence names to their
// physical handles. The underlying KVS engine itself — compaction,
// replication, on-disk format — is out of scope; this package only
// shapes BoltDB to the cursor contract relational operators expect.
package storage

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/cuemby/queryrt/pkg/apperr"
	bolt "go.etcd.io/bbolt"
)

// Inclusivity tags how a Range endpoint bounds a scan.
type Inclusivity int

const (
	Unbound Inclusivity = iota
	Inclusive
	Exclusive
	PrefixedInclusive
	PrefixedExclusive
)

// Endpoint is one bound of a scan range: a key prefix plus how it
// includes or excludes keys at that boundary.
type Endpoint struct {
	Key         []byte
	Inclusivity Inclusivity
}

// Range is a pair of endpoints bounding a KVS scan.
type Range struct {
	Lower Endpoint
	Upper Endpoint
}

// KVS wraps a BoltDB database under the engine's content_get / put /
// delete / scan contract. Every index (primary or secondary) is a
// distinct bucket, created on demand.
type KVS struct {
	db *bolt.DB
}

// Open opens (creating if absent) the database file under dataDir.
func Open(dataDir string) (*KVS, error) {
	path := filepath.Join(dataDir, "queryrt.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	return &KVS{db: db}, nil
}

// Close closes the underlying database.
func (k *KVS) Close() error { return k.db.Close() }

// EnsureIndex creates the named bucket if it does not already exist.
func (k *KVS) EnsureIndex(name string) error {
	return k.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
}

// Tx is a KVS transaction: content_get/put/delete/scan all execute
// under one. Tx does not itself provide isolation beyond what BoltDB's
// single-writer model gives — the CC-engine contract (pkg/txn) is
// responsible for transaction lifecycle, sticky-worker affinity and
// termination refcounting above this layer.
type Tx struct {
	tx       *bolt.Tx
	writable bool
}

// Begin starts a transaction. A read-only Tx may run concurrently with
// others; a writable Tx serializes with every other writable Tx, same
// as BoltDB's single-writer guarantee.
func (k *KVS) Begin(writable bool) (*Tx, error) {
	tx, err := k.db.Begin(writable)
	if err != nil {
		return nil, apperr.Wrap(apperr.SQLExecutionException, err)
	}
	return &Tx{tx: tx, writable: writable}, nil
}

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return apperr.Wrap(apperr.SQLExecutionException, err)
	}
	return nil
}

func (t *Tx) Rollback() error { return t.tx.Rollback() }

func (t *Tx) bucket(index string) (*bolt.Bucket, error) {
	b := t.tx.Bucket([]byte(index))
	if b == nil {
		return nil, apperr.Newf(apperr.TargetNotFoundException, "no such index: %s", index)
	}
	return b, nil
}

// Get is content_get: a point lookup. ok is false if the key is absent.
func (t *Tx) Get(index string, key []byte) (value []byte, ok bool, err error) {
	b, err := t.bucket(index)
	if err != nil {
		return nil, false, err
	}
	v := b.Get(key)
	if v == nil {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Put is content_put: an upsert.
func (t *Tx) Put(index string, key, value []byte) error {
	if !t.writable {
		return apperr.New(apperr.InactiveTransactionException, "put on read-only transaction")
	}
	b, err := t.bucket(index)
	if err != nil {
		return err
	}
	return b.Put(key, value)
}

// Delete is content_delete.
func (t *Tx) Delete(index string, key []byte) error {
	if !t.writable {
		return apperr.New(apperr.InactiveTransactionException, "delete on read-only transaction")
	}
	b, err := t.bucket(index)
	if err != nil {
		return err
	}
	return b.Delete(key)
}

// Scan opens a Cursor over index bounded by r.
func (t *Tx) Scan(index string, r Range) (*Cursor, error) {
	b, err := t.bucket(index)
	if err != nil {
		return nil, err
	}
	return newCursor(b.Cursor(), r), nil
}

// Cursor is the KVS iterator contract: Next advances, Key/Value read the
// current position. A zero-value Cursor (never advanced) is exhausted.
type Cursor struct {
	c       *bolt.Cursor
	r       Range
	started bool
	done    bool
	key     []byte
	value   []byte
}

func newCursor(c *bolt.Cursor, r Range) *Cursor {
	return &Cursor{c: c, r: r}
}

// Next advances the cursor, returning false once the upper bound is
// reached or the index is exhausted.
func (cu *Cursor) Next() bool {
	if cu.done || cu.c == nil {
		return false
	}

	var k, v []byte
	if !cu.started {
		cu.started = true
		k, v = cu.seekLower()
	} else {
		k, v = cu.c.Next()
	}

	if k == nil || !cu.withinUpper(k) {
		cu.done = true
		cu.key, cu.value = nil, nil
		return false
	}
	cu.key, cu.value = k, v
	return true
}

func (cu *Cursor) seekLower() (k, v []byte) {
	lo := cu.r.Lower
	switch lo.Inclusivity {
	case Unbound:
		return cu.c.First()
	case Inclusive, PrefixedInclusive:
		k, v = cu.c.Seek(lo.Key)
		return k, v
	case Exclusive, PrefixedExclusive:
		k, v = cu.c.Seek(lo.Key)
		if k != nil && bytes.Equal(k, lo.Key) {
			return cu.c.Next()
		}
		return k, v
	default:
		return cu.c.First()
	}
}

func (cu *Cursor) withinUpper(k []byte) bool {
	up := cu.r.Upper
	switch up.Inclusivity {
	case Unbound:
		return true
	case Inclusive:
		return bytes.Compare(k, up.Key) <= 0
	case Exclusive, PrefixedExclusive:
		// a prefix's keyspace starts exactly at the prefix bytes
		// (lexicographically >=), so "stop before the prefix block"
		// and "stop before this exact key" coincide.
		return bytes.Compare(k, up.Key) < 0
	case PrefixedInclusive:
		bound := nextPrefix(up.Key)
		return bound == nil || bytes.Compare(k, bound) < 0
	default:
		return true
	}
}

// nextPrefix returns the smallest key strictly greater than every key
// sharing prefix p, by incrementing its last non-0xFF byte and
// truncating any trailing 0xFF bytes. A prefix of all 0xFF bytes (or
// empty) has no upper bound.
func nextPrefix(p []byte) []byte {
	out := append([]byte(nil), p...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil // unbounded above
}

// Key returns the current entry's key. Valid only after Next returned true.
func (cu *Cursor) Key() []byte { return cu.key }

// Value returns the current entry's value. Valid only after Next
// returned true.
func (cu *Cursor) Value() []byte { return cu.value }
