package operators

import (
	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/request"
	"github.com/cuemby/queryrt/pkg/storage"
	"github.com/cuemby/queryrt/pkg/vartable"
)

// KeyField resolves one key field's encoded bytes at operator-invocation
// time (a host-variable placeholder, a variable-table read, or a
// literal), matching §4.6.1's "host-variable references in endpoints are
// resolved at operator-invocation time". KeyField is the common shape used
// by Find's probe key and Join-find/Join-scan's upstream-derived probes.
type KeyField func() (ref record.Ref, fieldIndex int)

// BuildKey encodes fields in order into a single probe key.
func BuildKey(fields []KeyField) []byte {
	b := record.NewKeyBuilder()
	for _, f := range fields {
		ref, idx := f()
		b.AppendField(ref, idx)
	}
	return b.Bytes()
}

// NewFind builds a Scan whose range is a single inclusive-both-endpoints
// probe over key, matching §4.6.2: for a primary index this finds at
// most one row; for a secondary index it finds every entry sharing key
// as a prefix, each chased to its primary row, in the secondary's order.
func NewFind(req *request.Context, index *storage.Index, key []byte, bindings []ColumnBinding, vars *vartable.Table, down RecordSink, sticky, inTx bool) *Scan {
	inclusivity := storage.Inclusive
	if !index.Primary {
		inclusivity = storage.PrefixedInclusive
	}
	r := storage.Range{
		Lower: storage.Endpoint{Key: key, Inclusivity: inclusivity},
		Upper: storage.Endpoint{Key: key, Inclusivity: inclusivity},
	}
	return NewScan(req, index, r, bindings, vars, down, sticky, inTx)
}
