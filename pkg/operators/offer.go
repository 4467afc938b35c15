package operators

import (
	"github.com/cespare/xxhash/v2"

	"github.com/cuemby/queryrt/pkg/exchange"
	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/request"
	"github.com/cuemby/queryrt/pkg/vartable"
)

// Offer is a RecordSink that writes the current variable-table record
// into one exchange partition, hash-partitioned on the declared key
// columns (§4.6.10). The key and value records are built fresh from the
// variable table on every Push, scratch-allocated from the request's
// per-task arena.
type Offer struct {
	Req *request.Context

	KeyMeta       *record.Metadata
	KeyBindings   []FieldBinding
	ValueMeta     *record.Metadata
	ValueBindings []FieldBinding

	Vars    *vartable.Table
	Writers []*exchange.Writer // one per downstream partition
}

func (o *Offer) Push() bool {
	if o.Req.Failed() {
		return false
	}

	keyBuf := o.Req.Arena.Allocate(o.KeyMeta.RecordSize(), 8)
	key := record.NewRef(keyBuf, o.KeyMeta)
	if err := encodeColumns(key, o.Vars, o.KeyBindings); err != nil {
		return fail(o.Req, err)
	}

	valBuf := o.Req.Arena.Allocate(o.ValueMeta.RecordSize(), 8)
	value := record.NewRef(valBuf, o.ValueMeta)
	if err := encodeColumns(value, o.Vars, o.ValueBindings); err != nil {
		return fail(o.Req, err)
	}

	o.Writers[partitionOf(keyBuf, len(o.Writers))].Put(key.Bytes(), value.Bytes())
	return true
}

// partitionOf hashes key into [0, n). n must be at least 1.
func partitionOf(key []byte, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64(key) % uint64(n))
}
