// Package operators implements the relational operator tree (§4.6): scan,
// find, join-find, join-scan, filter, take-group, take-cogroup,
// aggregate-group, join, offer and emit. Every operator is one of three
// shapes — record, group or cogroup — and owns at most one downstream
// operator of the matching shape; downstream operators read the upstream's
// output out of the shared variable table rather than receiving it as a
// call argument, matching the "context carries the variable table" model.
package operators

import (
	"github.com/cuemby/queryrt/pkg/apperr"
	"github.com/cuemby/queryrt/pkg/exchange"
	"github.com/cuemby/queryrt/pkg/expr"
	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/request"
	"github.com/cuemby/queryrt/pkg/storage"
	"github.com/cuemby/queryrt/pkg/vartable"
)

// RecordSink is the downstream of a record operator: invoked once per
// record already written into the shared variable table. false aborts
// the producing operator's remaining iteration (an error was recorded,
// or a downstream limit/cancellation was reached).
type RecordSink interface {
	Push() bool
}

// GroupSink is the downstream of a group operator: invoked once per
// member, with lastMember set on the final member of each key.
type GroupSink interface {
	PushMember(lastMember bool) bool
}

// CogroupSink is the downstream of a cogroup operator: invoked once per
// distinct key across every input.
type CogroupSink interface {
	PushCogroup(cg *exchange.Cogroup) bool
}

// Discard is a RecordSink/GroupSink/CogroupSink that accepts everything;
// useful for a process step whose last operator is offer or emit and so
// has no further downstream.
type Discard struct{}

func (Discard) Push() bool                       { return true }
func (Discard) PushMember(lastMember bool) bool  { return true }
func (Discard) PushCogroup(cg *exchange.Cogroup) bool { return true }

// ColumnBinding maps one field of a source record (an index's primary or
// secondary value, or a join partner's variable table) onto a
// destination slot in the task's own variable table.
type ColumnBinding struct {
	Source int
	Dest   vartable.Variable
}

// FieldBinding is ColumnBinding's reverse: one variable-table slot onto
// a destination field index in a record being built from the variable
// table. Offer uses it to encode an exchange entry's key and value
// records from the current variable table.
type FieldBinding struct {
	Source vartable.Variable
	Dest   int
}

// fail records err on the request and returns false, the shared
// stop signal every operator's failure path returns.
func fail(req *request.Context, err error) bool {
	req.Errors.Set(err)
	return false
}

// decodeColumns copies each binding's field from src into dst's backing
// record, by kind, matching the engine's "decode only the needed
// columns" contract (§4.6.1 step 3).
func decodeColumns(src record.Ref, dst *vartable.Table, bindings []ColumnBinding) error {
	for _, cb := range bindings {
		if err := copyField(src, cb.Source, dst, cb.Dest); err != nil {
			return err
		}
	}
	return nil
}

// copyField copies one field from src at index i into dst's slot for v,
// preserving nullity.
func copyField(src record.Ref, i int, dst *vartable.Table, v vartable.Variable) error {
	idx := dst.Index(v)
	if src.Metadata().Nullable(i) && src.IsNull(i) {
		dst.SetNull(v, true)
		return nil
	}
	dst.SetNull(v, false)
	dr := dst.Ref()
	switch src.Metadata().At(i).Kind {
	case record.Boolean:
		dr.SetBoolean(idx, src.GetBoolean(i))
	case record.Int4:
		dr.SetInt4(idx, src.GetInt4(i))
	case record.Int8, record.Date:
		dr.SetInt8(idx, src.GetInt8(i))
	case record.Float4:
		dr.SetFloat4(idx, src.GetFloat4(i))
	case record.Float8:
		dr.SetFloat8(idx, src.GetFloat8(i))
	case record.Decimal:
		u, s := src.GetDecimal(i)
		dr.SetDecimal(idx, u, s)
	case record.Character, record.Octet:
		if src.Metadata().At(i).Varying {
			dr.SetVarying(idx, src.GetVarying(i))
		} else {
			dr.SetFixedChar(idx, src.GetFixedChar(i))
		}
	default:
		return apperr.New(apperr.UnsupportedRuntimeFeatureException, "unsupported column kind in decode")
	}
	return nil
}

// encodeColumns copies each binding's variable from src into dst's
// backing record, the reverse of decodeColumns, used by offer to build
// an exchange entry's key and value records from the variable table.
func encodeColumns(dst record.Ref, src *vartable.Table, bindings []FieldBinding) error {
	for _, fb := range bindings {
		if err := copyFieldToRecord(src, fb.Source, dst, fb.Dest); err != nil {
			return err
		}
	}
	return nil
}

func copyFieldToRecord(src *vartable.Table, v vartable.Variable, dst record.Ref, i int) error {
	if src.IsNull(v) {
		dst.SetNull(i, true)
		return nil
	}
	dst.SetNull(i, false)
	srcIdx := src.Index(v)
	sref := src.Ref()
	switch dst.Metadata().At(i).Kind {
	case record.Boolean:
		dst.SetBoolean(i, sref.GetBoolean(srcIdx))
	case record.Int4:
		dst.SetInt4(i, sref.GetInt4(srcIdx))
	case record.Int8, record.Date:
		dst.SetInt8(i, sref.GetInt8(srcIdx))
	case record.Float4:
		dst.SetFloat4(i, sref.GetFloat4(srcIdx))
	case record.Float8:
		dst.SetFloat8(i, sref.GetFloat8(srcIdx))
	case record.Decimal:
		u, s := sref.GetDecimal(srcIdx)
		dst.SetDecimal(i, u, s)
	case record.Character, record.Octet:
		if dst.Metadata().At(i).Varying {
			dst.SetVarying(i, sref.GetVarying(srcIdx))
		} else {
			dst.SetFixedChar(i, sref.GetFixedChar(srcIdx))
		}
	default:
		return apperr.New(apperr.UnsupportedRuntimeFeatureException, "unsupported column kind in encode")
	}
	return nil
}

// nullColumns sets every destination binding to null, used by
// left-outer join-find/join when no inner match exists.
func nullColumns(dst *vartable.Table, bindings []ColumnBinding) {
	for _, cb := range bindings {
		dst.SetNull(cb.Dest, true)
	}
}

// exprContext builds an evaluation context over vars alone; no
// host-variable table is attached.
func exprContext(vars *vartable.Table) *expr.Context {
	return &expr.Context{Vars: vars}
}

// evalCondition evaluates cond (nil always passes) over vars, collapsing
// SQL three-valued logic to the keep/drop decision filter and join
// operators share: only a definite true keeps the row, null or false
// drops it.
func evalCondition(cond expr.Expr, vars *vartable.Table) (bool, error) {
	if cond == nil {
		return true, nil
	}
	v := cond.Eval(exprContext(vars))
	if v.IsError() {
		return false, v.Err
	}
	return v.Kind == expr.KindBoolean && v.Bool, nil
}

// resolveRow resolves one index entry to its underlying stored row,
// chasing to the primary index and fetching there when idx is
// secondary, matching scan's "decode only after reaching the primary
// row" contract (§4.6.1).
func resolveRow(req *request.Context, tx *storage.Tx, idx *storage.Index, key, value []byte) ([]byte, error) {
	if idx.Primary {
		return value, nil
	}
	primary, err := req.Provider.FindPrimaryIndex(idx.Table.Name)
	if err != nil {
		return nil, err
	}
	pkKey := embeddedPrimaryKey(key, idx.EmbeddedPKCols, idx.Key)
	v, ok, err := tx.Get(primary.Name, pkKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.SecondaryIndexCorruptionException, "secondary entry has no primary row")
	}
	return v, nil
}
