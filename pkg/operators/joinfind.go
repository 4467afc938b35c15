package operators

import (
	"github.com/cuemby/queryrt/pkg/expr"
	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/request"
	"github.com/cuemby/queryrt/pkg/storage"
	"github.com/cuemby/queryrt/pkg/vartable"
)

// JoinKind selects the combining behavior of join-find, join-scan and
// join (§4.6.3, §4.6.4, §4.6.9). Inner keeps only rows with a surviving
// match; left-outer additionally emits the upstream row once, with the
// inner side nulled, when no match survives; semi emits the upstream row
// at most once, as soon as any match survives, with the first surviving
// match's inner columns still bound in the variable table; anti emits
// the upstream row once, with the inner side nulled, only when no match
// survives at all.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeftOuter
	JoinSemi
	JoinAnti
)

// JoinFind is a RecordSink: for each upstream record already in the
// shared variable table, it builds an inner-key probe from KeyFields
// (each resolved against the current variable table, so the probe
// tracks the upstream row that triggered it), finds the matching inner
// row(s), merges their columns into Vars, optionally evaluates
// Condition, and invokes Down per surviving combination.
type JoinFind struct {
	Req       *request.Context
	Index     *storage.Index
	KeyFields []KeyField
	Bindings  []ColumnBinding
	Vars      *vartable.Table
	Condition expr.Expr
	Kind      JoinKind
	Down      RecordSink
}

func (j *JoinFind) Push() bool {
	key := BuildKey(j.KeyFields)

	tx, err := j.Req.DB.Begin(false)
	if err != nil {
		return fail(j.Req, err)
	}
	defer func() { _ = tx.Rollback() }()

	inclusivity := storage.Inclusive
	if !j.Index.Primary {
		inclusivity = storage.PrefixedInclusive
	}
	r := storage.Range{
		Lower: storage.Endpoint{Key: key, Inclusivity: inclusivity},
		Upper: storage.Endpoint{Key: key, Inclusivity: inclusivity},
	}
	cur, err := tx.Scan(j.Index.Name, r)
	if err != nil {
		return fail(j.Req, err)
	}

	matched := false
	for cur.Next() {
		row, err := resolveRow(j.Req, tx, j.Index, cur.Key(), cur.Value())
		if err != nil {
			return fail(j.Req, err)
		}
		ref := record.NewRef(row, j.Index.Table.Columns)
		if err := decodeColumns(ref, j.Vars, j.Bindings); err != nil {
			return fail(j.Req, err)
		}
		ok, err := evalCondition(j.Condition, j.Vars)
		if err != nil {
			return fail(j.Req, err)
		}
		if !ok {
			continue
		}

		matched = true
		if j.Kind == JoinSemi {
			return j.Down.Push()
		}
		if j.Kind == JoinAnti {
			continue
		}
		if !j.Down.Push() {
			return false
		}
	}

	switch j.Kind {
	case JoinLeftOuter, JoinAnti:
		if matched {
			return true
		}
		nullColumns(j.Vars, j.Bindings)
		return j.Down.Push()
	default:
		// inner drops the upstream row when unmatched; semi's
		// no-match case also drops it (no Push happened above).
		return true
	}
}
