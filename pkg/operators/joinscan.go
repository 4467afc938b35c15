package operators

import (
	"github.com/cuemby/queryrt/pkg/expr"
	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/request"
	"github.com/cuemby/queryrt/pkg/storage"
	"github.com/cuemby/queryrt/pkg/vartable"
)

// RangeBound builds one endpoint of a join-scan range from the current
// variable table. An empty Fields leaves the endpoint unbound (an
// open-ended scan on that side).
type RangeBound struct {
	Fields      []KeyField
	Inclusivity storage.Inclusivity
}

func (b RangeBound) endpoint() storage.Endpoint {
	if len(b.Fields) == 0 {
		return storage.Endpoint{Inclusivity: storage.Unbound}
	}
	return storage.Endpoint{Key: BuildKey(b.Fields), Inclusivity: b.Inclusivity}
}

// JoinScan is join-find's range-probe sibling (§4.6.4): rather than one
// exact inner key, each upstream record derives a (possibly open-ended)
// range over the inner index, re-evaluated from the current variable
// table on every Push so bounds that reference upstream columns track
// the upstream row that triggered them.
type JoinScan struct {
	Req       *request.Context
	Index     *storage.Index
	Lower     RangeBound
	Upper     RangeBound
	Bindings  []ColumnBinding
	Vars      *vartable.Table
	Condition expr.Expr
	Kind      JoinKind
	Down      RecordSink
}

func (j *JoinScan) Push() bool {
	tx, err := j.Req.DB.Begin(false)
	if err != nil {
		return fail(j.Req, err)
	}
	defer func() { _ = tx.Rollback() }()

	r := storage.Range{Lower: j.Lower.endpoint(), Upper: j.Upper.endpoint()}
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
		return true
	}
}
