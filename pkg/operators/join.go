package operators

import (
	"github.com/cuemby/queryrt/pkg/apperr"
	"github.com/cuemby/queryrt/pkg/exchange"
	"github.com/cuemby/queryrt/pkg/expr"
	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/request"
	"github.com/cuemby/queryrt/pkg/vartable"
)

// Input indices into a two-way cogroup tuple, the shape Join consumes.
const (
	joinLeft  = 0
	joinRight = 1
)

// Join is a CogroupSink: it consumes one cogroup tuple of two inputs
// and produces their cartesian product, filtered by an optional
// condition evaluated on the cross-product itself (§4.6.9). The right
// side is materialized once per tuple so it can be replayed against
// every left member; MemberIterator's GetMember slices alias the
// cogroup's own reader buffers and stay valid for the tuple's duration.
type Join struct {
	Req *request.Context

	LeftMeta      *record.Metadata
	LeftBindings  []ColumnBinding
	RightMeta     *record.Metadata
	RightBindings []ColumnBinding

	Vars      *vartable.Table
	Condition expr.Expr
	Kind      JoinKind
	Down      RecordSink
}

func (j *Join) PushCogroup(cg *exchange.Cogroup) bool {
	left := cg.Input(joinLeft)
	right := cg.Input(joinRight)
	rightRows := materializeMembers(right)

	switch j.Kind {
	case JoinInner:
		if len(rightRows) == 0 {
			return true
		}
		return j.forEachLeft(left, rightRows, func(matched bool) bool { return true })
	case JoinLeftOuter:
		return j.forEachLeft(left, rightRows, func(matched bool) bool {
			if matched {
				return true
			}
			nullColumns(j.Vars, j.RightBindings)
			return j.Down.Push()
		})
	case JoinSemi:
		return j.forEachLeft(left, rightRows, func(matched bool) bool {
			if !matched {
				return true
			}
			return j.Down.Push()
		})
	case JoinAnti:
		return j.forEachLeft(left, rightRows, func(matched bool) bool {
			if matched {
				return true
			}
			nullColumns(j.Vars, j.RightBindings)
			return j.Down.Push()
		})
	default:
		return fail(j.Req, apperr.New(apperr.InternalError, "unknown join kind"))
	}
}

// forEachLeft decodes each left member in turn, crosses it against
// rightRows (pushing downstream for every condition-satisfying pair for
// inner and left-outer; semi and anti stop at the first match), then
// calls onDone with whether any right row matched once the cross is
// complete. onDone is called for every left member and carries each
// kind's remaining push: left-outer and anti on no match, semi on a match.
func (j *Join) forEachLeft(left exchange.MemberIterator, rightRows [][]byte, onDone func(matched bool) bool) bool {
	for left.NextMember() {
		if err := decodeSide(left.GetMember(), j.LeftMeta, j.Vars, j.LeftBindings); err != nil {
			return fail(j.Req, err)
		}

		matched := false
		for _, r := range rightRows {
			if err := decodeSide(r, j.RightMeta, j.Vars, j.RightBindings); err != nil {
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
			if j.Kind == JoinInner || j.Kind == JoinLeftOuter {
				if !j.Down.Push() {
					return false
				}
			} else {
				// semi/anti only need to know a match exists.
				break
			}
		}

		if !onDone(matched) {
			return false
		}
	}
	return true
}

func materializeMembers(it exchange.MemberIterator) [][]byte {
	var rows [][]byte
	for it.NextMember() {
		rows = append(rows, it.GetMember())
	}
	return rows
}

func decodeSide(raw []byte, meta *record.Metadata, vars *vartable.Table, bindings []ColumnBinding) error {
	ref := record.NewRef(raw, meta)
	return decodeColumns(ref, vars, bindings)
}
