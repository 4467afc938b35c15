package operators

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"

	"github.com/cuemby/queryrt/pkg/apperr"
	"github.com/cuemby/queryrt/pkg/arena"
	"github.com/cuemby/queryrt/pkg/expr"
	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/request"
	"github.com/cuemby/queryrt/pkg/vartable"
)

// AggFuncKind names one of the declared aggregate functions (§4.6.8).
type AggFuncKind int

const (
	AggCount AggFuncKind = iota
	AggCountDistinct
	AggSum
	AggAvg
	AggMin
	AggMax
)

// AggFunc declares one running aggregate: which variable it reads per
// member (Arg is ignored, and every member counts, when Kind is
// AggCount with an empty Arg — count(*)) and which variable it writes
// its finalized value into.
type AggFunc struct {
	Kind AggFuncKind
	Arg  vartable.Variable
	Dest vartable.Variable
}

// aggState is one function's running state across a group's members.
type aggState struct {
	count    int64
	sum      expr.Value
	min, max expr.Value
	distinct [][]byte // sorted, for count$distinct's membership test
}

// AggregateGroup is a GroupSink: it accumulates each declared function's
// running state per member and, on the group's last member, finalizes
// every function into its destination variable and invokes Down. Each
// distinct-variant function keeps its own sorted scratch slice of seen
// encoded values in the request's scoped arena, released at the group
// boundary alongside every other per-group allocation.
type AggregateGroup struct {
	Req   *request.Context
	Funcs []AggFunc
	Vars  *vartable.Table
	Down  RecordSink

	states  []aggState
	cp      arena.Checkpoint
	started bool
}

func NewAggregateGroup(req *request.Context, funcs []AggFunc, vars *vartable.Table, down RecordSink) *AggregateGroup {
	return &AggregateGroup{Req: req, Funcs: funcs, Vars: vars, Down: down}
}

func (g *AggregateGroup) PushMember(lastMember bool) bool {
	if !g.started {
		g.states = make([]aggState, len(g.Funcs))
		g.cp = g.Req.VarArena.Checkpoint()
		g.started = true
	}

	for i, f := range g.Funcs {
		if err := g.accumulate(i, f); err != nil {
			g.reset()
			return fail(g.Req, err)
		}
	}

	if !lastMember {
		return true
	}

	for i, f := range g.Funcs {
		if err := g.finalize(i, f); err != nil {
			g.reset()
			return fail(g.Req, err)
		}
	}
	ok := g.Down.Push()
	g.reset()
	return ok
}

func (g *AggregateGroup) reset() {
	g.Req.VarArena.DeallocateAfter(g.cp)
	g.states = nil
	g.started = false
}

func (g *AggregateGroup) accumulate(i int, f AggFunc) error {
	s := &g.states[i]

	if f.Kind == AggCount && f.Arg == "" {
		s.count++
		return nil
	}

	v := (expr.VariableRef{Var: f.Arg}).Eval(exprContext(g.Vars))
	if v.IsError() {
		return v.Err
	}
	if v.IsNull() {
		return nil
	}

	switch f.Kind {
	case AggCount:
		s.count++
	case AggCountDistinct:
		if !g.seenOrRemember(s, v) {
			s.count++
		}
	case AggSum, AggAvg:
		if s.count == 0 {
			s.sum = v
		} else {
			s.sum = addValue(s.sum, v)
		}
		s.count++
	case AggMin:
		if s.count == 0 || lessValue(v, s.min) {
			s.min = v
		}
		s.count++
	case AggMax:
		if s.count == 0 || lessValue(s.max, v) {
			s.max = v
		}
		s.count++
	}
	return nil
}

// seenOrRemember reports whether key's encoding was already in s's
// sorted distinct set, inserting it (copied into the request's scoped
// arena) if not.
func (g *AggregateGroup) seenOrRemember(s *aggState, v expr.Value) bool {
	key := encodeDistinctValue(v)
	i := sort.Search(len(s.distinct), func(i int) bool { return bytes.Compare(s.distinct[i], key) >= 0 })
	if i < len(s.distinct) && bytes.Equal(s.distinct[i], key) {
		return true
	}
	stored := g.Req.VarArena.Allocate(len(key), 1)
	copy(stored, key)
	s.distinct = append(s.distinct, nil)
	copy(s.distinct[i+1:], s.distinct[i:])
	s.distinct[i] = stored
	return false
}

func (g *AggregateGroup) finalize(i int, f AggFunc) error {
	s := &g.states[i]
	switch f.Kind {
	case AggCount, AggCountDistinct:
		return writeValue(g.Vars, f.Dest, expr.Int8(s.count))
	case AggSum:
		if s.count == 0 {
			return writeValue(g.Vars, f.Dest, expr.Null())
		}
		return writeValue(g.Vars, f.Dest, s.sum)
	case AggAvg:
		if s.count == 0 {
			return writeValue(g.Vars, f.Dest, expr.Null())
		}
		return writeValue(g.Vars, f.Dest, divideValue(s.sum, s.count))
	case AggMin:
		if s.count == 0 {
			return writeValue(g.Vars, f.Dest, expr.Null())
		}
		return writeValue(g.Vars, f.Dest, s.min)
	case AggMax:
		if s.count == 0 {
			return writeValue(g.Vars, f.Dest, expr.Null())
		}
		return writeValue(g.Vars, f.Dest, s.max)
	default:
		return apperr.New(apperr.InternalError, "unknown aggregate function")
	}
}

func valueAsInt8(v expr.Value) (int64, bool) {
	switch v.Kind {
	case expr.KindInt4:
		return int64(v.I4), true
	case expr.KindInt8:
		return v.I8, true
	default:
		return 0, false
	}
}

func valueAsFloat8(v expr.Value) (float64, bool) {
	switch v.Kind {
	case expr.KindInt4:
		return float64(v.I4), true
	case expr.KindInt8:
		return float64(v.I8), true
	case expr.KindFloat4:
		return float64(v.F4), true
	case expr.KindFloat8:
		return v.F8, true
	default:
		return 0, false
	}
}

// addValue widens to Int8 when both operands are plain integers,
// otherwise to Float8, matching the expression evaluator's own
// promotion rule.
func addValue(acc, v expr.Value) expr.Value {
	if ai, aok := valueAsInt8(acc); aok {
		if vi, vok := valueAsInt8(v); vok {
			return expr.Int8(ai + vi)
		}
	}
	af, _ := valueAsFloat8(acc)
	vf, _ := valueAsFloat8(v)
	return expr.Float8(af + vf)
}

func divideValue(sum expr.Value, count int64) expr.Value {
	f, _ := valueAsFloat8(sum)
	return expr.Float8(f / float64(count))
}

func lessValue(a, b expr.Value) bool {
	if a.Kind == expr.KindCharacter && b.Kind == expr.KindCharacter {
		return bytes.Compare(a.Str, b.Str) < 0
	}
	af, _ := valueAsFloat8(a)
	bf, _ := valueAsFloat8(b)
	return af < bf
}

// encodeDistinctValue turns v into a byte key for the distinct set's
// sorted search. Floats encode by raw bit pattern: the resulting order
// is a consistent total order but not the numeric one, which is fine
// since the set only ever needs membership, never a range query.
func encodeDistinctValue(v expr.Value) []byte {
	switch v.Kind {
	case expr.KindInt4:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(v.I4))
		return tmp[:]
	case expr.KindInt8:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(v.I8))
		return tmp[:]
	case expr.KindFloat4:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], math.Float32bits(v.F4))
		return tmp[:]
	case expr.KindFloat8:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v.F8))
		return tmp[:]
	case expr.KindCharacter:
		return v.Str
	case expr.KindBoolean:
		if v.Bool {
			return []byte{1}
		}
		return []byte{0}
	default:
		return nil
	}
}

// writeValue stores v into vars's slot for dest, converting to dest's
// declared storage kind the same way an explicit CAST would.
func writeValue(vars *vartable.Table, dest vartable.Variable, v expr.Value) error {
	if v.IsNull() {
		vars.SetNull(dest, true)
		return nil
	}
	vars.SetNull(dest, false)
	idx := vars.Index(dest)
	ref := vars.Ref()
	switch vars.Metadata().At(idx).Kind {
	case record.Int4:
		i, ok := valueAsInt8(v)
		if !ok {
			return apperr.New(apperr.ValueEvaluationException, "aggregate result is not numeric")
		}
		ref.SetInt4(idx, int32(i))
	case record.Int8:
		i, ok := valueAsInt8(v)
		if !ok {
			f, fok := valueAsFloat8(v)
			if !fok {
				return apperr.New(apperr.ValueEvaluationException, "aggregate result is not numeric")
			}
			i = int64(f)
		}
		ref.SetInt8(idx, i)
	case record.Float4:
		f, ok := valueAsFloat8(v)
		if !ok {
			return apperr.New(apperr.ValueEvaluationException, "aggregate result is not numeric")
		}
		ref.SetFloat4(idx, float32(f))
	case record.Float8:
		f, ok := valueAsFloat8(v)
		if !ok {
			return apperr.New(apperr.ValueEvaluationException, "aggregate result is not numeric")
		}
		ref.SetFloat8(idx, f)
	default:
		return apperr.New(apperr.UnsupportedRuntimeFeatureException, "unsupported aggregate destination type")
	}
	return nil
}
