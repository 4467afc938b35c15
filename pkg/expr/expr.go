package expr

import (
	"github.com/cuemby/queryrt/pkg/apperr"
	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/vartable"
)

// Expr is one node of a scalar expression tree.
type Expr interface {
	Eval(ctx *Context) Value
}

// Immediate is a compile-time literal.
type Immediate struct {
	Value Value
}

func (e Immediate) Eval(*Context) Value { return e.Value }

// VariableRef reads one slot of the task's variable table, or of the
// host-variable table when Host is set.
type VariableRef struct {
	Var  vartable.Variable
	Host bool
}

func (e VariableRef) Eval(ctx *Context) Value {
	tbl := ctx.Vars
	if e.Host {
		tbl = ctx.Host
	}
	if tbl == nil || !tbl.Has(e.Var) {
		return Error(apperr.New(apperr.ValueEvaluationException, "unbound variable reference"))
	}
	return readSlot(tbl, e.Var)
}

func readSlot(tbl *vartable.Table, v vartable.Variable) Value {
	idx := tbl.Index(v)
	if tbl.IsNull(v) {
		return Null()
	}
	ref := tbl.Ref()
	switch tbl.Metadata().At(idx).Kind {
	case record.Boolean:
		return Boolean(ref.GetBoolean(idx))
	case record.Int4:
		return Int4(ref.GetInt4(idx))
	case record.Int8:
		return Int8(ref.GetInt8(idx))
	case record.Float4:
		return Float4(ref.GetFloat4(idx))
	case record.Float8:
		return Float8(ref.GetFloat8(idx))
	case record.Character:
		if tbl.Metadata().At(idx).Varying {
			return Character(ref.GetVarying(idx))
		}
		return Character(ref.GetFixedChar(idx))
	default:
		return Error(apperr.New(apperr.UnsupportedRuntimeFeatureException, "unsupported variable type in expression"))
	}
}

// UnaryOp tags the operator of a Unary node.
type UnaryOp int

const (
	UnaryPlus UnaryOp = iota
	UnaryMinus
	UnaryNot
)

type Unary struct {
	Op      UnaryOp
	Operand Expr
}

func (e Unary) Eval(ctx *Context) Value {
	v := e.Operand.Eval(ctx)
	if v.IsError() || v.IsNull() {
		return v
	}
	switch e.Op {
	case UnaryPlus:
		return v
	case UnaryMinus:
		return negate(v)
	case UnaryNot:
		if v.Kind != KindBoolean {
			return Error(apperr.New(apperr.ValueEvaluationException, "NOT applied to non-boolean"))
		}
		return Boolean(!v.Bool)
	default:
		return Error(apperr.New(apperr.InternalError, "unknown unary operator"))
	}
}

func negate(v Value) Value {
	switch v.Kind {
	case KindInt4:
		return Int4(-v.I4)
	case KindInt8:
		return Int8(-v.I8)
	case KindFloat4:
		return Float4(-v.F4)
	case KindFloat8:
		return Float8(-v.F8)
	default:
		return Error(apperr.New(apperr.ValueEvaluationException, "negation applied to non-numeric"))
	}
}

// BinaryOp tags the arithmetic operator of a Binary node.
type BinaryOp int

const (
	Add BinaryOp = iota
	Subtract
	Multiply
	Divide
	Modulo
	And
	Or
)

type Binary struct {
	Op          BinaryOp
	Left, Right Expr
}

func (e Binary) Eval(ctx *Context) Value {
	l := e.Left.Eval(ctx)
	if l.IsError() {
		return l
	}
	r := e.Right.Eval(ctx)
	if r.IsError() {
		return r
	}

	switch e.Op {
	case And, Or:
		return evalLogical(e.Op, l, r)
	}

	if l.IsNull() || r.IsNull() {
		return Null()
	}
	return evalArithmetic(e.Op, l, r)
}

func evalLogical(op BinaryOp, l, r Value) Value {
	// SQL three-valued logic: AND is false if either side is false even
	// when the other is null; OR is true if either side is true.
	if l.Kind != KindNull && l.Kind != KindBoolean {
		return Error(apperr.New(apperr.ValueEvaluationException, "logical operator applied to non-boolean"))
	}
	if r.Kind != KindNull && r.Kind != KindBoolean {
		return Error(apperr.New(apperr.ValueEvaluationException, "logical operator applied to non-boolean"))
	}
	switch op {
	case And:
		if (l.Kind == KindBoolean && !l.Bool) || (r.Kind == KindBoolean && !r.Bool) {
			return Boolean(false)
		}
		if l.IsNull() || r.IsNull() {
			return Null()
		}
		return Boolean(l.Bool && r.Bool)
	case Or:
		if (l.Kind == KindBoolean && l.Bool) || (r.Kind == KindBoolean && r.Bool) {
			return Boolean(true)
		}
		if l.IsNull() || r.IsNull() {
			return Null()
		}
		return Boolean(l.Bool || r.Bool)
	default:
		return Error(apperr.New(apperr.InternalError, "unknown logical operator"))
	}
}

func evalArithmetic(op BinaryOp, l, r Value) Value {
	// integer fast path: both sides plain integers; every operator,
	// including divide (truncating) and modulo, stays in integers.
	if li, lok := l.asInt8(); lok {
		if ri, rok := r.asInt8(); rok && l.Kind != KindFloat4 && l.Kind != KindFloat8 && r.Kind != KindFloat4 && r.Kind != KindFloat8 {
			switch op {
			case Add:
				return widenInt(l, r, li+ri)
			case Subtract:
				return widenInt(l, r, li-ri)
			case Multiply:
				return widenInt(l, r, li*ri)
			case Divide:
				if ri == 0 {
					return Error(apperr.New(apperr.ValueEvaluationException, "division by zero"))
				}
				return widenInt(l, r, li/ri)
			case Modulo:
				if ri == 0 {
					return Error(apperr.New(apperr.ValueEvaluationException, "division by zero"))
				}
				return widenInt(l, r, li%ri)
			}
		}
	}

	lf, lok := l.asFloat8()
	rf, rok := r.asFloat8()
	if !lok || !rok {
		return Error(apperr.New(apperr.ValueEvaluationException, "arithmetic applied to non-numeric"))
	}
	switch op {
	case Add:
		return Float8(lf + rf)
	case Subtract:
		return Float8(lf - rf)
	case Multiply:
		return Float8(lf * rf)
	case Divide:
		if rf == 0 {
			return Error(apperr.New(apperr.ValueEvaluationException, "division by zero"))
		}
		return Float8(lf / rf)
	default:
		return Error(apperr.New(apperr.ValueEvaluationException, "unsupported arithmetic on floating point"))
	}
}

// widenInt returns Int8 unless both operands were Int4, matching the
// usual narrowest-common-type promotion.
func widenInt(l, r Value, result int64) Value {
	if l.Kind == KindInt4 && r.Kind == KindInt4 {
		return Int4(int32(result))
	}
	return Int8(result)
}

// CompareOp tags a Compare node's relational operator.
type CompareOp int

const (
	Eq CompareOp = iota
	Neq
	Lt
	Lte
	Gt
	Gte
)

type Compare struct {
	Op          CompareOp
	Left, Right Expr
}

func (e Compare) Eval(ctx *Context) Value {
	l := e.Left.Eval(ctx)
	if l.IsError() {
		return l
	}
	r := e.Right.Eval(ctx)
	if r.IsError() {
		return r
	}
	if l.IsNull() || r.IsNull() {
		return Null()
	}

	if l.Kind == KindCharacter && r.Kind == KindCharacter {
		return Boolean(compareCharacter(e.Op, l.Str, r.Str))
	}

	lf, lok := l.asFloat8()
	rf, rok := r.asFloat8()
	if !lok || !rok {
		return Error(apperr.New(apperr.ValueEvaluationException, "comparison applied to incompatible types"))
	}
	switch e.Op {
	case Eq:
		return Boolean(lf == rf)
	case Neq:
		return Boolean(lf != rf)
	case Lt:
		return Boolean(lf < rf)
	case Lte:
		return Boolean(lf <= rf)
	case Gt:
		return Boolean(lf > rf)
	case Gte:
		return Boolean(lf >= rf)
	default:
		return Error(apperr.New(apperr.InternalError, "unknown compare operator"))
	}
}

func compareCharacter(op CompareOp, l, r []byte) bool {
	c := bytesCompare(l, r)
	switch op {
	case Eq:
		return c == 0
	case Neq:
		return c != 0
	case Lt:
		return c < 0
	case Lte:
		return c <= 0
	case Gt:
		return c > 0
	case Gte:
		return c >= 0
	default:
		return false
	}
}

func bytesCompare(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// IsNullPredicate tests Operand's nullity (negated for IS NOT NULL).
type IsNullPredicate struct {
	Operand Expr
	Negate  bool
}

func (e IsNullPredicate) Eval(ctx *Context) Value {
	v := e.Operand.Eval(ctx)
	if v.IsError() {
		return v
	}
	isNull := v.IsNull()
	if e.Negate {
		isNull = !isNull
	}
	return Boolean(isNull)
}

// Cast converts Operand's value to Target's kind, matching the engine's
// explicit CAST expression. Narrowing casts that lose precision are not
// validated — that belongs to the compiler, not the runtime evaluator.
type Cast struct {
	Target  record.FieldType
	Operand Expr
}

func (e Cast) Eval(ctx *Context) Value {
	v := e.Operand.Eval(ctx)
	if v.IsError() || v.IsNull() {
		return v
	}
	switch e.Target.Kind {
	case record.Int4:
		if i, ok := v.asInt8(); ok {
			return Int4(int32(i))
		}
		if f, ok := v.asFloat8(); ok {
			return Int4(int32(f))
		}
	case record.Int8:
		if i, ok := v.asInt8(); ok {
			return Int8(i)
		}
		if f, ok := v.asFloat8(); ok {
			return Int8(int64(f))
		}
	case record.Float4:
		if f, ok := v.asFloat8(); ok {
			return Float4(float32(f))
		}
	case record.Float8:
		if f, ok := v.asFloat8(); ok {
			return Float8(f)
		}
	case record.Boolean:
		if v.Kind == KindBoolean {
			return v
		}
	case record.Character:
		if v.Kind == KindCharacter {
			return v
		}
	}
	return Error(apperr.New(apperr.UnsupportedRuntimeFeatureException, "unsupported cast"))
}
