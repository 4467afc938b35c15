// Package expr evaluates takatori-style scalar expression trees
// (immediate, variable reference, unary, binary, compare, cast, is-null)
// over a variable table, producing a tagged Value with a fail state. An
// evaluation error cancels the operator invocation that triggered it —
// callers propagate Value.Err upward to the request context rather than
// panicking.
package expr

import "github.com/cuemby/queryrt/pkg/apperr"

// ValueKind tags the shape of an evaluation result.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindError
	KindBoolean
	KindInt4
	KindInt8
	KindFloat4
	KindFloat8
	KindCharacter
)

// Value is the discriminated union every expression node produces:
// exactly one of {a typed scalar, null, error}.
type Value struct {
	Kind ValueKind
	I4   int32
	I8   int64
	F4   float32
	F8   float64
	Bool bool
	Str  []byte
	Err  *apperr.Error
}

func Null() Value                  { return Value{Kind: KindNull} }
func Error(err *apperr.Error) Value { return Value{Kind: KindError, Err: err} }
func Boolean(v bool) Value         { return Value{Kind: KindBoolean, Bool: v} }
func Int4(v int32) Value           { return Value{Kind: KindInt4, I4: v} }
func Int8(v int64) Value           { return Value{Kind: KindInt8, I8: v} }
func Float4(v float32) Value       { return Value{Kind: KindFloat4, F4: v} }
func Float8(v float64) Value       { return Value{Kind: KindFloat8, F8: v} }
func Character(v []byte) Value     { return Value{Kind: KindCharacter, Str: v} }

func (v Value) IsNull() bool  { return v.Kind == KindNull }
func (v Value) IsError() bool { return v.Kind == KindError }

// asFloat8 widens any numeric kind to float64 for mixed-type arithmetic
// and comparison, matching the engine's implicit numeric promotion.
func (v Value) asFloat8() (float64, bool) {
	switch v.Kind {
	case KindInt4:
		return float64(v.I4), true
	case KindInt8:
		return float64(v.I8), true
	case KindFloat4:
		return float64(v.F4), true
	case KindFloat8:
		return v.F8, true
	default:
		return 0, false
	}
}

// asInt8 widens integer kinds to int64; floats are rejected since
// integer-only operators (bitwise, modulo) never implicitly truncate.
func (v Value) asInt8() (int64, bool) {
	switch v.Kind {
	case KindInt4:
		return int64(v.I4), true
	case KindInt8:
		return v.I8, true
	default:
		return 0, false
	}
}
