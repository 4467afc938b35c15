package expr

import (
	"testing"

	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/vartable"
	"github.com/stretchr/testify/assert"
)

func buildVars(t *testing.T) *vartable.Table {
	t.Helper()
	b := vartable.NewBuilder().
		Declare("a", record.I4(), false).
		Declare("b", record.I4(), true)
	meta := record.NewMetadata([]record.FieldType{record.I4(), record.I4()}, []bool{false, true})
	tbl := b.Build(make([]byte, meta.RecordSize()))
	tbl.Ref().SetInt4(tbl.Index("a"), 10)
	tbl.SetNull("b", true)
	return tbl
}

func TestImmediateAndVariableRef(t *testing.T) {
	ctx := &Context{Vars: buildVars(t)}

	assert.Equal(t, Int4(5), Immediate{Value: Int4(5)}.Eval(ctx))

	v := VariableRef{Var: "a"}.Eval(ctx)
	assert.Equal(t, int32(10), v.I4)

	n := VariableRef{Var: "b"}.Eval(ctx)
	assert.True(t, n.IsNull())

	unbound := VariableRef{Var: "missing"}.Eval(ctx)
	assert.True(t, unbound.IsError())
}

func TestBinaryArithmeticIntFastPath(t *testing.T) {
	ctx := &Context{}
	e := Binary{Op: Add, Left: Immediate{Int4(3)}, Right: Immediate{Int4(4)}}
	assert.Equal(t, Int4(7), e.Eval(ctx))
}

func TestBinaryDivisionByZero(t *testing.T) {
	ctx := &Context{}
	e := Binary{Op: Divide, Left: Immediate{Int4(1)}, Right: Immediate{Int4(0)}}
	assert.True(t, e.Eval(ctx).IsError())
}

func TestBinaryNullPropagates(t *testing.T) {
	ctx := &Context{}
	e := Binary{Op: Add, Left: Immediate{Int4(1)}, Right: Immediate{Null()}}
	assert.True(t, e.Eval(ctx).IsNull())
}

func TestLogicalAndShortCircuitsOnFalse(t *testing.T) {
	ctx := &Context{}
	e := Binary{Op: And, Left: Immediate{Boolean(false)}, Right: Immediate{Null()}}
	got := e.Eval(ctx)
	assert.Equal(t, KindBoolean, got.Kind)
	assert.False(t, got.Bool)
}

func TestCompareCharacter(t *testing.T) {
	ctx := &Context{}
	e := Compare{Op: Lt, Left: Immediate{Character([]byte("abc"))}, Right: Immediate{Character([]byte("abd"))}}
	got := e.Eval(ctx)
	assert.True(t, got.Bool)
}

func TestIsNullPredicate(t *testing.T) {
	ctx := &Context{Vars: buildVars(t)}
	assert.True(t, IsNullPredicate{Operand: VariableRef{Var: "b"}}.Eval(ctx).Bool)
	assert.True(t, IsNullPredicate{Operand: VariableRef{Var: "a"}, Negate: true}.Eval(ctx).Bool)
}

func TestCastIntToFloat(t *testing.T) {
	ctx := &Context{}
	got := Cast{Target: record.F8(), Operand: Immediate{Int4(5)}}.Eval(ctx)
	assert.Equal(t, 5.0, got.F8)
}
