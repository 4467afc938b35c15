package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/queryrt/pkg/expr"
	"github.com/cuemby/queryrt/pkg/record"
)

func TestFilterKeepsOnlyDefinitelyTrue(t *testing.T) {
	req, _, _ := newTestRequest(t)
	vars := newVars(varDecl{"id", record.I4(), false})

	cond := expr.Compare{
		Op:    expr.Gt,
		Left:  expr.VariableRef{Var: "id"},
		Right: expr.Immediate{Value: expr.Int4(1)},
	}

	passed := 0
	down := &recordCollector{fn: func() { passed++ }}
	f := &Filter{Req: req, Condition: cond, Vars: vars, Down: down}

	vars.Ref().SetInt4(vars.Index("id"), 1)
	assert.True(t, f.Push())
	assert.Equal(t, 0, passed)

	vars.Ref().SetInt4(vars.Index("id"), 2)
	assert.True(t, f.Push())
	assert.Equal(t, 1, passed)

	require.NoError(t, req.Errors.Err())
}

func TestFilterNilConditionAlwaysPasses(t *testing.T) {
	req, _, _ := newTestRequest(t)
	vars := newVars(varDecl{"id", record.I4(), false})

	passed := 0
	down := &recordCollector{fn: func() { passed++ }}
	f := &Filter{Req: req, Condition: nil, Vars: vars, Down: down}

	assert.True(t, f.Push())
	assert.Equal(t, 1, passed)
}

func TestFilterNullComparisonDrops(t *testing.T) {
	req, _, _ := newTestRequest(t)
	vars := newVars(varDecl{"id", record.I4(), true})

	cond := expr.Compare{
		Op:    expr.Eq,
		Left:  expr.VariableRef{Var: "id"},
		Right: expr.Immediate{Value: expr.Int4(1)},
	}

	passed := 0
	down := &recordCollector{fn: func() { passed++ }}
	f := &Filter{Req: req, Condition: cond, Vars: vars, Down: down}

	vars.SetNull("id", true)
	assert.True(t, f.Push())
	assert.Equal(t, 0, passed)
	require.NoError(t, req.Errors.Err())
}
