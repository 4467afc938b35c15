package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/request"
)

func TestEmitDeliversRowOnResultChannel(t *testing.T) {
	req, _, _ := newTestRequest(t)
	vars := newVars(varDecl{"id", record.I4(), false}, varDecl{"name", record.Char(8), false})

	meta := record.NewMetadata([]record.FieldType{record.I4(), record.Char(8)}, []bool{false, false})
	e := &Emit{
		Req:      req,
		Meta:     meta,
		Bindings: []FieldBinding{{Source: "id", Dest: 0}, {Source: "name", Dest: 1}},
		Vars:     vars,
	}

	vars.Ref().SetInt4(vars.Index("id"), 42)
	vars.Ref().SetFixedChar(vars.Index("name"), []byte("eve"))
	require.True(t, e.Push())

	var got request.Row
	select {
	case got = <-req.Results:
	default:
		t.Fatal("expected a row on the result channel")
	}
	assert.Equal(t, int32(42), got.Ref.GetInt4(0))
	assert.Equal(t, "eve     ", string(got.Ref.GetFixedChar(1)))
	require.NoError(t, req.Errors.Err())
}

func TestEmitReturnsFalseOnceRequestFailed(t *testing.T) {
	req, _, _ := newTestRequest(t)
	vars := newVars(varDecl{"id", record.I4(), false})
	meta := record.NewMetadata([]record.FieldType{record.I4()}, []bool{false})
	e := &Emit{Req: req, Meta: meta, Bindings: []FieldBinding{{Source: "id", Dest: 0}}, Vars: vars}

	req.Cancel()
	vars.Ref().SetInt4(vars.Index("id"), 1)
	assert.False(t, e.Push())
}
