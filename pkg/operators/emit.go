package operators

import (
	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/request"
	"github.com/cuemby/queryrt/pkg/vartable"
)

// Emit is a RecordSink that projects the current variable-table record
// into the request's result channel (§4.6.10). It returns false once
// the request has already failed or been cancelled, the same signal
// every other sink uses to stop its upstream promptly.
type Emit struct {
	Req      *request.Context
	Meta     *record.Metadata
	Bindings []FieldBinding
	Vars     *vartable.Table
}

func (e *Emit) Push() bool {
	buf := e.Req.Arena.Allocate(e.Meta.RecordSize(), 8)
	row := record.NewRef(buf, e.Meta)
	if err := encodeColumns(row, e.Vars, e.Bindings); err != nil {
		return fail(e.Req, err)
	}
	return e.Req.Emit(request.Row{Ref: row, Meta: e.Meta})
}
