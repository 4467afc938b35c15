package operators

import (
	"github.com/cuemby/queryrt/pkg/expr"
	"github.com/cuemby/queryrt/pkg/request"
	"github.com/cuemby/queryrt/pkg/vartable"
)

// Filter is a RecordSink that evaluates Condition over the shared
// variable table and forwards to Down only when it is definitely true
// (§4.6.5): null or false silently drops the record without stopping
// the upstream; an evaluation error records the error and stops it.
type Filter struct {
	Req       *request.Context
	Condition expr.Expr
	Vars      *vartable.Table
	Down      RecordSink
}

func (f *Filter) Push() bool {
	ok, err := evalCondition(f.Condition, f.Vars)
	if err != nil {
		return fail(f.Req, err)
	}
	if !ok {
		return true
	}
	return f.Down.Push()
}
