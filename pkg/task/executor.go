package task

import (
	"github.com/cuemby/queryrt/pkg/expr"
	"github.com/cuemby/queryrt/pkg/request"
)

// Executor is the statement-specific body a write or load task runs
// under the request's transaction.
type Executor interface {
	Run(req *request.Context) error
}

// Prepared is a compiled statement ready to be resolved against a
// concrete parameter set.
type Prepared struct {
	Resolve func(params []expr.Value) (Executor, error)
}

// Statement is the payload of a Resolve task: a prepared statement,
// its call-site parameters, and the execute_async hook that submits
// the resolved Executor as its own write/load task.
type Statement struct {
	Prepared *Prepared
	Params   []expr.Value
	Submit   func(req *request.Context, exec Executor) error
}
