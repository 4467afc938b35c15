package task

import (
	"errors"
	"testing"

	"github.com/cuemby/queryrt/pkg/apperr"
	"github.com/cuemby/queryrt/pkg/arena"
	"github.com/cuemby/queryrt/pkg/config"
	"github.com/cuemby/queryrt/pkg/dagctl"
	"github.com/cuemby/queryrt/pkg/expr"
	"github.com/cuemby/queryrt/pkg/job"
	"github.com/cuemby/queryrt/pkg/plan"
	"github.com/cuemby/queryrt/pkg/request"
	"github.com/cuemby/queryrt/pkg/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSubmitter runs submitted tasks breadth-first, avoiding recursive
// stack growth across resubmission/cascade chains.
type testSubmitter struct{ queue []*Task }

func (s *testSubmitter) Submit(t *Task) { s.queue = append(s.queue, t) }

func (s *testSubmitter) drain() {
	for len(s.queue) > 0 {
		t := s.queue[0]
		s.queue = s.queue[1:]
		t.Run(s)
	}
}

type stubOp struct {
	statuses []plan.TaskStatus
	i        int
	sticky   bool
	inTx     bool
}

func (s *stubOp) Invoke() plan.TaskStatus {
	st := s.statuses[s.i]
	if s.i < len(s.statuses)-1 {
		s.i++
	}
	return st
}
func (s *stubOp) Sticky() bool        { return s.sticky }
func (s *stubOp) InTransaction() bool { return s.inTx }

type stubFlow struct {
	n       int
	factory func() plan.OperatorTask
}

func (f stubFlow) CreateTasks() []plan.OperatorTask {
	tasks := make([]plan.OperatorTask, f.n)
	for i := range tasks {
		tasks[i] = f.factory()
	}
	return tasks
}
func (f stubFlow) CreatePretask(int) plan.OperatorTask { return f.factory() }

func completeOp() plan.OperatorTask { return &stubOp{statuses: []plan.TaskStatus{plan.Complete}} }

func newTestRequest(t *testing.T) *request.Context {
	t.Helper()
	j := job.New(1, -1, nil, nil)
	return request.New(config.Default(), arena.NewPool(), nil, nil, nil, j, 4)
}

func TestBootstrapDrivesLinearGraphToTeardown(t *testing.T) {
	a := plan.NewStep(1, plan.Process, 0, 1, func(*plan.Step) plan.Flow { return stubFlow{n: 1, factory: completeOp} })
	b := plan.NewStep(2, plan.Process, 1, 0, func(*plan.Step) plan.Flow { return stubFlow{n: 1, factory: completeOp} })
	plan.Connect(a.Outputs[0], b.Inputs[0])
	g := plan.NewGraph(a, b)

	var finished bool
	j := job.New(1, -1, nil, func(*job.Job) { finished = true })
	req := request.New(config.Default(), arena.NewPool(), nil, nil, nil, j, 1)
	rt := NewRuntime(g, j, req)

	sub := &testSubmitter{}
	rt.Bootstrap(sub)
	sub.drain()

	assert.True(t, finished)
	assert.True(t, j.Quiesced())
	assert.True(t, rt.Controller().AllDeactivated())
}

func TestWrappedTaskYieldsBeforeCompleting(t *testing.T) {
	op := &stubOp{statuses: []plan.TaskStatus{plan.Yield, plan.Complete}}
	j := job.New(1, -1, nil, nil)
	j.IncTaskCount()
	req := request.New(config.Default(), arena.NewPool(), nil, nil, nil, j, 1)
	rt := NewRuntime(plan.NewGraph(plan.NewStep(1, plan.Process, 0, 0, func(*plan.Step) plan.Flow { return stubFlow{} })), j, req)

	sub := &testSubmitter{}
	wt := &Task{Kind: Wrapped, Req: req, Job: j, Runtime: rt, Op: op, Ref: dagctl.TaskRef{StepID: 1, Index: 0}}
	wt.Run(sub)

	require.Len(t, sub.queue, 1, "yield resubmits itself once")
	sub.drain()
	assert.True(t, j.Quiesced())
}

func TestWrappedTaskUnderAbortingTransactionSetsErrorAndTearsDown(t *testing.T) {
	mgr, err := txn.NewManager("node-1", t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Shutdown() })

	tx, err := mgr.CreateTransaction(txn.Options{Type: txn.Short})
	require.NoError(t, err)
	mgr.AbortTransaction(tx) // no outstanding tasks: finalizes immediately

	step := plan.NewStep(1, plan.Process, 0, 1, func(*plan.Step) plan.Flow { return stubFlow{n: 1, factory: completeOp} })
	g := plan.NewGraph(step)

	j := job.New(1, -1, nil, nil)
	req := request.New(config.Default(), arena.NewPool(), nil, nil, nil, j, 1)
	req.SetTransaction(tx)
	rt := NewRuntime(g, j, req)

	op := &stubOp{statuses: []plan.TaskStatus{plan.Complete}, inTx: true}
	j.IncTaskCount()
	wt := &Task{Kind: Wrapped, Req: req, Job: j, Runtime: rt, Op: op}

	sub := &testSubmitter{}
	wt.Run(sub)

	require.Error(t, req.Errors.Err())
	assert.Equal(t, apperr.InactiveTransactionException, apperr.CodeOf(req.Errors.Err()))
}

func TestRunWriteLoadSkipsBodyWhenCancelled(t *testing.T) {
	j := job.New(1, -1, nil, nil)
	req := request.New(config.Default(), arena.NewPool(), nil, nil, nil, j, 1)
	req.Cancel()
	j.IncTaskCount()

	ran := false
	execFn := execFunc(func(*request.Context) error { ran = true; return nil })

	rt := NewRuntime(plan.NewGraph(), j, req)
	wt := &Task{Kind: Write, Req: req, Job: j, Runtime: rt, Exec: execFn}

	sub := &testSubmitter{}
	wt.Run(sub)
	sub.drain()

	assert.False(t, ran)
	assert.True(t, j.Quiesced())
}

func TestRunResolveFailurePropagatesErrorAndTearsDown(t *testing.T) {
	j := job.New(1, -1, nil, nil)
	req := request.New(config.Default(), arena.NewPool(), nil, nil, nil, j, 1)
	rt := NewRuntime(plan.NewGraph(), j, req)
	j.IncTaskCount()

	stmt := &Statement{
		Prepared: &Prepared{Resolve: func([]expr.Value) (Executor, error) { return nil, errors.New("bad statement") }},
	}
	wt := &Task{Kind: Resolve, Req: req, Job: j, Runtime: rt, Statement: stmt}

	sub := &testSubmitter{}
	wt.Run(sub)
	sub.drain()

	require.Error(t, req.Errors.Err())
	assert.True(t, j.Quiesced())
}

type execFunc func(req *request.Context) error

func (f execFunc) Run(req *request.Context) error { return f(req) }
