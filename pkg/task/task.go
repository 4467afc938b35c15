// Package task implements the flat task: the scheduler's single
// runnable unit, discriminated by Kind, that unifies DAG bootstrap and
// event draining, wrapped operator invocation, statement resolution,
// write/load execution and job teardown.
package task

import (
	"github.com/cuemby/queryrt/pkg/dagctl"
	"github.com/cuemby/queryrt/pkg/job"
	"github.com/cuemby/queryrt/pkg/log"
	"github.com/cuemby/queryrt/pkg/plan"
	"github.com/cuemby/queryrt/pkg/request"
)

// logger is the task package's component-scoped base; Run's callers
// chain job_id and step_id onto it rather than logging unscoped.
var logger = log.WithComponent("task")

// Kind discriminates a Task's execution contract.
type Kind int

const (
	Wrapped Kind = iota
	DAGEvents
	Bootstrap
	Teardown
	Resolve
	Write
	Load
)

func (k Kind) String() string {
	switch k {
	case Wrapped:
		return "wrapped"
	case DAGEvents:
		return "dag_events"
	case Bootstrap:
		return "bootstrap"
	case Teardown:
		return "teardown"
	case Resolve:
		return "resolve"
	case Write:
		return "write"
	case Load:
		return "load"
	default:
		return "unknown"
	}
}

// Submitter is the scheduler's inbound face: the one thing a running
// Task needs in order to resubmit itself or hand off newly created
// tasks. Defined here, not in pkg/scheduler, so pkg/task never imports
// pkg/scheduler — the scheduler imports pkg/task, not the other way
// around.
type Submitter interface {
	Submit(t *Task)
}

// Task is the discriminated union the scheduler runs. Only the fields
// relevant to Kind are populated; see the package doc for which.
type Task struct {
	Kind Kind
	Req  *request.Context
	Job  *job.Job

	// Runtime backs Wrapped, DAGEvents, Bootstrap and Teardown: the
	// shared per-job DAG controller and event queue.
	Runtime *Runtime

	// Wrapped.
	Op  plan.OperatorTask
	Ref dagctl.TaskRef

	// Bootstrap.
	Graph *plan.Graph

	// Write / Load.
	Exec Executor

	// Resolve.
	Statement *Statement
}

// Run executes the task once according to its Kind, submitting
// follow-up tasks (resubmission, cascaded wrapped tasks, teardown)
// through sub as needed. It never blocks beyond what the underlying
// operator or executor does.
func (t *Task) Run(sub Submitter) {
	switch t.Kind {
	case Wrapped:
		t.runWrapped(sub)
	case DAGEvents:
		t.runDAGEvents(sub)
	case Bootstrap:
		t.runBootstrap(sub)
	case Teardown:
		t.runTeardown(sub)
	case Resolve:
		t.runResolve(sub)
	case Write, Load:
		t.runWriteLoad(sub)
	default:
		panic("task: unknown kind")
	}
}

// runWrapped invokes the wrapped operator task to completion, applying
// the transaction discipline (use-count, sticky mutex) around it, and
// reports the outcome back to the DAG runtime.
func (t *Task) runWrapped(sub Submitter) {
	tx, hasTx := t.Req.Transaction()
	txActive := hasTx && t.Op.InTransaction()

	if txActive {
		if err := tx.BeginTask(); err != nil {
			t.Req.Errors.Set(err)
			log.WithStepID(log.WithJobID(logger, t.Job.ID), t.Ref.StepID).
				Warn().Err(err).Msg("begin_task failed, forcing teardown")
			t.Job.DecTaskCount()
			t.Runtime.forceTeardown(sub)
			return
		}
		if t.Op.Sticky() {
			tx.Lock()
		}
	}
	release := func() {
		if !txActive {
			return
		}
		if t.Op.Sticky() {
			tx.Unlock()
		}
		tx.EndTask()
	}

	for {
		switch t.Op.Invoke() {
		case plan.Proceed:
			continue
		case plan.Yield:
			sub.Submit(t)
			return
		case plan.Complete:
			release()
			t.Job.DecTaskCount()
			t.Runtime.reportCompleted(sub, t.Ref)
			return
		case plan.CompleteAndTeardown:
			release()
			t.Job.DecTaskCount()
			t.Job.SetGoingTeardown()
			t.Runtime.reportCompleted(sub, t.Ref)
			t.Runtime.forceTeardown(sub)
			return
		}
	}
}

// runDAGEvents drains pending internal events once; it never blocks.
func (t *Task) runDAGEvents(sub Submitter) {
	t.Runtime.Drain(sub)
	t.Job.DecTaskCount()
}

// runBootstrap activates the source steps of a freshly constructed
// graph, then drains whatever events that cascades.
func (t *Task) runBootstrap(sub Submitter) {
	t.Runtime.Bootstrap(sub)
	t.Job.DecTaskCount()
}

// runTeardown finishes the job once it is quiesced and the caller's
// readiness predicate (if any) permits, otherwise resubmits itself.
func (t *Task) runTeardown(sub Submitter) {
	if t.Job.Quiesced() && t.Job.Ready() {
		t.Job.Finish()
		return
	}
	sub.Submit(t)
}

// runResolve resolves a prepared statement against its parameters and
// hands the resulting executable to the statement's execute_async hook.
func (t *Task) runResolve(sub Submitter) {
	defer t.Job.DecTaskCount()

	exec, err := t.Statement.Prepared.Resolve(t.Statement.Params)
	if err != nil {
		t.Req.Errors.Set(err)
		log.WithJobID(logger, t.Job.ID).Warn().Err(err).Msg("statement resolve failed, forcing teardown")
		t.Runtime.forceTeardown(sub)
		return
	}
	if err := t.Statement.Submit(t.Req, exec); err != nil {
		t.Req.Errors.Set(err)
		log.WithJobID(logger, t.Job.ID).Warn().Err(err).Msg("resolved statement submit failed, forcing teardown")
		t.Runtime.forceTeardown(sub)
	}
}

// runWriteLoad runs the statement body under the request's transaction,
// then moves the job toward teardown. Cancellation (when enabled) skips
// the body entirely.
func (t *Task) runWriteLoad(sub Submitter) {
	defer t.Job.DecTaskCount()

	skip := t.Req.Cancelled() && t.Req.Config.CancellationEnabled
	if !skip {
		if err := t.Exec.Run(t.Req); err != nil {
			t.Req.Errors.Set(err)
			log.WithJobID(logger, t.Job.ID).Warn().Err(err).Msg("write/load execution failed")
		}
	}
	t.Job.SetGoingTeardown()
	t.Runtime.forceTeardown(sub)
}
