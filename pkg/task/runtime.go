package task

import (
	"sync"

	"github.com/cuemby/queryrt/pkg/dagctl"
	"github.com/cuemby/queryrt/pkg/job"
	"github.com/cuemby/queryrt/pkg/plan"
	"github.com/cuemby/queryrt/pkg/request"
)

// EventKind discriminates a pending DAG controller event.
type EventKind int

const (
	EventProviding EventKind = iota
	EventTaskCompleted
	EventCompletionInstructed
)

// Event is one controller notification, queued by a wrapped task's
// outcome or by the exchange layer's port wiring and drained by the
// next dag_events (or bootstrap) task.
type Event struct {
	Kind      EventKind
	TargetID  int
	PortKind  plan.PortKind
	PortIndex int
	Ref       dagctl.TaskRef
}

// Runtime is the per-job glue between the DAG controller and the
// scheduler: it owns the controller, a queue of pending events, and
// the job/request pair every wrapped task it manufactures is stamped
// with.
type Runtime struct {
	ctrl *dagctl.Controller
	job  *job.Job
	req  *request.Context

	mu     sync.Mutex
	events []Event
}

// NewRuntime creates a Runtime over graph for one job's execution.
func NewRuntime(graph *plan.Graph, j *job.Job, req *request.Context) *Runtime {
	return &Runtime{ctrl: dagctl.NewController(graph), job: j, req: req}
}

// Enqueue records ev for the next Drain. Safe to call from any task.
func (r *Runtime) Enqueue(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *Runtime) reportCompleted(sub Submitter, ref dagctl.TaskRef) {
	r.Enqueue(Event{Kind: EventTaskCompleted, Ref: ref})
	r.Drain(sub)
}

// Bootstrap activates the graph's source steps and submits whatever
// wrapped tasks that produces.
func (r *Runtime) Bootstrap(sub Submitter) {
	r.submitAll(sub, r.ctrl.Bootstrap())
}

// Drain applies every queued event to the controller in one pass and
// submits the wrapped tasks that cascade, then checks whether the
// whole graph has deactivated and schedules teardown if so.
func (r *Runtime) Drain(sub Submitter) {
	r.mu.Lock()
	pending := r.events
	r.events = nil
	r.mu.Unlock()

	var created []dagctl.TaskHandle
	for _, ev := range pending {
		switch ev.Kind {
		case EventProviding:
			created = append(created, r.ctrl.Providing(ev.TargetID, ev.PortKind, ev.PortIndex)...)
		case EventTaskCompleted:
			created = append(created, r.ctrl.TaskCompleted(ev.Ref)...)
		case EventCompletionInstructed:
			created = append(created, r.ctrl.CompletionInstructed(ev.TargetID)...)
		}
	}
	r.submitAll(sub, created)
	r.scheduleTeardown(sub)
}

// scheduleTeardown submits the job's teardown task the first time the
// whole step graph has deactivated, guarded by the job's own
// completing compare-and-set so only one caller ever wins the race.
func (r *Runtime) scheduleTeardown(sub Submitter) {
	if r.ctrl.AllDeactivated() {
		r.forceTeardown(sub)
	}
}

// forceTeardown submits the job's teardown task unconditionally,
// guarded only by the job's completing compare-and-set — the
// accelerated path a cancelled request or a complete_and_teardown
// outcome takes without waiting for the whole step graph to deactivate.
func (r *Runtime) forceTeardown(sub Submitter) {
	if r.job.BeginCompleting() {
		sub.Submit(&Task{Kind: Teardown, Req: r.req, Job: r.job, Runtime: r})
	}
}

func (r *Runtime) submitAll(sub Submitter, handles []dagctl.TaskHandle) {
	for _, h := range handles {
		r.job.IncTaskCount()
		sub.Submit(&Task{
			Kind:    Wrapped,
			Req:     r.req,
			Job:     r.job,
			Runtime: r,
			Op:      h.Op,
			Ref:     h.Ref,
		})
	}
}

// Controller exposes the underlying DAG controller for diagnostics
// (per-step state dumps) and for the exchange layer to report
// "providing" events directly rather than through the Event queue when
// it already holds the necessary port identity.
func (r *Runtime) Controller() *dagctl.Controller { return r.ctrl }
