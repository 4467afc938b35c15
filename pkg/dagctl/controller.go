package dagctl

import (
	"sync"

	"github.com/cuemby/queryrt/pkg/plan"
)

// TaskRef identifies one task a step has created, for reporting its
// completion back to the controller via TaskCompleted.
type TaskRef struct {
	StepID  int
	Pretask bool // true for a CreatePretask task, false for a main task
	Index   int  // port index (pretask) or position in the CreateTasks slice (main)
}

// TaskHandle pairs a newly created OperatorTask with the TaskRef its
// caller must report back to TaskCompleted once the task finishes.
type TaskHandle struct {
	Ref TaskRef
	Op  plan.OperatorTask
}

type stepRecord struct {
	step  *plan.Step
	state State

	pretaskDone    map[int]bool // port index -> completed
	pretaskStarted map[int]bool

	mainTaskTotal     int
	mainTaskCompleted int

	wantEarlyCompletion bool
}

// Controller is the per-job DAG controller. One Controller serves one
// job's step graph; it holds a single mutex while processing an event,
// matching the "controller holds a single mutex while processing one
// event batch" concurrency rule — task execution itself happens outside
// the lock, in the scheduler.
type Controller struct {
	mu    sync.Mutex
	graph *plan.Graph
	steps map[int]*stepRecord
}

// NewController creates a controller over graph. Every step starts in
// Created — construction of the graph itself stands in for the
// "uninitialized → created" step, which has no independent trigger.
func NewController(graph *plan.Graph) *Controller {
	c := &Controller{graph: graph, steps: make(map[int]*stepRecord, len(graph.Steps))}
	for _, s := range graph.Steps {
		c.steps[s.ID] = &stepRecord{
			step:           s,
			state:          Created,
			pretaskDone:    make(map[int]bool),
			pretaskStarted: make(map[int]bool),
		}
	}
	return c
}

// Bootstrap runs the first propagation pass over a freshly constructed
// graph, activating every source step (steps with no upstreams) and
// whatever cascades from that. It returns the OperatorTasks created
// during the pass, ready for the bootstrap task to submit as wrapped
// tasks.
func (c *Controller) Bootstrap() []TaskHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.propagate()
}

// Providing records that target's input port (portIndex, of portKind)
// has begun receiving data from upstream, and returns any OperatorTasks
// this triggers.
func (c *Controller) Providing(targetID int, portKind plan.PortKind, portIndex int) []TaskHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := c.steps[targetID]
	if rec == nil {
		return nil
	}
	var created []TaskHandle

	if portKind == plan.PortSub {
		if !rec.pretaskStarted[portIndex] {
			rec.pretaskStarted[portIndex] = true
			op := rec.step.CreatePretask(portIndex)
			created = append(created, TaskHandle{Ref: TaskRef{StepID: targetID, Pretask: true, Index: portIndex}, Op: op})
		}
		if rec.state == Activated {
			rec.state = Preparing
		}
	} else if rec.state == Prepared && c.downstreamsActivated(rec.step) {
		created = append(created, c.startMainTasks(rec)...)
	}

	created = append(created, c.propagate()...)
	return created
}

// TaskCompleted records that one of target's tasks (identified by ref)
// finished, and returns any OperatorTasks this triggers.
func (c *Controller) TaskCompleted(ref TaskRef) []TaskHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := c.steps[ref.StepID]
	if rec == nil {
		return nil
	}
	if ref.Pretask {
		if !rec.pretaskDone[ref.Index] {
			rec.pretaskDone[ref.Index] = true
		}
	} else {
		rec.mainTaskCompleted++
	}
	return c.propagate()
}

// CompletionInstructed asks target to finish cooperatively once its
// in-flight tasks observe it. The controller itself cannot force a
// running operator task to stop; this records the request (mirroring the
// reserved propagate_downstream_completing event) and moves a running
// step to Completing, which State then reports.
func (c *Controller) CompletionInstructed(targetID int) []TaskHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := c.steps[targetID]
	if rec == nil {
		return nil
	}
	rec.wantEarlyCompletion = true
	if rec.state == Running {
		rec.state = Completing
	}
	return c.propagate()
}

// State reports step id's current lifecycle state.
func (c *Controller) State(id int) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec := c.steps[id]; rec != nil {
		return rec.state
	}
	return Uninitialized
}

// AllDeactivated reports whether every step has reached Deactivated —
// the signal the caller's job uses (under its own completing
// compare-and-set) to schedule the teardown task.
func (c *Controller) AllDeactivated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range c.steps {
		if rec.state != Deactivated {
			return false
		}
	}
	return true
}

func (c *Controller) downstreamsActivated(s *plan.Step) bool {
	for _, d := range c.graph.Downstreams(s) {
		if !atLeast(c.steps[d.ID].state, Activated) {
			return false
		}
	}
	return true
}

func (c *Controller) upstreamsAtLeast(s *plan.Step, threshold State) bool {
	for _, u := range c.graph.Upstreams(s) {
		if !atLeast(c.steps[u.ID].state, threshold) {
			return false
		}
	}
	return true
}

// startMainTasks calls the step's flow to manufacture main tasks and
// records their count for the running → completed quiescence check. A
// step that manufactures zero main tasks is immediately complete.
func (c *Controller) startMainTasks(rec *stepRecord) []TaskHandle {
	tasks := rec.step.CreateTasks()
	rec.mainTaskTotal = len(tasks)
	if len(tasks) == 0 {
		rec.state = Completed
	} else {
		rec.state = Running
	}
	handles := make([]TaskHandle, len(tasks))
	for i, op := range tasks {
		handles[i] = TaskHandle{Ref: TaskRef{StepID: rec.step.ID, Index: i}, Op: op}
	}
	return handles
}

// propagate re-checks every transition rule to a fixpoint, applying
// whichever rules now hold, and collects every OperatorTask created
// along the way. It must be called with mu held.
func (c *Controller) propagate() []TaskHandle {
	var created []TaskHandle
	for {
		progressed := false
		for _, rec := range c.steps {
			if c.step(rec, &created) {
				progressed = true
			}
		}
		if !progressed {
			return created
		}
	}
}

// step attempts one transition for rec and reports whether it advanced.
func (c *Controller) step(rec *stepRecord, created *[]TaskHandle) bool {
	s := rec.step
	switch rec.state {
	case Created:
		if !c.upstreamsAtLeast(s, Activated) {
			return false
		}
		s.Activate()
		if s.HasSubInputs() {
			rec.state = Activated
		} else {
			rec.state = Prepared
		}
		return true

	case Activated:
		if !c.upstreamsAtLeast(s, Completed) {
			return false
		}
		rec.state = Preparing
		return true

	case Preparing:
		for i, p := range s.Inputs {
			if p.Kind == plan.PortSub && !rec.pretaskDone[i] {
				return false
			}
		}
		rec.state = Prepared
		return true

	case Prepared:
		if !c.downstreamsActivated(s) || !c.upstreamsAtLeast(s, Completed) {
			return false
		}
		*created = append(*created, c.startMainTasks(rec)...)
		return true

	case Running, Completing:
		if rec.mainTaskCompleted < rec.mainTaskTotal {
			return false
		}
		rec.state = Completed
		return true

	case Completed:
		if !c.upstreamsAtLeast(s, Completed) || !c.downstreamsAtLeast(s, Completed) {
			return false
		}
		s.Deactivate()
		rec.state = Deactivated
		return true

	default:
		return false
	}
}

func (c *Controller) downstreamsAtLeast(s *plan.Step, threshold State) bool {
	for _, d := range c.graph.Downstreams(s) {
		if !atLeast(c.steps[d.ID].state, threshold) {
			return false
		}
	}
	return true
}
