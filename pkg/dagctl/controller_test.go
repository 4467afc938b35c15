package dagctl

import (
	"testing"

	"github.com/cuemby/queryrt/pkg/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTask struct{}

func (stubTask) Invoke() plan.TaskStatus { return plan.Complete }
func (stubTask) Sticky() bool            { return false }
func (stubTask) InTransaction() bool     { return false }

type stubFlow struct{ n int }

func (f stubFlow) CreateTasks() []plan.OperatorTask {
	tasks := make([]plan.OperatorTask, f.n)
	for i := range tasks {
		tasks[i] = stubTask{}
	}
	return tasks
}
func (f stubFlow) CreatePretask(int) plan.OperatorTask { return stubTask{} }

func linearGraph(t *testing.T, mainTaskCounts [2]int) (*plan.Graph, *plan.Step, *plan.Step) {
	t.Helper()
	a := plan.NewStep(1, plan.Process, 0, 1, func(*plan.Step) plan.Flow { return stubFlow{n: mainTaskCounts[0]} })
	b := plan.NewStep(2, plan.Process, 1, 0, func(*plan.Step) plan.Flow { return stubFlow{n: mainTaskCounts[1]} })
	plan.Connect(a.Outputs[0], b.Inputs[0])
	return plan.NewGraph(a, b), a, b
}

func TestBootstrapActivatesSourceStepsWithoutSubInputs(t *testing.T) {
	g, a, b := linearGraph(t, [2]int{1, 1})
	c := NewController(g)

	tasks := c.Bootstrap()
	// a has no upstream and no sub-inputs: created -> prepared -> (downstream
	// activated check) -> running, producing its one main task.
	assert.Equal(t, Running, c.State(a.ID))
	require.Len(t, tasks, 1)

	// b has no sub-inputs so it skips straight to prepared, but its
	// upstream (a) is only "running", not yet past completed, so it
	// cannot start its own main tasks yet.
	assert.Equal(t, Prepared, c.State(b.ID))
}

func TestFullLinearGraphReachesDeactivated(t *testing.T) {
	g, a, b := linearGraph(t, [2]int{1, 1})
	c := NewController(g)

	c.Bootstrap()
	tasks := c.TaskCompleted(TaskRef{StepID: a.ID, Index: 0})
	assert.Equal(t, Completed, c.State(a.ID))
	// completing a's sole main task lets b, already prepared, start its
	// own main task in the same propagation pass.
	assert.Equal(t, Running, c.State(b.ID))
	require.Len(t, tasks, 1)

	c.TaskCompleted(TaskRef{StepID: b.ID, Index: 0})
	assert.Equal(t, Deactivated, c.State(a.ID))
	assert.Equal(t, Deactivated, c.State(b.ID))
	assert.True(t, c.AllDeactivated())
}

func TestTaskHandlesCarryOriginatingRef(t *testing.T) {
	g, a, _ := linearGraph(t, [2]int{1, 1})
	c := NewController(g)

	handles := c.Bootstrap()
	require.Len(t, handles, 1)
	assert.Equal(t, TaskRef{StepID: a.ID, Index: 0}, handles[0].Ref)
}

func TestSubInputProvidingForcesPreparing(t *testing.T) {
	a := plan.NewStep(1, plan.Process, 2, 0, func(*plan.Step) plan.Flow { return stubFlow{n: 1} })
	a.SetPortKind(0, plan.PortSub)
	g := plan.NewGraph(a)
	c := NewController(g)

	c.Bootstrap()
	// a has sub-inputs, so activation leaves it in activated; with no
	// upstreams the "all upstreams completed" guard then holds at once,
	// carrying it on to preparing in the same pass.
	assert.Equal(t, Preparing, c.State(a.ID))

	c.Providing(a.ID, plan.PortSub, 0)
	assert.Equal(t, Preparing, c.State(a.ID))

	// completing the pretask lets the fixpoint loop carry the step all
	// the way from preparing through prepared into running in one pass,
	// since it has no downstreams to wait on.
	c.TaskCompleted(TaskRef{StepID: a.ID, Pretask: true, Index: 0})
	assert.Equal(t, Running, c.State(a.ID))
}
