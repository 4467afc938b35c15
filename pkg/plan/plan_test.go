package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOpTask struct {
	status TaskStatus
}

func (f fakeOpTask) Invoke() TaskStatus  { return f.status }
func (f fakeOpTask) Sticky() bool        { return false }
func (f fakeOpTask) InTransaction() bool { return false }

type fakeFlow struct {
	tasks []OperatorTask
}

func (f fakeFlow) CreateTasks() []OperatorTask         { return f.tasks }
func (f fakeFlow) CreatePretask(int) OperatorTask { return fakeOpTask{status: Complete} }

func TestStepActivateTwicePanics(t *testing.T) {
	s := NewStep(1, Process, 0, 1, func(*Step) Flow { return fakeFlow{} })
	s.Activate()
	require.Panics(t, s.Activate)
}

func TestCreateTasksBeforeActivatePanics(t *testing.T) {
	s := NewStep(1, Process, 0, 1, func(*Step) Flow { return fakeFlow{} })
	require.Panics(t, func() { s.CreateTasks() })
}

func TestCreateTasksTwicePanics(t *testing.T) {
	s := NewStep(1, Process, 0, 1, func(*Step) Flow { return fakeFlow{} })
	s.Activate()
	s.CreateTasks()
	require.Panics(t, func() { s.CreateTasks() })
}

func TestCreatePretaskPerPortOnce(t *testing.T) {
	s := NewStep(1, Process, 2, 1, func(*Step) Flow { return fakeFlow{} })
	s.SetPortKind(0, PortSub)
	s.Activate()
	s.CreatePretask(0)
	require.Panics(t, func() { s.CreatePretask(0) })
}

func TestConnectWiresOpposites(t *testing.T) {
	a := NewStep(1, Process, 0, 1, func(*Step) Flow { return fakeFlow{} })
	b := NewStep(2, Process, 1, 0, func(*Step) Flow { return fakeFlow{} })
	Connect(a.Outputs[0], b.Inputs[0])

	assert.Equal(t, []*Port{b.Inputs[0]}, a.Outputs[0].Opposites())
	g := NewGraph(a, b)
	assert.Equal(t, []*Step{b}, g.Downstreams(a))
	assert.Equal(t, []*Step{a}, g.Upstreams(b))
}

func TestConnectSameDirectionPanics(t *testing.T) {
	a := NewStep(1, Process, 0, 1, func(*Step) Flow { return fakeFlow{} })
	b := NewStep(2, Process, 0, 1, func(*Step) Flow { return fakeFlow{} })
	require.Panics(t, func() { Connect(a.Outputs[0], b.Outputs[0]) })
}

func TestHasSubInputs(t *testing.T) {
	s := NewStep(1, Process, 1, 0, func(*Step) Flow { return fakeFlow{} })
	assert.False(t, s.HasSubInputs())
	s.SetPortKind(0, PortSub)
	assert.True(t, s.HasSubInputs())
}
