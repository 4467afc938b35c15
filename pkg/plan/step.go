package plan

import "fmt"

// Kind tags a step's role in the physical DAG.
type Kind int

const (
	Process Kind = iota
	Exchange
	EmitDeliver
)

func (k Kind) String() string {
	switch k {
	case Process:
		return "process"
	case Exchange:
		return "exchange"
	case EmitDeliver:
		return "emit_deliver"
	default:
		return "unknown"
	}
}

// FlowFactory builds a step's Flow on activation. Implementations close
// over whatever the compiled operator subgraph or exchange descriptor
// needs.
type FlowFactory func(s *Step) Flow

// Step is a node of the physical DAG. Graph construction (NewStep,
// Connect) must complete before the first Activate call — ports'
// Opposites lists are fixed at that point and never change again.
type Step struct {
	ID         int
	Kind       Kind
	Inputs     []*Port
	Outputs    []*Port
	Partitions int

	newFlow FlowFactory
	flow    Flow

	activated       bool
	pretaskStarted  []bool // one entry per Inputs index, true once CreatePretask(i) has run
	mainTasksMade   bool
}

// NewStep creates a step with n input and m output ports, all
// initialized as PortMain; callers reclassify sub-input ports with
// SetPortKind before wiring the graph.
func NewStep(id int, kind Kind, inputCount, outputCount int, factory FlowFactory) *Step {
	s := &Step{ID: id, Kind: kind, newFlow: factory}
	s.Inputs = make([]*Port, inputCount)
	for i := range s.Inputs {
		s.Inputs[i] = &Port{Step: s, Direction: Input, Kind: PortMain, Index: i}
	}
	s.Outputs = make([]*Port, outputCount)
	for i := range s.Outputs {
		s.Outputs[i] = &Port{Step: s, Direction: Output, Kind: PortMain, Index: i}
	}
	s.pretaskStarted = make([]bool, inputCount)
	return s
}

// SetPortKind reclassifies input port i as sub-input (driving pre-task
// preparation) rather than main-input. Must be called before the graph
// is wired with Connect.
func (s *Step) SetPortKind(i int, kind PortKind) {
	s.Inputs[i].Kind = kind
}

// Activate constructs this activation's Flow. It must be called exactly
// once per job per step — a second call panics, matching the
// controller's "activate called exactly once" invariant.
func (s *Step) Activate() {
	if s.activated {
		panic(fmt.Sprintf("plan: step %d activated twice", s.ID))
	}
	s.activated = true
	s.flow = s.newFlow(s)
}

// CreateTasks manufactures this activation's main tasks. Must be called
// at most once per activation.
func (s *Step) CreateTasks() []OperatorTask {
	if !s.activated {
		panic(fmt.Sprintf("plan: step %d: CreateTasks before Activate", s.ID))
	}
	if s.mainTasksMade {
		panic(fmt.Sprintf("plan: step %d: CreateTasks called twice", s.ID))
	}
	s.mainTasksMade = true
	return s.flow.CreateTasks()
}

// CreatePretask manufactures the preparation task for sub-input port i.
// Must be called at most once per port.
func (s *Step) CreatePretask(i int) OperatorTask {
	if !s.activated {
		panic(fmt.Sprintf("plan: step %d: CreatePretask before Activate", s.ID))
	}
	if s.pretaskStarted[i] {
		panic(fmt.Sprintf("plan: step %d: CreatePretask(%d) called twice", s.ID, i))
	}
	s.pretaskStarted[i] = true
	return s.flow.CreatePretask(i)
}

// Deactivate releases the flow and any large buffers it holds.
func (s *Step) Deactivate() {
	s.flow = nil
}

// HasSubInputs reports whether this step has any sub-input ports, which
// decides whether activation moves it to "activated" (awaiting
// pre-tasks) or directly to "prepared".
func (s *Step) HasSubInputs() bool {
	for _, p := range s.Inputs {
		if p.Kind == PortSub {
			return true
		}
	}
	return false
}
