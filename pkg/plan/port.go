// Package plan implements the physical step graph: steps connected by
// typed ports, each step owning a one-shot-per-activation flow that
// manufactures tasks. The graph itself is built once and is immutable
// afterward — only per-step lifecycle state (owned by pkg/dagctl)
// changes after construction.
package plan

// PortKind distinguishes a port's role in driving step activation.
// Sub-input ports drive pre-task preparation; main-input/output ports
// drive ordinary consumption.
type PortKind int

const (
	PortMain PortKind = iota
	PortSub
)

func (k PortKind) String() string {
	if k == PortSub {
		return "sub"
	}
	return "main"
}

// Direction is whether a Port is an input or output of its owning step.
type Direction int

const (
	Input Direction = iota
	Output
)

// Port is a typed endpoint connecting two steps. Its Opposites list is
// fixed once the graph is wired — Connect is the only mutator, and it
// must not be called again afterward.
type Port struct {
	Step      *Step
	Direction Direction
	Kind      PortKind
	Index     int // position within the step's input or output port list

	opposites []*Port
}

// Opposites returns the ports on the other end of every edge incident to
// this port.
func (p *Port) Opposites() []*Port { return p.opposites }

// Connect wires a and b as opposite ends of one edge. Both ports' sides
// must be compatible (an input connects only to outputs and vice versa).
func Connect(a, b *Port) {
	if a.Direction == b.Direction {
		panic("plan: cannot connect two ports of the same direction")
	}
	a.opposites = append(a.opposites, b)
	b.opposites = append(b.opposites, a)
}
