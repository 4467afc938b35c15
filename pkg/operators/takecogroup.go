package operators

import (
	"github.com/cuemby/queryrt/pkg/exchange"
	"github.com/cuemby/queryrt/pkg/plan"
	"github.com/cuemby/queryrt/pkg/request"
)

// TakeCogroup is the root operator of a step that parallel-reads N
// group-reader partitions (§4.6.7): each Invoke advances the cogroup to
// its next distinct key and hands the resulting tuple to the downstream
// cogroup operator. A checkpoint of the request's scoped LIFO arena is
// taken before the downstream call and restored immediately after, so
// whatever the downstream allocates there never outlives the single
// tuple it was allocated for.
type TakeCogroup struct {
	Req     *request.Context
	Cogroup *exchange.Cogroup
	Down    CogroupSink

	sticky bool
	inTx   bool
	done   bool
}

func NewTakeCogroup(req *request.Context, cg *exchange.Cogroup, down CogroupSink, sticky, inTx bool) *TakeCogroup {
	return &TakeCogroup{Req: req, Cogroup: cg, Down: down, sticky: sticky, inTx: inTx}
}

func (t *TakeCogroup) Sticky() bool        { return t.sticky }
func (t *TakeCogroup) InTransaction() bool { return t.inTx }

func (t *TakeCogroup) Invoke() plan.TaskStatus {
	if t.done {
		return plan.Complete
	}

	if !t.Cogroup.NextKey() {
		t.Cogroup.Release()
		t.done = true
		return plan.Complete
	}

	cp := t.Req.VarArena.Checkpoint()
	ok := t.Down.PushCogroup(t.Cogroup)
	t.Req.VarArena.DeallocateAfter(cp)

	if !ok {
		t.Cogroup.Release()
		t.done = true
		return plan.Complete
	}
	return plan.Proceed
}
