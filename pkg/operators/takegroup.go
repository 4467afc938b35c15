package operators

import (
	"github.com/cuemby/queryrt/pkg/exchange"
	"github.com/cuemby/queryrt/pkg/plan"
	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/request"
	"github.com/cuemby/queryrt/pkg/vartable"
)

// TakeGroup is the root operator of a step reading one group-reader
// partition (§4.6.6): it decodes the group key once per key and each
// member's value in turn, invoking the downstream group operator with
// lastMember set on the final value of each key. Determining lastMember
// needs one member of lookahead, since GroupReader only reports
// exhaustion by a failed NextMember call — TakeGroup buffers that one
// member ahead of what it hands downstream.
type TakeGroup struct {
	Req    *request.Context
	Reader exchange.GroupReader

	KeyMeta       *record.Metadata
	KeyBindings   []ColumnBinding
	ValueMeta     *record.Metadata
	ValueBindings []ColumnBinding
	Vars          *vartable.Table
	Down          GroupSink

	sticky bool
	inTx   bool

	groupLoaded bool
	havePending bool
	pending     []byte
	done        bool
}

func NewTakeGroup(req *request.Context, reader exchange.GroupReader, keyMeta *record.Metadata, keyBindings []ColumnBinding, valueMeta *record.Metadata, valueBindings []ColumnBinding, vars *vartable.Table, down GroupSink, sticky, inTx bool) *TakeGroup {
	return &TakeGroup{
		Req: req, Reader: reader,
		KeyMeta: keyMeta, KeyBindings: keyBindings,
		ValueMeta: valueMeta, ValueBindings: valueBindings,
		Vars: vars, Down: down, sticky: sticky, inTx: inTx,
	}
}

func (t *TakeGroup) Sticky() bool        { return t.sticky }
func (t *TakeGroup) InTransaction() bool { return t.inTx }

func (t *TakeGroup) Invoke() plan.TaskStatus {
	if t.done {
		return plan.Complete
	}

	if !t.groupLoaded {
		if !t.Reader.NextGroup() {
			return t.finish()
		}
		if err := t.decodeKey(); err != nil {
			return t.abort(err)
		}
		t.groupLoaded = true
		t.havePending = t.Reader.NextMember()
		if t.havePending {
			t.pending = t.Reader.GetMember()
		}
	}

	if !t.havePending {
		// the group had no members at all; move on to the next group.
		t.groupLoaded = false
		return plan.Proceed
	}

	current := t.pending
	hasNext := t.Reader.NextMember()
	if hasNext {
		t.pending = t.Reader.GetMember()
	} else {
		t.havePending = false
		t.groupLoaded = false
	}

	if err := t.decodeValue(current); err != nil {
		return t.abort(err)
	}
	if !t.Down.PushMember(!hasNext) {
		return t.finish()
	}
	return plan.Proceed
}

func (t *TakeGroup) decodeKey() error {
	ref := record.NewRef(t.Reader.GetGroup(), t.KeyMeta)
	return decodeColumns(ref, t.Vars, t.KeyBindings)
}

func (t *TakeGroup) decodeValue(raw []byte) error {
	ref := record.NewRef(raw, t.ValueMeta)
	return decodeColumns(ref, t.Vars, t.ValueBindings)
}

func (t *TakeGroup) finish() plan.TaskStatus {
	t.Reader.Release()
	t.done = true
	return plan.Complete
}

func (t *TakeGroup) abort(err error) plan.TaskStatus {
	fail(t.Req, err)
	return t.finish()
}
