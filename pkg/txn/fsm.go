package txn

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
)

// Command is a state change operation in the raft log, the same
// op+payload envelope the cluster-state FSM uses.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

type beginData struct {
	Opts Options
}

type commitData struct {
	ID uint64
}

type abortData struct {
	ID uint64
}

// txnRecord is the FSM's own replicated view of a transaction: just
// enough to answer diagnostics and reject double commit/abort. The
// live Transaction handle with its refcount and sticky bookkeeping is
// kept locally by Manager, not replicated.
type txnRecord struct {
	ID    uint64
	Opts  Options
	State State
}

// fsm applies begin/commit/abort log entries to a replicated table of
// transaction records. It assigns transaction IDs itself (a counter
// advanced by each applied begin entry) so every replica agrees on the
// numbering without a separate sequence.
type fsm struct {
	mu     sync.RWMutex
	nextID uint64
	txns   map[uint64]*txnRecord
}

func newFSM() *fsm {
	return &fsm{txns: make(map[uint64]*txnRecord)}
}

func (f *fsm) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("txn: unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case "begin":
		var d beginData
		if err := json.Unmarshal(cmd.Data, &d); err != nil {
			return fmt.Errorf("txn: unmarshal begin: %w", err)
		}
		f.nextID++
		id := f.nextID
		f.txns[id] = &txnRecord{ID: id, Opts: d.Opts, State: StateActive}
		return id

	case "commit":
		var d commitData
		if err := json.Unmarshal(cmd.Data, &d); err != nil {
			return fmt.Errorf("txn: unmarshal commit: %w", err)
		}
		rec, ok := f.txns[d.ID]
		if !ok {
			return fmt.Errorf("txn: commit: no such transaction %d", d.ID)
		}
		if rec.State != StateActive {
			return fmt.Errorf("txn: commit: transaction %d is %s", d.ID, rec.State)
		}
		rec.State = StateCommitted
		return nil

	case "abort":
		var d abortData
		if err := json.Unmarshal(cmd.Data, &d); err != nil {
			return fmt.Errorf("txn: unmarshal abort: %w", err)
		}
		rec, ok := f.txns[d.ID]
		if !ok {
			return fmt.Errorf("txn: abort: no such transaction %d", d.ID)
		}
		rec.State = StateAborted
		return nil

	default:
		return fmt.Errorf("txn: unknown command: %s", cmd.Op)
	}
}

func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap := &fsmSnapshot{NextID: f.nextID}
	for _, rec := range f.txns {
		cp := *rec
		snap.Txns = append(snap.Txns, &cp)
	}
	return snap, nil
}

func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap fsmSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("txn: decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID = snap.NextID
	f.txns = make(map[uint64]*txnRecord, len(snap.Txns))
	for _, rec := range snap.Txns {
		f.txns[rec.ID] = rec
	}
	return nil
}

type fsmSnapshot struct {
	NextID uint64
	Txns   []*txnRecord
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *fsmSnapshot) Release() {}
