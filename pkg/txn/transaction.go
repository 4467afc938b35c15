// Package txn models the external CC-engine transaction contract the
// engine runs against: begin/commit/abort, termination refcounting and
// sticky-worker affinity. The CC engine's own concurrency control
// (lock/version management, conflict detection) is out of scope — this
// package only carries the decisions (begin, commit, abort) durably and
// tracks the bookkeeping the scheduler needs to run tasks against a
// transaction safely.
package txn

import (
	"sync"

	"github.com/cuemby/queryrt/pkg/apperr"
)

// Type is the CC-engine transaction kind.
type Type int

const (
	Short    Type = iota // OCC
	Long                 // LTX
	ReadOnly             // RTX
)

func (t Type) String() string {
	switch t {
	case Short:
		return "short"
	case Long:
		return "long"
	case ReadOnly:
		return "read_only"
	default:
		return "unknown"
	}
}

// Options configures transaction creation.
type Options struct {
	Type                Type
	WritePreserves      []string
	InclusiveReadAreas  []string
	ExclusiveReadAreas  []string
	ModifiesDefinitions bool
	ScanParallelism     int
}

// CommitOptions configures a commit request. Empty today; reserved for
// the commit-kind thresholds (e.g. "return once stored, don't wait for
// propagated") the CC-engine contract allows callers to request.
type CommitOptions struct{}

// CommitCallbackKind is the staging a commit passes through, mirroring
// the CC engine's asynchronous commit protocol.
type CommitCallbackKind int

const (
	Accepted CommitCallbackKind = iota
	Available
	Stored
	Propagated
)

func (k CommitCallbackKind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case Available:
		return "available"
	case Stored:
		return "stored"
	case Propagated:
		return "propagated"
	default:
		return "unknown"
	}
}

// CommitCallback receives one call per commit stage; err is non-nil only
// on the stage at which commit failed, and no later stage fires after
// that.
type CommitCallback func(kind CommitCallbackKind, err error)

// State is a transaction's lifecycle state.
type State int

const (
	StateActive State = iota
	StateGoingToAbort
	StateAborted
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateGoingToAbort:
		return "going_to_abort"
	case StateAborted:
		return "aborted"
	case StateCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// Transaction is a handle to one CC-engine transaction plus the local
// termination and sticky-affinity bookkeeping the scheduler consults on
// every wrapped task.
type Transaction struct {
	id   uint64
	opts Options

	mgr *Manager

	mu            sync.Mutex
	state         State
	taskCount     int64
	stickyWorker  int
	enforcedCount int64

	stickyMu sync.Mutex
}

func newTransaction(mgr *Manager, id uint64, opts Options) *Transaction {
	return &Transaction{
		id:           id,
		opts:         opts,
		mgr:          mgr,
		state:        StateActive,
		stickyWorker: -1,
	}
}

// ID returns the transaction's identifier, for diagnostics.
func (tx *Transaction) ID() uint64 { return tx.id }

// Options returns the options the transaction was created with.
func (tx *Transaction) Options() Options { return tx.opts }

// State reports the transaction's current lifecycle state.
func (tx *Transaction) State() State {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.state
}

// TaskCount reports the number of tasks currently holding the
// transaction open (the termination refcount).
func (tx *Transaction) TaskCount() int64 {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.taskCount
}

// BeginTask increments the transaction's task use-count, as required
// before executing a wrapped task associated with the transaction. It
// returns an inactive-transaction error if the transaction has entered
// (or completed) abort and cannot accept more tasks.
func (tx *Transaction) BeginTask() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.state == StateGoingToAbort || tx.state == StateAborted {
		return apperr.Newf(apperr.InactiveTransactionException, "transaction %d is terminating", tx.id)
	}
	tx.taskCount++
	return nil
}

// EndTask decrements the use-count. If the transaction has been marked
// going-to-abort and the count reaches zero, it finalizes the abort.
func (tx *Transaction) EndTask() {
	tx.mu.Lock()
	tx.taskCount--
	finalize := tx.state == StateGoingToAbort && tx.taskCount == 0
	if finalize {
		tx.state = StateAborted
	}
	tx.mu.Unlock()
	if finalize && tx.mgr != nil {
		tx.mgr.finalizeAbort(tx)
	}
}

// MarkGoingToAbort records an external abort request. New sticky tasks
// must be rejected from this point (enforced by BeginTask). If no task
// is currently outstanding, the abort finalizes immediately.
func (tx *Transaction) MarkGoingToAbort() {
	tx.mu.Lock()
	if tx.state == StateActive {
		tx.state = StateGoingToAbort
	}
	finalize := tx.state == StateGoingToAbort && tx.taskCount == 0
	if finalize {
		tx.state = StateAborted
	}
	tx.mu.Unlock()
	if finalize && tx.mgr != nil {
		tx.mgr.finalizeAbort(tx)
	}
}

func (tx *Transaction) setState(s State) {
	tx.mu.Lock()
	tx.state = s
	tx.mu.Unlock()
}

// BindSticky binds the transaction to a worker for sticky-task
// execution. The first call for a given transaction wins and binds
// candidate; every later call must present the same candidate or it is
// rerouted to the bound worker and the enforced counter is incremented.
// It returns the worker the caller must actually use.
func (tx *Transaction) BindSticky(candidate int) (bound int, enforced bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.stickyWorker < 0 {
		tx.stickyWorker = candidate
		return candidate, false
	}
	if tx.stickyWorker != candidate {
		tx.enforcedCount++
		return tx.stickyWorker, true
	}
	return tx.stickyWorker, false
}

// EnforcedCount reports how many times a sticky task targeted a worker
// other than the transaction's bound worker and had to be rerouted.
func (tx *Transaction) EnforcedCount() int64 {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.enforcedCount
}

// Lock acquires the sticky-task transaction mutex: all sticky tasks for
// this transaction serialize here, one at a time, on their bound
// worker.
func (tx *Transaction) Lock() { tx.stickyMu.Lock() }

// Unlock releases the sticky-task transaction mutex.
func (tx *Transaction) Unlock() { tx.stickyMu.Unlock() }
