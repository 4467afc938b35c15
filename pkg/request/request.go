// Package request implements the per-request context: the aggregate of
// collaborators every task of one execute_async/commit_async call
// shares — configuration, memory arenas, the KVS handle, an optional
// transaction, the result channel, and the first-error-wins error
// holder.
package request

import (
	"sync"
	"sync/atomic"

	"github.com/cuemby/queryrt/pkg/arena"
	"github.com/cuemby/queryrt/pkg/config"
	"github.com/cuemby/queryrt/pkg/job"
	"github.com/cuemby/queryrt/pkg/record"
	"github.com/cuemby/queryrt/pkg/storage"
	"github.com/cuemby/queryrt/pkg/txn"
)

// Scheduler is the narrow surface a request needs from the task
// scheduler. Defined locally (rather than imported from pkg/scheduler)
// so pkg/request never depends on pkg/scheduler — the scheduler depends
// on pkg/task, which depends on pkg/request, and cycles are not
// allowed.
type Scheduler interface {
	SubmitForJob(j *job.Job, preferredWorker int, run func())
}

// Row is one result-set row: a record reference plus the metadata
// describing its shape, copied out of the producing task's arena
// before the row crosses the result channel (the arena is released
// back to the pool once the task returns).
type Row struct {
	Ref  record.Ref
	Meta *record.Metadata
}

// SessionInfo carries the identity a DDL path would use for permission
// checks. Permission enforcement itself is out of scope; this is only
// carried through so a future authorization layer has somewhere to
// read it from.
type SessionInfo struct {
	User      string
	SessionID string
}

// ErrorInfo is the request's first-error-wins error cell: the first
// Set call wins and is what callers observe via Err; every later call
// is dropped from the surfaced result but still available via Log for
// diagnostics.
type ErrorInfo struct {
	mu  sync.Mutex
	err error
	log []error
}

// Set records err. It returns true if this call was the first to set
// an error (and therefore the one that will surface), false if an
// earlier error already won.
func (e *ErrorInfo) Set(err error) bool {
	if err == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, err)
	if e.err != nil {
		return false
	}
	e.err = err
	return true
}

// Err returns the first error set, or nil if none has been.
func (e *ErrorInfo) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Log returns every error Set has ever seen, in arrival order,
// including the one that won.
func (e *ErrorInfo) Log() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]error, len(e.log))
	copy(out, e.log)
	return out
}

// Context aggregates one request's collaborators. It is constructed
// before the first task is submitted and is read-mostly thereafter;
// the transaction pointer and cancel flag are the only fields mutated
// after construction, and both are safe for concurrent access.
type Context struct {
	Config   *config.Config
	Pool     *arena.Pool
	Arena    *arena.Monotonic // per-task working memory for fixed-size values
	VarArena *arena.LIFO      // per-task checkpointed memory for cogroup/variable-length values

	DB       *storage.KVS
	Provider *storage.Provider

	Scheduler Scheduler
	Job       *job.Job
	Session   SessionInfo

	Results chan Row
	Errors  *ErrorInfo

	txMu sync.RWMutex
	tx   *txn.Transaction

	cancelled atomic.Bool
}

// New constructs a request context. resultBuffer sizes the result
// channel (0 is unbuffered, matching a single consumer draining it as
// rows are produced).
func New(cfg *config.Config, pool *arena.Pool, db *storage.KVS, provider *storage.Provider, sched Scheduler, j *job.Job, resultBuffer int) *Context {
	return &Context{
		Config:    cfg,
		Pool:      pool,
		Arena:     arena.NewMonotonic(pool),
		VarArena:  arena.NewLIFO(pool),
		DB:        db,
		Provider:  provider,
		Scheduler: sched,
		Job:       j,
		Results:   make(chan Row, resultBuffer),
		Errors:    &ErrorInfo{},
	}
}

// SetTransaction attaches tx to the request. There is at most one
// transaction per request.
func (c *Context) SetTransaction(tx *txn.Transaction) {
	c.txMu.Lock()
	defer c.txMu.Unlock()
	c.tx = tx
}

// Transaction returns the request's transaction, if any.
func (c *Context) Transaction() (*txn.Transaction, bool) {
	c.txMu.RLock()
	defer c.txMu.RUnlock()
	return c.tx, c.tx != nil
}

// Cancel sets the per-request cancel flag checked at task entry for
// write/load and at operator yield points.
func (c *Context) Cancel() { c.cancelled.Store(true) }

// Cancelled reports whether Cancel has been called.
func (c *Context) Cancelled() bool { return c.cancelled.Load() }

// Failed reports whether either cancellation or an error makes this
// request's remaining work moot — the condition Emit and the offer
// operator check before producing output.
func (c *Context) Failed() bool {
	return c.Cancelled() || c.Errors.Err() != nil
}

// Emit delivers a row on the result channel. It returns false without
// sending if the request has already failed, so a producing operator
// can stop promptly instead of blocking on a channel nobody will drain
// further.
func (c *Context) Emit(row Row) bool {
	if c.Failed() {
		return false
	}
	c.Results <- row
	return true
}

// CloseResults closes the result channel. Called exactly once, by job
// teardown, after every producing task has returned.
func (c *Context) CloseResults() { close(c.Results) }
