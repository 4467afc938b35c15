// Package job implements the job context: one end-to-end plan
// execution's completion latch, task counter, teardown coordination and
// finalize callback.
package job

import (
	"sync"
	"sync/atomic"
	"time"
)

// ReadinessFunc lets a caller gate teardown on an external condition
// (e.g. "the result channel has been fully drained"). A nil
// ReadinessFunc is always ready.
type ReadinessFunc func() bool

// Callback is the user finalize hook, invoked once under the job's own
// bookkeeping, immediately before the completion latch is released.
type Callback func(j *Job)

// Job owns one plan execution's lifecycle bookkeeping. It is
// constructed before the first task is submitted for it and must not be
// referenced after its completion latch has released — the scheduler
// unregisters it from the job registry at that point.
type Job struct {
	ID uint64

	taskCount atomic.Int64
	completing atomic.Bool
	goingTeardown atomic.Bool
	started    atomic.Bool

	// Diagnostics, mirroring the per-request counters request_detail
	// accumulates in the original: total task wall-clock time, how many
	// tasks this job ran sticky, how many were picked up via stealing,
	// and how many sticky submissions got rerouted to an already-bound
	// worker.
	taskDurationNanos       atomic.Int64
	stickyTaskCount         atomic.Int64
	stealingCount           atomic.Int64
	stickyWorkerEnforced    atomic.Int64

	PreferredWorkerIndex int // -1 means "no preference"

	readiness ReadinessFunc
	callback  Callback

	latch sync.WaitGroup
	done  chan struct{}
}

// New creates a job with the given id. preferredWorker is -1 for "no
// preference".
func New(id uint64, preferredWorker int, readiness ReadinessFunc, callback Callback) *Job {
	j := &Job{
		ID:                   id,
		PreferredWorkerIndex: preferredWorker,
		readiness:            readiness,
		callback:             callback,
		done:                 make(chan struct{}),
	}
	j.latch.Add(1)
	return j
}

// MarkStarted records the first transition to executing, for logging.
// It reports true only the first time it is called.
func (j *Job) MarkStarted() bool {
	return j.started.CompareAndSwap(false, true)
}

// IncTaskCount is called on every non-teardown task submission.
func (j *Job) IncTaskCount() { j.taskCount.Add(1) }

// DecTaskCount is called when a non-teardown task completes.
func (j *Job) DecTaskCount() { j.taskCount.Add(-1) }

// TaskCount reports the number of outstanding non-teardown tasks.
func (j *Job) TaskCount() int64 { return j.taskCount.Load() }

// Quiesced reports whether no non-teardown task is outstanding.
func (j *Job) Quiesced() bool { return j.TaskCount() == 0 }

// BeginCompleting compare-and-sets the completing flag, ensuring only
// one caller ever schedules the job's teardown task.
func (j *Job) BeginCompleting() bool {
	return j.completing.CompareAndSwap(false, true)
}

// SetGoingTeardown records that a wrapped task's complete_and_teardown
// outcome or a finished write/load task has moved the job toward
// teardown. The flag is reported in Diagnostics; teardown still runs as
// its own task.
func (j *Job) SetGoingTeardown() { j.goingTeardown.Store(true) }

// GoingTeardown reports whether SetGoingTeardown has been called.
func (j *Job) GoingTeardown() bool { return j.goingTeardown.Load() }

// Ready reports whether the job's readiness predicate (if any) permits
// teardown to finalize now.
func (j *Job) Ready() bool {
	return j.readiness == nil || j.readiness()
}

// Finish invokes the callback and releases the completion latch. It
// must be called at most once, by the teardown task that observes
// Quiesced() && Ready().
func (j *Job) Finish() {
	if j.callback != nil {
		j.callback(j)
	}
	close(j.done)
	j.latch.Done()
}

// Wait blocks until Finish has been called.
func (j *Job) Wait() { j.latch.Wait() }

// Done returns a channel closed when Finish has been called, for
// select-based waiting alongside cancellation.
func (j *Job) Done() <-chan struct{} { return j.done }

// AddTaskDuration accumulates wall-clock time spent inside one task's
// execution, for Diagnostics.
func (j *Job) AddTaskDuration(d time.Duration) { j.taskDurationNanos.Add(d.Nanoseconds()) }

// IncStickyTaskCount is called once per sticky task submitted for this
// job.
func (j *Job) IncStickyTaskCount() { j.stickyTaskCount.Add(1) }

// IncStealingCount is called once a task belonging to this job is
// picked up via work-stealing rather than from its owning worker's own
// queue.
func (j *Job) IncStealingCount() { j.stealingCount.Add(1) }

// IncStickyWorkerEnforced is called once a sticky task's submission
// candidate is overridden by the transaction's already-bound worker.
func (j *Job) IncStickyWorkerEnforced() { j.stickyWorkerEnforced.Add(1) }

// Diagnostics is a point-in-time snapshot of a job's bookkeeping and
// the per-request counters the original logs at finish_job.
type Diagnostics struct {
	ID                       uint64
	TaskCount                int64
	Quiesced                 bool
	GoingTeardown            bool
	PreferredWorkerIndex     int
	TaskDuration             time.Duration
	StickyTaskCount          int64
	TaskStealingCount        int64
	StickyWorkerEnforcedCount int64
}

// Diagnostics returns a snapshot of the job's bookkeeping and counters.
func (j *Job) Diagnostics() Diagnostics {
	return Diagnostics{
		ID:                       j.ID,
		TaskCount:                j.TaskCount(),
		Quiesced:                 j.Quiesced(),
		GoingTeardown:            j.GoingTeardown(),
		PreferredWorkerIndex:     j.PreferredWorkerIndex,
		TaskDuration:             time.Duration(j.taskDurationNanos.Load()),
		StickyTaskCount:          j.stickyTaskCount.Load(),
		TaskStealingCount:        j.stealingCount.Load(),
		StickyWorkerEnforcedCount: j.stickyWorkerEnforced.Load(),
	}
}
