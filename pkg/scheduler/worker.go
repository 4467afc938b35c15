package scheduler

import (
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/queryrt/pkg/job"
	"github.com/cuemby/queryrt/pkg/metrics"
)

// workItem is the scheduler's internal runnable: a wrapped task.Task
// invocation or a plain job-kickoff closure, tagged with a label for
// metrics and diagnostics.
type workItem struct {
	label string
	job   *job.Job
	run   func()
}

// condItem is a conditional task parked behind a guard predicate until
// the watcher loop finds it ready.
type condItem struct {
	guard func() bool
	item  workItem
}

// worker owns one local task queue and one local conditional-task
// queue. Queue access is a plain mutex — the teacher's manager
// reconciler takes the same approach for its own per-node state rather
// than reaching for lock-free structures, and the engine's task
// payloads are heavy enough that mutex contention is not the
// bottleneck.
type worker struct {
	idx   int
	sched *Scheduler

	mu     sync.Mutex
	queue  []workItem
	conds  []condItem
	notify chan struct{}

	processed atomic.Int64
	stolen    atomic.Int64
}

func newWorker(idx int, s *Scheduler) *worker {
	return &worker{
		idx:    idx,
		sched:  s,
		notify: make(chan struct{}, 1),
	}
}

// pushLocal appends to the back of the queue and wakes a parked
// worker, if any.
func (w *worker) pushLocal(it workItem) {
	w.mu.Lock()
	w.queue = append(w.queue, it)
	depth := len(w.queue)
	w.mu.Unlock()
	metrics.WorkerQueueDepth.WithLabelValues(workerLabel(w.idx)).Set(float64(depth))
	w.wake()
}

// popLocal pops from the back of the queue (LIFO), favoring whatever
// this worker most recently produced for cache locality.
func (w *worker) popLocal() (workItem, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.queue)
	if n == 0 {
		return workItem{}, false
	}
	it := w.queue[n-1]
	w.queue = w.queue[:n-1]
	metrics.WorkerQueueDepth.WithLabelValues(workerLabel(w.idx)).Set(float64(len(w.queue)))
	return it, true
}

// stealFrom pops from the front of the queue (FIFO), so a thief takes
// the oldest, least cache-warm work rather than competing with the
// owner for what it just pushed.
func (w *worker) stealFrom() (workItem, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return workItem{}, false
	}
	it := w.queue[0]
	w.queue = w.queue[1:]
	metrics.WorkerQueueDepth.WithLabelValues(workerLabel(w.idx)).Set(float64(len(w.queue)))
	return it, true
}

func (w *worker) pushCond(c condItem) {
	w.mu.Lock()
	w.conds = append(w.conds, c)
	w.mu.Unlock()
}

// evaluateConds runs every guard once, promoting ready items to the
// main queue and reporting how many of each outcome it saw.
func (w *worker) evaluateConds() (ready, notReady int) {
	w.mu.Lock()
	remaining := w.conds[:0]
	var promoted []workItem
	for _, c := range w.conds {
		if c.guard() {
			promoted = append(promoted, c.item)
			ready++
		} else {
			remaining = append(remaining, c)
			notReady++
		}
	}
	w.conds = remaining
	w.mu.Unlock()

	for _, it := range promoted {
		w.pushLocal(it)
	}
	return ready, notReady
}

func (w *worker) wake() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// run is the worker's main loop: pop local work, else try to steal,
// else back off (busy-poll or park) per the configured policy.
func (w *worker) run() {
	defer w.sched.wg.Done()

	if w.sched.cfg.CoreAffinity {
		// Pins this goroutine to its current OS thread so the configured
		// initial-core/NUMA intent (logged below, not enforced here --
		// actual core pinning needs a platform syscall outside the
		// standard library) at least holds for the worker's lifetime.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	tries := 0
	for {
		if it, ok := w.popLocal(); ok {
			tries = 0
			w.exec(it, false)
			continue
		}
		if w.sched.cfg.StealingEnabled {
			if it, ok := w.sched.steal(w.idx); ok {
				tries = 0
				w.exec(it, true)
				continue
			}
		}

		select {
		case <-w.sched.stopCh:
			return
		default:
		}

		if w.sched.cfg.BusyWorker {
			time.Sleep(w.sched.cfg.TaskPollingWait)
			continue
		}

		tries++
		if tries < w.sched.cfg.WorkerTryCount {
			time.Sleep(w.sched.cfg.StealingWait)
			continue
		}
		metrics.TasksParked.Inc()
		if w.park(w.sched.cfg.WorkerSuspendTimeout) {
			return
		}
		tries = 0
	}
}

// park waits for a wake-up, the suspend timeout, or shutdown. It
// returns true if the worker should exit.
func (w *worker) park(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.notify:
	case <-timer.C:
	case <-w.sched.stopCh:
		return true
	}
	return false
}

func (w *worker) exec(it workItem, stolen bool) {
	if stolen {
		metrics.TasksStolen.Inc()
		w.stolen.Add(1)
		if it.job != nil {
			it.job.IncStealingCount()
		}
	}
	w.processed.Add(1)
	it.run()
}

func workerLabel(idx int) string {
	return strconv.Itoa(idx)
}
