// Package scheduler implements the parallel task scheduler: a
// configurable pool of worker goroutines, each with a local task queue
// and a local conditional-task queue, dispatching pkg/task.Task values
// with work-stealing, sticky-transaction affinity and a job registry
// callers can poll or wait on.
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/queryrt/pkg/apperr"
	"github.com/cuemby/queryrt/pkg/config"
	"github.com/cuemby/queryrt/pkg/job"
	"github.com/cuemby/queryrt/pkg/log"
	"github.com/cuemby/queryrt/pkg/metrics"
	"github.com/cuemby/queryrt/pkg/task"
	"github.com/rs/zerolog"
)

// Scheduler owns the worker pool, the job registry and the
// conditional-task watcher. It implements both task.Submitter (so a
// running Task can resubmit itself or hand off cascaded work) and
// request.Scheduler (so a request context can kick off a job's
// bootstrap task).
type Scheduler struct {
	cfg    *config.Config
	logger zerolog.Logger

	workers []*worker
	rr      atomic.Uint64

	mu       sync.RWMutex
	jobs     map[uint64]*jobEntry
	wg       sync.WaitGroup
	stopCh   chan struct{}
	watcherStop chan struct{}
}

type jobEntry struct {
	job  *job.Job
	meta map[string]string
}

// New creates a scheduler sized per cfg.ThreadPoolSize (or a single
// worker if cfg.SingleThread is set) but does not start it.
func New(cfg *config.Config) *Scheduler {
	n := cfg.ThreadPoolSize
	if cfg.SingleThread || n < 1 {
		n = 1
	}
	s := &Scheduler{
		cfg:    cfg,
		logger: log.WithComponent("scheduler"),
		jobs:   make(map[uint64]*jobEntry),
		stopCh: make(chan struct{}),
	}
	s.workers = make([]*worker, n)
	for i := range s.workers {
		s.workers[i] = newWorker(i, s)
	}
	return s
}

// Start launches every worker goroutine and the conditional-task
// watcher loop.
func (s *Scheduler) Start() {
	s.logger.Info().
		Int("workers", len(s.workers)).
		Bool("stealing", s.cfg.StealingEnabled).
		Bool("core_affinity", s.cfg.CoreAffinity).
		Int("initial_core", s.cfg.InitialCore).
		Msg("scheduler starting")

	s.wg.Add(len(s.workers))
	for _, w := range s.workers {
		go w.run()
	}

	s.watcherStop = make(chan struct{})
	go s.watch()
}

// Stop signals every worker and the watcher to exit and waits for the
// workers to drain their current task.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	close(s.watcherStop)
	for _, w := range s.workers {
		w.wake()
	}
	s.wg.Wait()
}

// Submit implements task.Submitter for callers outside any worker
// goroutine (job bootstrap from the engine, tests). Tasks resubmitted
// from inside a running task go through the per-worker view instead,
// so they can honor PreferredWorkerForCurrentThread.
func (s *Scheduler) Submit(t *task.Task) {
	s.submitFrom(t, -1)
}

// SubmitForJob implements request.Scheduler: it registers j, arranges
// for its completion latency to be observed, and enqueues run (the
// caller's job-bootstrap closure) on the preferred worker, or
// round-robin if preferredWorker is negative.
func (s *Scheduler) SubmitForJob(j *job.Job, preferredWorker int, run func()) {
	s.registerJob(j)
	metrics.JobsActive.Inc()
	start := time.Now()
	go func() {
		<-j.Done()
		elapsed := time.Since(start)
		metrics.JobCompletionDuration.Observe(elapsed.Seconds())
		metrics.JobsActive.Dec()
		log.WithJobID(s.logger, j.ID).Info().Dur("elapsed", elapsed).Msg("job completed")
		s.deregisterJob(j.ID)
	}()

	idx := preferredWorker
	if idx < 0 {
		idx = s.nextRoundRobin()
	} else {
		idx %= len(s.workers)
	}
	s.workers[idx].pushLocal(workItem{label: "job_kickoff", run: run})
}

// SubmitConditional parks t behind guard on a worker chosen the same
// way a non-sticky wrapped task would be, for the watcher loop to
// promote once guard reports true.
func (s *Scheduler) SubmitConditional(t *task.Task, guard func() bool) {
	idx := s.resolveWorker(t, -1)
	s.workers[idx].pushCond(condItem{guard: guard, item: s.wrap(t, idx)})
}

func (s *Scheduler) submitFrom(t *task.Task, fromIdx int) {
	idx := s.resolveWorker(t, fromIdx)
	metrics.TasksSubmitted.WithLabelValues(t.Kind.String()).Inc()
	s.workers[idx].pushLocal(s.wrap(t, idx))
}

func (s *Scheduler) wrap(t *task.Task, idx int) workItem {
	view := workerView{s: s, idx: idx}
	return workItem{
		label: t.Kind.String(),
		job:   t.Job,
		run: func() {
			timer := metrics.NewTimer()
			t.Run(view)
			d := timer.Duration()
			metrics.TaskExecutionDuration.WithLabelValues(t.Kind.String()).Observe(d.Seconds())
			if t.Job != nil {
				t.Job.AddTaskDuration(d)
			}
		},
	}
}

// resolveWorker applies the submission policy: a sticky wrapped task
// under a transaction binds (or is rerouted to) that transaction's
// worker; everything else honors the job's preferred worker, then the
// submitting worker (if PreferredWorkerForCurrentThread), then
// round-robin.
func (s *Scheduler) resolveWorker(t *task.Task, fromIdx int) int {
	if t.Kind == task.Wrapped && t.Op != nil && t.Op.Sticky() {
		if tx, ok := t.Req.Transaction(); ok {
			if t.Job != nil {
				t.Job.IncStickyTaskCount()
			}
			candidate := s.preferredOrFrom(t, fromIdx)
			bound, enforced := tx.BindSticky(candidate)
			if enforced {
				metrics.StickyEnforced.Inc()
				if t.Job != nil {
					t.Job.IncStickyWorkerEnforced()
				}
			}
			return bound
		}
	}
	return s.preferredOrFrom(t, fromIdx)
}

func (s *Scheduler) preferredOrFrom(t *task.Task, fromIdx int) int {
	if t.Job != nil && t.Job.PreferredWorkerIndex >= 0 {
		return t.Job.PreferredWorkerIndex % len(s.workers)
	}
	if fromIdx >= 0 && s.cfg.PreferredWorkerForCurrentThread {
		return fromIdx
	}
	return s.nextRoundRobin()
}

func (s *Scheduler) nextRoundRobin() int {
	n := s.rr.Add(1) - 1
	return int(n % uint64(len(s.workers)))
}

// steal tries every other worker once, starting just past self, and
// returns the first item found.
func (s *Scheduler) steal(self int) (workItem, bool) {
	n := len(s.workers)
	for i := 1; i < n; i++ {
		victim := s.workers[(self+i)%n]
		if it, ok := victim.stealFrom(); ok {
			return it, true
		}
	}
	return workItem{}, false
}

// watch periodically evaluates every worker's conditional-task queue.
func (s *Scheduler) watch() {
	ticker := time.NewTicker(s.cfg.WatcherInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, w := range s.workers {
				ready, notReady := w.evaluateConds()
				if ready > 0 {
					metrics.WatcherEvaluations.WithLabelValues("ready").Add(float64(ready))
				}
				if notReady > 0 {
					metrics.WatcherEvaluations.WithLabelValues("not_ready").Add(float64(notReady))
				}
			}
		case <-s.watcherStop:
			return
		}
	}
}

func (s *Scheduler) registerJob(j *job.Job) {
	s.mu.Lock()
	s.jobs[j.ID] = &jobEntry{job: j, meta: map[string]string{}}
	s.mu.Unlock()
	log.WithJobID(s.logger, j.ID).Debug().Msg("job registered")
}

func (s *Scheduler) deregisterJob(id uint64) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
	log.WithJobID(s.logger, id).Debug().Msg("job deregistered")
}

// SetJobMeta attaches a diagnostic label (SQL text, transaction id,
// statement kind) to a registered job, for Diagnostics to report. It
// is a no-op if the job is not (or no longer) registered.
func (s *Scheduler) SetJobMeta(id uint64, key, value string) {
	s.mu.RLock()
	e, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return
	}
	s.mu.Lock()
	e.meta[key] = value
	s.mu.Unlock()
}

// WaitForProgress blocks until the named job finishes, or returns a
// TargetNotFoundException if no such job is registered.
func (s *Scheduler) WaitForProgress(id uint64) error {
	s.mu.RLock()
	e, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return apperr.Newf(apperr.TargetNotFoundException, "job %d is not registered", id)
	}
	<-e.job.Done()
	return nil
}

// JobDiagnostics pairs a job's own bookkeeping snapshot with the
// caller-attached labels (SQL text, transaction id, statement kind)
// the engine records via SetJobMeta.
type JobDiagnostics struct {
	job.Diagnostics
	Meta map[string]string
}

// WorkerDiagnostics summarizes one worker's queues and throughput.
type WorkerDiagnostics struct {
	Index          int
	QueueDepth     int
	ConditionDepth int
	Processed      int64
	Stolen         int64
}

// DumpJob returns one job's diagnostics snapshot, for finish_job-style
// logging at teardown. ok is false if the job is not (or no longer)
// registered.
func (s *Scheduler) DumpJob(id uint64) (diag JobDiagnostics, ok bool) {
	s.mu.RLock()
	e, found := s.jobs[id]
	s.mu.RUnlock()
	if !found {
		return JobDiagnostics{}, false
	}
	meta := make(map[string]string, len(e.meta))
	s.mu.RLock()
	for k, v := range e.meta {
		meta[k] = v
	}
	s.mu.RUnlock()
	return JobDiagnostics{Diagnostics: e.job.Diagnostics(), Meta: meta}, true
}

// Diagnostics returns a snapshot of every registered job and worker,
// for an operator-facing status dump.
func (s *Scheduler) Diagnostics() ([]JobDiagnostics, []WorkerDiagnostics) {
	s.mu.RLock()
	jobs := make([]JobDiagnostics, 0, len(s.jobs))
	for _, e := range s.jobs {
		meta := make(map[string]string, len(e.meta))
		for k, v := range e.meta {
			meta[k] = v
		}
		jobs = append(jobs, JobDiagnostics{
			Diagnostics: e.job.Diagnostics(),
			Meta:        meta,
		})
	}
	s.mu.RUnlock()

	workers := make([]WorkerDiagnostics, len(s.workers))
	for i, w := range s.workers {
		w.mu.Lock()
		qd, cd := len(w.queue), len(w.conds)
		w.mu.Unlock()
		workers[i] = WorkerDiagnostics{
			Index:          i,
			QueueDepth:     qd,
			ConditionDepth: cd,
			Processed:      w.processed.Load(),
			Stolen:         w.stolen.Load(),
		}
	}
	return jobs, workers
}

// workerView is the per-worker face of task.Submitter, so a task
// resubmitting itself (or handing off a cascaded task) from inside a
// worker's goroutine carries that worker's identity as the submission
// hint.
type workerView struct {
	s   *Scheduler
	idx int
}

func (v workerView) Submit(t *task.Task) {
	v.s.submitFrom(t, v.idx)
}
