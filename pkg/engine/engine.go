// Package engine is the glue that ties the DAG runtime, the task
// scheduler, the job/request contexts and the CC-engine transaction
// manager into the three entry points an external caller drives: submit
// a resolved plan (execute_async), resolve a prepared statement against
// parameters before submitting its executable, and commit a transaction
// (commit_async). It is the single place that knows how to construct a
// job and request pair and wire them into the scheduler correctly.
package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/queryrt/pkg/arena"
	"github.com/cuemby/queryrt/pkg/config"
	"github.com/cuemby/queryrt/pkg/expr"
	"github.com/cuemby/queryrt/pkg/job"
	"github.com/cuemby/queryrt/pkg/log"
	"github.com/cuemby/queryrt/pkg/plan"
	"github.com/cuemby/queryrt/pkg/request"
	"github.com/cuemby/queryrt/pkg/scheduler"
	"github.com/cuemby/queryrt/pkg/storage"
	"github.com/cuemby/queryrt/pkg/task"
	"github.com/cuemby/queryrt/pkg/txn"
)

// Engine owns one node's full collaborator set: storage, the table/index
// provider, the CC-engine transaction manager and the task scheduler.
// Construction order mirrors the teacher's cluster Manager — open the
// durable stores first, start the scheduler last, so nothing races
// against a half-initialized dependency.
type Engine struct {
	cfg      *config.Config
	pool     *arena.Pool
	db       *storage.KVS
	provider *storage.Provider
	txns     *txn.Manager
	sched    *scheduler.Scheduler
	logger   zerolog.Logger

	nextJobID atomic.Uint64
}

// Options configures Engine construction.
type Options struct {
	Config   *config.Config
	DataDir  string
	NodeID   string
	Provider *storage.Provider
}

// New opens storage under opts.DataDir, starts the single-node raft
// transaction log, sizes and starts the scheduler, and returns a
// ready-to-use Engine. Close releases all of it in the reverse order.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	provider := opts.Provider
	if provider == nil {
		provider = storage.NewProvider()
	}

	db, err := storage.Open(opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("engine: open storage: %w", err)
	}

	txns, err := txn.NewManager(opts.NodeID, opts.DataDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("engine: start transaction manager: %w", err)
	}

	sched := scheduler.New(cfg)
	sched.Start()

	e := &Engine{
		cfg:      cfg,
		pool:     arena.NewPool(),
		db:       db,
		provider: provider,
		txns:     txns,
		sched:    sched,
		logger:   log.WithComponent("engine"),
	}
	e.logger.Info().Str("node_id", opts.NodeID).Str("data_dir", opts.DataDir).Msg("engine started")
	return e, nil
}

// Close stops the scheduler, shuts down the transaction log and closes
// storage. It does not wait for in-flight jobs to finish; callers that
// need a clean drain should wait on every outstanding job's Done()
// channel first.
func (e *Engine) Close() error {
	e.sched.Stop()
	if err := e.txns.Shutdown(); err != nil {
		e.logger.Error().Err(err).Msg("transaction manager shutdown failed")
	}
	return e.db.Close()
}

// Provider returns the table/index provider, for DDL paths (out of
// scope here) to register tables into before a plan referencing them
// runs.
func (e *Engine) Provider() *storage.Provider { return e.provider }

// DB returns the underlying KVS handle, for callers (dump/load harness
// setup, tests) that need to open their own transactions directly.
func (e *Engine) DB() *storage.KVS { return e.db }

// BeginTransaction starts a new CC-engine transaction.
func (e *Engine) BeginTransaction(opts txn.Options) (*txn.Transaction, error) {
	return e.txns.CreateTransaction(opts)
}

// AbortTransaction marks tx going-to-abort; it finalizes once every task
// currently holding it open has returned.
func (e *Engine) AbortTransaction(tx *txn.Transaction) {
	e.txns.AbortTransaction(tx)
}

// CommitAsync is the literal commit_async entry point: it forwards to
// the transaction manager, which stages the accepted/available/stored/
// propagated callback sequence over the replicated log.
func (e *Engine) CommitAsync(tx *txn.Transaction, opts txn.CommitOptions, cb txn.CommitCallback) {
	e.txns.Commit(tx, opts, cb)
}

func (e *Engine) newJobID() uint64 { return e.nextJobID.Add(1) }

// newRequestJob builds a (*job.Job, *request.Context) pair whose
// finalize callback closes the request's result channel exactly once,
// at teardown. The job references req before req exists; that is safe
// because the callback only ever fires asynchronously, after this
// function has returned and assigned req.
func (e *Engine) newRequestJob(preferredWorker, resultBuffer int, tx *txn.Transaction) (*job.Job, *request.Context) {
	id := e.newJobID()
	var req *request.Context
	j := job.New(id, preferredWorker, nil, func(*job.Job) { req.CloseResults() })
	req = request.New(e.cfg, e.pool, e.db, e.provider, e.sched, j, resultBuffer)
	if tx != nil {
		req.SetTransaction(tx)
	}
	return j, req
}

func (e *Engine) labelJob(id uint64, label string, meta map[string]string) {
	e.sched.SetJobMeta(id, "correlation_id", uuid.NewString())
	if label != "" {
		e.sched.SetJobMeta(id, "kind", label)
	}
	for k, v := range meta {
		e.sched.SetJobMeta(id, k, v)
	}
}

// ExecuteAsync is the execute_async entry point: it builds a job and
// request context around graph, submits the bootstrap task that
// activates the graph's source steps, and returns immediately. The
// caller drains req.Results until the channel closes and consults
// req.Errors.Err() for the job's outcome; req.Job.Wait() (or
// req.Job.Done()) blocks until teardown has run.
func (e *Engine) ExecuteAsync(graph *plan.Graph, preferredWorker, resultBuffer int, tx *txn.Transaction, meta map[string]string) *request.Context {
	j, req := e.newRequestJob(preferredWorker, resultBuffer, tx)
	rt := task.NewRuntime(graph, j, req)

	j.IncTaskCount()
	e.sched.SubmitForJob(j, preferredWorker, func() {
		e.sched.Submit(&task.Task{Kind: task.Bootstrap, Req: req, Job: j, Runtime: rt, Graph: graph})
	})
	e.labelJob(j.ID, "execute", meta)
	return req
}

// ResolveAsync is the resolve entry point: it submits a resolve task
// that, on success, hands the resolved Executor to a write or load task
// under the same job — the concrete realization of §4.9's "resolve:
// resolve a prepared statement with parameters, then submit its
// executable". On resolution failure the job moves straight to
// teardown with the error already recorded.
func (e *Engine) ResolveAsync(prepared *task.Prepared, params []expr.Value, kind task.Kind, preferredWorker, resultBuffer int, tx *txn.Transaction, meta map[string]string) *request.Context {
	if kind != task.Write && kind != task.Load {
		panic("engine: ResolveAsync kind must be task.Write or task.Load")
	}

	j, req := e.newRequestJob(preferredWorker, resultBuffer, tx)
	rt := task.NewRuntime(plan.NewGraph(), j, req)

	stmt := &task.Statement{
		Prepared: prepared,
		Params:   params,
		Submit: func(req *request.Context, exec task.Executor) error {
			j.IncTaskCount()
			e.sched.Submit(&task.Task{Kind: kind, Req: req, Job: j, Runtime: rt, Exec: exec})
			return nil
		},
	}

	j.IncTaskCount()
	e.sched.SubmitForJob(j, preferredWorker, func() {
		e.sched.Submit(&task.Task{Kind: task.Resolve, Req: req, Job: j, Runtime: rt, Statement: stmt})
	})
	e.labelJob(j.ID, kind.String(), meta)
	return req
}

// SubmitWriteLoad runs exec directly as a write or load task under a
// fresh job, bypassing statement resolution — the path a caller takes
// when it already holds a concrete Executor (a compiled DML body, or
// one of this package's dump/load executors) rather than a Prepared
// statement to resolve against parameters.
func (e *Engine) SubmitWriteLoad(exec task.Executor, kind task.Kind, preferredWorker int, tx *txn.Transaction, meta map[string]string) *request.Context {
	if kind != task.Write && kind != task.Load {
		panic("engine: SubmitWriteLoad kind must be task.Write or task.Load")
	}

	j, req := e.newRequestJob(preferredWorker, 0, tx)
	rt := task.NewRuntime(plan.NewGraph(), j, req)

	j.IncTaskCount()
	e.sched.SubmitForJob(j, preferredWorker, func() {
		e.sched.Submit(&task.Task{Kind: kind, Req: req, Job: j, Runtime: rt, Exec: exec})
	})
	e.labelJob(j.ID, kind.String(), meta)
	return req
}

// Diagnostics returns the scheduler's job and worker diagnostics
// snapshot, the dump_job / diagnostics surface spec.md §4.10 calls for.
func (e *Engine) Diagnostics() ([]scheduler.JobDiagnostics, []scheduler.WorkerDiagnostics) {
	return e.sched.Diagnostics()
}
