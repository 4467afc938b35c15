/*
Package log provides structured logging for the query engine using zerolog.

It wraps zerolog to give every subsystem a component-scoped logger with
JSON or console output. Unlike a flat set of field-setters, WithJobID/
WithStepID/WithTxID take the caller's own logger as a base and chain onto
it, so a job's lifecycle (registration, step activation, task execution,
commit staging) can be correlated by job_id/step_id/tx_id without losing
the component tag the caller already established.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	schedLog := log.WithComponent("scheduler")
	jobLog := log.WithJobID(schedLog, jobID)
	jobLog.Info().Msg("job registered")

	taskLog := log.WithStepID(jobLog, ref.StepID)
	taskLog.Debug().Msg("task failed")

# Context loggers

  - WithComponent: attach a component name (scheduler, task, txn, ...)
  - WithJobID / WithStepID / WithTxID: chain execution context onto an
    existing logger, keeping whatever component/job/step scope it
    already carries

There is no WithTaskID: a task has no identity more stable than the job
id and step id it runs under, so job_id+step_id is the correlation key
used throughout.

Never log secrets (encryption keys, transaction tokens) — the engine logs
identifiers and counters only.
*/
package log
