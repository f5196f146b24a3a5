package pipeline

import "errors"

// Sentinel errors for the pipeline job lifecycle. Callers match with
// errors.Is; the worker entry point maps them to the external result
// payload and process exit code.
var (
	// ErrUnavailable: the pipeline server never became healthy, even
	// after the single relaunch the supervisor is allowed.
	ErrUnavailable = errors.New("pipeline unavailable")

	// ErrSubmissionFailed: the queueing call failed or the pipeline
	// rejected the workflow. Submission is not idempotent, so it is
	// never retried.
	ErrSubmissionFailed = errors.New("workflow submission failed")

	// ErrMonitorFailed: too many consecutive protocol errors while
	// polling; the job outcome is unknown.
	ErrMonitorFailed = errors.New("progress monitoring failed")

	// ErrJobFailed: the pipeline recorded a terminal error for the job
	// itself (a node crashed, a model was missing, ...).
	ErrJobFailed = errors.New("generation failed")

	// ErrTimedOut: the wait deadline elapsed with the job still queued
	// or running. The job is not cancelled (the pipeline has no cancel
	// primitive); the timeout is advisory to the caller.
	ErrTimedOut = errors.New("job timed out")

	// ErrOutputMissing: a completed job's expected artifact could not
	// be found or read.
	ErrOutputMissing = errors.New("job output missing")
)
