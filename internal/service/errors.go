package service

import (
	"errors"

	"comfy-worker/internal/pipeline"
)

// Kind is the external error taxonomy. The job service is the only
// place that maps internal errors onto it; nothing below this layer
// knows about result payloads or exit codes.
type Kind string

const (
	KindNone                Kind = ""
	KindInvalidJobRequest   Kind = "InvalidJobRequest"
	KindPipelineUnavailable Kind = "PipelineUnavailable"
	KindSubmissionFailed    Kind = "SubmissionFailed"
	KindMonitorFailed       Kind = "MonitorFailed"
	KindTimedOut            Kind = "TimedOut"
	KindOutputMissing       Kind = "OutputMissing"
	KindJobFailed           Kind = "JobFailed"
	KindWorkerBusy          Kind = "WorkerBusy"
	KindInternal            Kind = "Internal"
)

var (
	// ErrInvalidJobRequest: the request is malformed or references
	// unresolvable input assets. Caller error; never retried here and
	// the pipeline is never contacted.
	ErrInvalidJobRequest = errors.New("invalid job request")

	// ErrWorkerBusy: a job is already in flight on this single-GPU
	// worker instance.
	ErrWorkerBusy = errors.New("a job is already in flight")
)

// Classify maps any error surfaced by the job lifecycle to its kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidJobRequest):
		return KindInvalidJobRequest
	case errors.Is(err, ErrWorkerBusy):
		return KindWorkerBusy
	case errors.Is(err, pipeline.ErrUnavailable):
		return KindPipelineUnavailable
	case errors.Is(err, pipeline.ErrSubmissionFailed):
		return KindSubmissionFailed
	case errors.Is(err, pipeline.ErrTimedOut):
		return KindTimedOut
	case errors.Is(err, pipeline.ErrMonitorFailed):
		return KindMonitorFailed
	case errors.Is(err, pipeline.ErrJobFailed):
		return KindJobFailed
	case errors.Is(err, pipeline.ErrOutputMissing):
		return KindOutputMissing
	default:
		return KindInternal
	}
}

// ExitCode maps a kind to the worker process exit code, so a platform
// dispatcher can distinguish failure classes without parsing output.
func (k Kind) ExitCode() int {
	switch k {
	case KindNone:
		return 0
	case KindInvalidJobRequest:
		return 2
	case KindPipelineUnavailable:
		return 3
	case KindSubmissionFailed:
		return 4
	case KindMonitorFailed:
		return 5
	case KindTimedOut:
		return 6
	case KindOutputMissing:
		return 7
	case KindJobFailed:
		return 8
	default:
		return 1
	}
}
