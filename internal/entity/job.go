package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobState tracks a job through the pipeline lifecycle. Transitions are
// monotonic: once a terminal state is reached it is never left.
type JobState string

const (
	StateQueued    JobState = "queued"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateTimedOut  JobState = "timed_out"
)

// Terminal reports whether the state ends the job lifecycle.
func (s JobState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut:
		return true
	}
	return false
}

// ImageInput is an inline input asset: a base64 encoded image uploaded
// to the pipeline before the workflow is queued.
type ImageInput struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// FileURLInput is a remote input asset fetched by the worker and
// streamed to the pipeline's upload endpoint.
type FileURLInput struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// OutputSpec selects how collected artifacts are delivered back to the
// caller: inline base64 (default) or uploaded to an S3 bucket.
type OutputSpec struct {
	Type        string `json:"type"` // "s3" or "base64"
	Bucket      string `json:"bucket,omitempty"`
	EndpointURL string `json:"endpoint_url,omitempty"`
	KeyPrefix   string `json:"key_prefix,omitempty"`
}

const (
	OutputTypeS3     = "s3"
	OutputTypeBase64 = "base64"
)

// TriggerSpec describes an optional side effect fired once the job has
// completed successfully, e.g. updating a database row with the output
// URLs or posting the result to a webhook.
type TriggerSpec struct {
	Service     string `json:"service"` // "postgres" or "webhook"
	KeyPrefix   string `json:"key_prefix,omitempty"`
	Table       string `json:"table,omitempty"`
	IDField     string `json:"id_field,omitempty"`
	OutputField string `json:"output_field,omitempty"`
	StatusField string `json:"status_field,omitempty"`
	ID          string `json:"id,omitempty"`
	Status      string `json:"status,omitempty"`
	URL         string `json:"url,omitempty"`
}

// JobRequest is one unit of work handed to the worker. Immutable once
// accepted; exactly one request is in flight per worker instance.
type JobRequest struct {
	ID       string          `json:"id,omitempty"`
	Workflow json.RawMessage `json:"workflow"`
	Images   []ImageInput    `json:"images,omitempty"`
	FileURLs []FileURLInput  `json:"file_urls,omitempty"`
	Output   *OutputSpec     `json:"output,omitempty"`
	Trigger  *TriggerSpec    `json:"trigger,omitempty"`
}

// NewJobID mints a fresh correlation id for an invocation that arrived
// without one, so a stale handle from a prior job can never be mistaken
// for the current one.
func NewJobID() string {
	return uuid.NewString()
}

// Artifact is one produced output of a completed job.
type Artifact struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	// Exactly one of Data (base64 payload) or URL (uploaded location)
	// is set, depending on the job's output spec.
	Data string `json:"data,omitempty"`
	URL  string `json:"url,omitempty"`
}

// JobResult is the single terminal answer of a worker invocation.
type JobResult struct {
	JobID         string     `json:"job_id"`
	Status        string     `json:"status"` // "success" or "error"
	Artifacts     []Artifact `json:"artifacts,omitempty"`
	ErrorKind     string     `json:"kind,omitempty"`
	ErrorMessage  string     `json:"message,omitempty"`
	RefreshWorker bool       `json:"refresh_worker,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    time.Time  `json:"finished_at"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Succeeded reports whether the invocation produced artifacts.
func (r *JobResult) Succeeded() bool {
	return r.Status == StatusSuccess
}
