package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"comfy-worker/internal/entity"
	"comfy-worker/internal/pipeline"
	"comfy-worker/internal/trigger"
)

// Ports of the job lifecycle. Implementations: pipeline.Supervisor,
// pipeline.Client, pipeline.Monitor, pipeline.Collector,
// storage.S3Uploader, trigger.Registry.

type Supervisor interface {
	EnsureReady(ctx context.Context, timeout time.Duration) error
}

type PipelineClient interface {
	Submit(ctx context.Context, workflow json.RawMessage) (string, error)
	UploadInput(ctx context.Context, name string, r io.Reader) error
}

type Monitor interface {
	AwaitCompletion(ctx context.Context, promptID string, maxWait time.Duration) (entity.JobState, *pipeline.HistoryEntry, error)
}

type Collector interface {
	Collect(entry *pipeline.HistoryEntry) ([]pipeline.CollectedFile, error)
}

type Uploader interface {
	Upload(ctx context.Context, jobID string, files []pipeline.CollectedFile, spec *entity.OutputSpec) ([]string, error)
}

type Triggers interface {
	Prepare(spec *entity.TriggerSpec) (trigger.Trigger, error)
}

// Config bounds the blocking steps of a job lifecycle.
type Config struct {
	ReadyTimeout  time.Duration
	MaxWait       time.Duration
	UploadTimeout time.Duration
	RefreshWorker bool
}

// JobService is the worker entry point: it drives one job through
// Validating -> Submitting -> Monitoring -> Collecting -> Done and
// always produces exactly one terminal structured result. At most one
// job is in flight at a time; the pipeline is single-instance and
// GPU-bound, so correctness here means serialization.
type JobService struct {
	sup       Supervisor
	pipe      PipelineClient
	monitor   Monitor
	collector Collector
	uploader  Uploader
	triggers  Triggers
	cfg       Config
	fetch     *http.Client
	log       zerolog.Logger

	busy atomic.Bool
}

func NewJobService(sup Supervisor, pipe PipelineClient, monitor Monitor, collector Collector, uploader Uploader, triggers Triggers, cfg Config, log zerolog.Logger) *JobService {
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 2 * time.Minute
	}
	return &JobService{
		sup:       sup,
		pipe:      pipe,
		monitor:   monitor,
		collector: collector,
		uploader:  uploader,
		triggers:  triggers,
		cfg:       cfg,
		fetch:     &http.Client{Timeout: cfg.UploadTimeout},
		log:       log.With().Str("component", "job_service").Logger(),
	}
}

// Run executes one job and never returns an ambiguous answer: either a
// success payload with artifacts or an error payload with a kind and
// message. A fresh correlation id is minted when the request carries
// none, so a handle from a prior invocation can never leak into this
// one.
func (s *JobService) Run(ctx context.Context, req *entity.JobRequest) *entity.JobResult {
	jobID := ""
	if req != nil {
		jobID = req.ID
	}
	if jobID == "" {
		jobID = entity.NewJobID()
	}

	res := &entity.JobResult{
		JobID:         jobID,
		StartedAt:     time.Now().UTC(),
		RefreshWorker: s.cfg.RefreshWorker,
	}
	log := s.log.With().Str("job_id", jobID).Logger()

	if !s.busy.CompareAndSwap(false, true) {
		return s.fail(res, log, ErrWorkerBusy)
	}
	defer s.busy.Store(false)

	artifacts, err := s.execute(ctx, jobID, req, log)
	if err != nil {
		return s.fail(res, log, err)
	}

	res.Status = entity.StatusSuccess
	res.Artifacts = artifacts
	res.FinishedAt = time.Now().UTC()
	log.Info().
		Int("artifacts", len(artifacts)).
		Dur("duration", res.FinishedAt.Sub(res.StartedAt)).
		Msg("job succeeded")
	return res
}

func (s *JobService) fail(res *entity.JobResult, log zerolog.Logger, err error) *entity.JobResult {
	kind := Classify(err)
	res.Status = entity.StatusError
	res.ErrorKind = string(kind)
	res.ErrorMessage = err.Error()
	res.FinishedAt = time.Now().UTC()
	log.Error().Err(err).Str("kind", string(kind)).Msg("job failed")
	return res
}

func (s *JobService) execute(ctx context.Context, jobID string, req *entity.JobRequest, log zerolog.Logger) ([]entity.Artifact, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	// Prepare the trigger before anything irreversible happens: a
	// misconfigured trigger is a caller error, not a wasted GPU run.
	var trig trigger.Trigger
	if req.Trigger != nil {
		t, err := s.triggers.Prepare(req.Trigger)
		if err != nil {
			return nil, fmt.Errorf("%w: trigger: %v", ErrInvalidJobRequest, err)
		}
		trig = t
	}

	if err := s.sup.EnsureReady(ctx, s.cfg.ReadyTimeout); err != nil {
		return nil, err
	}

	if err := s.uploadInputs(ctx, req, log); err != nil {
		return nil, err
	}

	handle, err := s.pipe.Submit(ctx, req.Workflow)
	if err != nil {
		return nil, err
	}
	log.Info().Str("prompt_id", handle).Msg("workflow submitted")

	state, entry, err := s.monitor.AwaitCompletion(ctx, handle, s.cfg.MaxWait)
	if err != nil {
		log.Warn().Str("state", string(state)).Str("prompt_id", handle).Msg("job did not complete")
		return nil, err
	}

	files, err := s.collector.Collect(entry)
	if err != nil {
		return nil, err
	}

	artifacts, outputPayload, err := s.deliver(ctx, jobID, files, req.Output)
	if err != nil {
		return nil, err
	}

	if trig != nil {
		// Artifacts exist by now; a failed trigger is reported in the
		// log but must not turn the finished job into an error.
		if err := trig.Fire(ctx, outputPayload); err != nil {
			log.Error().Err(err).Msg("post-completion trigger failed")
		}
	}

	return artifacts, nil
}

// uploadInputs pushes inline images and remote files into the pipeline
// before submission, mirroring what an operator would place in the
// pipeline's input directory by hand.
func (s *JobService) uploadInputs(ctx context.Context, req *entity.JobRequest, log zerolog.Logger) error {
	for _, img := range req.Images {
		blob, err := base64.StdEncoding.DecodeString(img.Image)
		if err != nil {
			return fmt.Errorf("%w: image %s: %v", ErrInvalidJobRequest, img.Name, err)
		}
		if err := s.pipe.UploadInput(ctx, img.Name, bytes.NewReader(blob)); err != nil {
			return fmt.Errorf("%w: upload image %s: %v", pipeline.ErrSubmissionFailed, img.Name, err)
		}
		log.Debug().Str("name", img.Name).Msg("inline image uploaded")
	}

	for _, f := range req.FileURLs {
		if err := s.uploadFromURL(ctx, f); err != nil {
			return err
		}
		log.Debug().Str("name", f.Name).Str("url", f.URL).Msg("remote file uploaded")
	}

	return nil
}

func (s *JobService) uploadFromURL(ctx context.Context, f entity.FileURLInput) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: file %s: %v", ErrInvalidJobRequest, f.Name, err)
	}
	resp, err := s.fetch.Do(req)
	if err != nil {
		return fmt.Errorf("%w: fetch %s: %v", ErrInvalidJobRequest, f.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: fetch %s: status %d", ErrInvalidJobRequest, f.Name, resp.StatusCode)
	}

	if err := s.pipe.UploadInput(ctx, f.Name, resp.Body); err != nil {
		return fmt.Errorf("%w: upload file %s: %v", pipeline.ErrSubmissionFailed, f.Name, err)
	}
	return nil
}

// deliver turns collected files into response artifacts, either by
// uploading them to the job's S3 bucket or by inlining them as base64.
// The string payload handed to triggers is a JSON array of URLs or
// base64 strings, in artifact order.
func (s *JobService) deliver(ctx context.Context, jobID string, files []pipeline.CollectedFile, spec *entity.OutputSpec) ([]entity.Artifact, string, error) {
	if spec != nil && spec.Type == entity.OutputTypeS3 {
		urls, err := s.uploader.Upload(ctx, jobID, files, spec)
		if err != nil {
			return nil, "", fmt.Errorf("%w: s3 delivery: %v", pipeline.ErrOutputMissing, err)
		}
		artifacts := make([]entity.Artifact, len(files))
		for i, f := range files {
			artifacts[i] = entity.Artifact{Name: f.Name, ContentType: f.ContentType, URL: urls[i]}
		}
		payload, _ := json.Marshal(urls)
		return artifacts, string(payload), nil
	}

	artifacts := make([]entity.Artifact, len(files))
	values := make([]string, len(files))
	for i, f := range files {
		encoded := base64.StdEncoding.EncodeToString(f.Data)
		artifacts[i] = entity.Artifact{Name: f.Name, ContentType: f.ContentType, Data: encoded}
		values[i] = encoded
	}
	payload, _ := json.Marshal(values)
	return artifacts, string(payload), nil
}
