package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"comfy-worker/internal/entity"
	"comfy-worker/internal/queue"
	"comfy-worker/internal/service"
)

// JobQueue is the job source for queue mode.
type JobQueue interface {
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, []byte, error)
	Ack(ctx context.Context, jobID string) error
	StoreResult(ctx context.Context, jobID string, result []byte) error
	RequeueStale(ctx context.Context, max int64) (int64, error)
}

// Runner executes one job; implemented by service.JobService.
type Runner interface {
	Run(ctx context.Context, req *entity.JobRequest) *entity.JobResult
}

// Loop claims jobs one at a time and runs them to a terminal result.
// Deliberately a single goroutine: the pipeline serves one GPU-bound
// job at a time, so the queue consumer must serialize too.
type Loop struct {
	queue      JobQueue
	runner     Runner
	claimDelay time.Duration
	reapEvery  time.Duration
	log        zerolog.Logger
}

func NewLoop(q JobQueue, runner Runner, log zerolog.Logger) *Loop {
	return &Loop{
		queue:      q,
		runner:     runner,
		claimDelay: 5 * time.Second,
		reapEvery:  30 * time.Second,
		log:        log.With().Str("component", "worker").Logger(),
	}
}

func (l *Loop) Run(ctx context.Context) {
	l.log.Info().Msg("worker loop started")

	go l.reap(ctx)

	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("worker loop stopped")
			return
		default:
		}

		jobID, payload, err := l.queue.ClaimBlocking(ctx, l.claimDelay)
		if err != nil {
			if !errors.Is(err, queue.ErrEmpty) && ctx.Err() == nil {
				l.log.Error().Err(err).Msg("claim error")
			}
			continue
		}

		l.process(ctx, jobID, payload)
	}
}

func (l *Loop) process(ctx context.Context, jobID string, payload []byte) {
	start := time.Now()

	var res *entity.JobResult
	req, err := entity.ParseJobPayload(payload)
	if err != nil {
		res = &entity.JobResult{
			JobID:        jobID,
			Status:       entity.StatusError,
			ErrorKind:    string(service.KindInvalidJobRequest),
			ErrorMessage: err.Error(),
			StartedAt:    start.UTC(),
			FinishedAt:   time.Now().UTC(),
		}
	} else {
		if req.ID == "" {
			req.ID = jobID
		}
		res = l.runner.Run(ctx, req)
	}

	out, err := json.Marshal(res)
	if err == nil {
		if err := l.queue.StoreResult(ctx, jobID, out); err != nil {
			l.log.Error().Err(err).Str("job_id", jobID).Msg("store result error")
		}
	}

	// Ack in every case: the result is recorded (or the job failed
	// terminally). If the worker died before this point, the reaper
	// puts the id back on the queue.
	if err := l.queue.Ack(ctx, jobID); err != nil {
		l.log.Error().Err(err).Str("job_id", jobID).Msg("ack error")
	}

	l.log.Info().
		Str("job_id", jobID).
		Str("status", res.Status).
		Dur("duration", time.Since(start)).
		Msg("job processed")
}

// reap periodically returns claimed-but-unacked jobs to the queue
// (left behind by a crashed or restarted worker).
func (l *Loop) reap(ctx context.Context) {
	ticker := time.NewTicker(l.reapEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := l.queue.RequeueStale(ctx, 100)
			if err != nil {
				l.log.Error().Err(err).Msg("requeue error")
				continue
			}
			if n > 0 {
				l.log.Info().Int64("requeued", n).Msg("requeued stale jobs")
			}
		}
	}
}
