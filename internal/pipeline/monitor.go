package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog"

	"comfy-worker/internal/entity"
)

// HistoryFetcher reads the pipeline's execution record for a handle.
type HistoryFetcher interface {
	History(ctx context.Context, promptID string) (*HistoryEntry, bool, error)
}

// Monitor polls job state until a terminal state is observed or the
// wait deadline elapses. Transient connectivity errors are tolerated
// with backoff; only a run of consecutive protocol errors escalates to
// ErrMonitorFailed.
type Monitor struct {
	history      HistoryFetcher
	pollInterval time.Duration
	maxErrors    int
	log          zerolog.Logger
}

func NewMonitor(history HistoryFetcher, pollInterval time.Duration, maxErrors int, log zerolog.Logger) *Monitor {
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}
	if maxErrors <= 0 {
		maxErrors = 5
	}
	return &Monitor{
		history:      history,
		pollInterval: pollInterval,
		maxErrors:    maxErrors,
		log:          log.With().Str("component", "monitor").Logger(),
	}
}

// AwaitCompletion returns the terminal state of the job, with the
// history entry when one was recorded. On StateTimedOut the job is NOT
// cancelled: the pipeline has no cancel primitive, so the deadline is
// advisory to the caller and the job may keep running in the
// background.
func (m *Monitor) AwaitCompletion(ctx context.Context, promptID string, maxWait time.Duration) (entity.JobState, *HistoryEntry, error) {
	deadline := time.Now().Add(maxWait)

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = m.pollInterval
	retry.MaxInterval = 5 * time.Second
	retry.MaxElapsedTime = 0

	state := entity.StateQueued
	consecutive := 0

	for {
		if time.Now().After(deadline) {
			return entity.StateTimedOut, nil, fmt.Errorf("%w: still %s after %s", ErrTimedOut, state, maxWait)
		}

		entry, ok, err := m.history.History(ctx, promptID)
		switch {
		case err != nil:
			consecutive++
			m.log.Warn().Err(err).Int("consecutive", consecutive).Str("prompt_id", promptID).Msg("poll error")
			if consecutive >= m.maxErrors {
				return state, nil, fmt.Errorf("%w: %d consecutive poll errors: %v", ErrMonitorFailed, consecutive, err)
			}
			if err := m.sleep(ctx, retry.NextBackOff()); err != nil {
				return state, nil, fmt.Errorf("%w: %v", ErrMonitorFailed, err)
			}
			continue

		case ok:
			consecutive = 0
			retry.Reset()
			if entry.Status.StatusStr == "error" {
				return entity.StateFailed, entry, fmt.Errorf("%w: pipeline reported error for job %s", ErrJobFailed, promptID)
			}
			if len(entry.Outputs) > 0 || entry.Status.Completed {
				m.log.Info().Str("prompt_id", promptID).Msg("job completed")
				return entity.StateCompleted, entry, nil
			}
			state = entity.StateRunning

		default:
			// Not in history yet: queued or executing.
			consecutive = 0
			retry.Reset()
		}

		if err := m.sleep(ctx, m.pollInterval); err != nil {
			return state, nil, fmt.Errorf("%w: %v", ErrMonitorFailed, err)
		}
	}
}

func (m *Monitor) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
