package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog"
)

// HealthChecker probes the pipeline server.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Launcher owns creation and termination of the pipeline server
// process. A nil launcher means the process is managed externally
// (e.g. started by the container entrypoint) and the supervisor only
// waits for it.
type Launcher interface {
	Start() error
	Stop() error
	Running() bool
}

// Supervisor guarantees a healthy pipeline process before any job is
// submitted. It is the sole mutator of the process; every other
// component connects and calls.
type Supervisor struct {
	health   HealthChecker
	launcher Launcher
	log      zerolog.Logger

	mu sync.Mutex
}

func NewSupervisor(health HealthChecker, launcher Launcher, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		health:   health,
		launcher: launcher,
		log:      log.With().Str("component", "supervisor").Logger(),
	}
}

// EnsureReady returns once the pipeline's health endpoint responds, or
// fails with ErrUnavailable after timeout. If the process is not
// running it is launched; if launched but unresponsive past the grace
// period it is killed and relaunched exactly once before failing.
func (s *Supervisor) EnsureReady(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.launcher == nil {
		if err := s.waitHealthy(ctx, timeout); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil
	}

	if !s.launcher.Running() {
		s.log.Info().Msg("starting pipeline process")
		if err := s.launcher.Start(); err != nil {
			return fmt.Errorf("%w: start: %v", ErrUnavailable, err)
		}
	}

	err := s.waitHealthy(ctx, timeout)
	if err == nil {
		return nil
	}

	// Unresponsive past the grace period: one relaunch, then fail.
	s.log.Warn().Err(err).Msg("pipeline unresponsive, relaunching once")
	if stopErr := s.launcher.Stop(); stopErr != nil {
		s.log.Error().Err(stopErr).Msg("stopping unresponsive pipeline")
	}
	if err := s.launcher.Start(); err != nil {
		return fmt.Errorf("%w: relaunch: %v", ErrUnavailable, err)
	}
	if err := s.waitHealthy(ctx, timeout); err != nil {
		return fmt.Errorf("%w: unresponsive after relaunch: %v", ErrUnavailable, err)
	}
	return nil
}

// Shutdown stops a launcher-managed pipeline process on worker
// teardown. No-op for externally managed processes.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.launcher == nil || !s.launcher.Running() {
		return
	}
	s.log.Info().Msg("stopping pipeline process")
	if err := s.launcher.Stop(); err != nil {
		s.log.Error().Err(err).Msg("stopping pipeline process")
	}
}

func (s *Supervisor) waitHealthy(ctx context.Context, timeout time.Duration) error {
	expb := backoff.NewExponentialBackOff()
	expb.InitialInterval = 50 * time.Millisecond
	expb.MaxInterval = 2 * time.Second
	expb.MaxElapsedTime = timeout

	return backoff.Retry(func() error {
		return s.health.Health(ctx)
	}, backoff.WithContext(expb, ctx))
}
