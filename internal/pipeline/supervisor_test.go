package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	check func() error
}

func (c *stubChecker) Health(ctx context.Context) error { return c.check() }

func alwaysHealthy() *stubChecker {
	return &stubChecker{check: func() error { return nil }}
}

func neverHealthy() *stubChecker {
	return &stubChecker{check: func() error { return errors.New("connection refused") }}
}

type stubLauncher struct {
	starts   int
	stops    int
	running  bool
	startErr error
}

func (l *stubLauncher) Start() error {
	l.starts++
	if l.startErr != nil {
		return l.startErr
	}
	l.running = true
	return nil
}

func (l *stubLauncher) Stop() error {
	l.stops++
	l.running = false
	return nil
}

func (l *stubLauncher) Running() bool { return l.running }

func TestSupervisor_ExternalProcessHealthy(t *testing.T) {
	sup := NewSupervisor(alwaysHealthy(), nil, zerolog.Nop())
	require.NoError(t, sup.EnsureReady(context.Background(), time.Second))
}

func TestSupervisor_ExternalProcessDown(t *testing.T) {
	sup := NewSupervisor(neverHealthy(), nil, zerolog.Nop())
	err := sup.EnsureReady(context.Background(), 10*time.Millisecond)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestSupervisor_LaunchesProcessOnce(t *testing.T) {
	launcher := &stubLauncher{}
	// healthy as soon as the process is running
	checker := &stubChecker{check: func() error {
		if launcher.running {
			return nil
		}
		return errors.New("not running")
	}}

	sup := NewSupervisor(checker, launcher, zerolog.Nop())
	require.NoError(t, sup.EnsureReady(context.Background(), time.Second))
	require.Equal(t, 1, launcher.starts)
	require.Equal(t, 0, launcher.stops)

	// already running: no second start
	require.NoError(t, sup.EnsureReady(context.Background(), time.Second))
	require.Equal(t, 1, launcher.starts)
}

func TestSupervisor_RelaunchRecovers(t *testing.T) {
	launcher := &stubLauncher{}
	// first process instance hangs; second responds
	checker := &stubChecker{check: func() error {
		if launcher.starts >= 2 && launcher.running {
			return nil
		}
		return errors.New("not responding")
	}}

	sup := NewSupervisor(checker, launcher, zerolog.Nop())
	require.NoError(t, sup.EnsureReady(context.Background(), 10*time.Millisecond))
	require.Equal(t, 2, launcher.starts)
	require.Equal(t, 1, launcher.stops)
}

func TestSupervisor_RelaunchExactlyOnceThenFail(t *testing.T) {
	launcher := &stubLauncher{}
	sup := NewSupervisor(neverHealthy(), launcher, zerolog.Nop())

	err := sup.EnsureReady(context.Background(), 10*time.Millisecond)
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 2, launcher.starts)
	require.Equal(t, 1, launcher.stops)
}

func TestSupervisor_StartFailure(t *testing.T) {
	launcher := &stubLauncher{startErr: errors.New("executable not found")}
	sup := NewSupervisor(neverHealthy(), launcher, zerolog.Nop())

	err := sup.EnsureReady(context.Background(), 10*time.Millisecond)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestSupervisor_ShutdownStopsManagedProcess(t *testing.T) {
	launcher := &stubLauncher{}
	checker := &stubChecker{check: func() error {
		if launcher.running {
			return nil
		}
		return errors.New("not running")
	}}

	sup := NewSupervisor(checker, launcher, zerolog.Nop())
	require.NoError(t, sup.EnsureReady(context.Background(), time.Second))

	sup.Shutdown()
	require.Equal(t, 1, launcher.stops)
	require.False(t, launcher.running)

	// idempotent once stopped
	sup.Shutdown()
	require.Equal(t, 1, launcher.stops)
}
