package pipeline

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const stopGracePeriod = 8 * time.Second

// CommandLauncher starts the pipeline server as a child process and
// terminates it with SIGTERM, escalating to SIGKILL after a grace
// period.
type CommandLauncher struct {
	path string
	args []string
	log  zerolog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
}

func NewCommandLauncher(path string, args []string, log zerolog.Logger) *CommandLauncher {
	return &CommandLauncher{
		path: path,
		args: args,
		log:  log.With().Str("component", "launcher").Logger(),
	}
}

func (l *CommandLauncher) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cmd != nil && !l.exitedLocked() {
		return errors.New("pipeline process already running")
	}

	cmd := exec.Command(l.path, l.args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}

	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		close(exited)
		l.log.Info().Err(err).Int("pid", cmd.Process.Pid).Msg("pipeline process exited")
	}()

	l.cmd = cmd
	l.exited = exited
	l.log.Info().Int("pid", cmd.Process.Pid).Str("path", l.path).Msg("pipeline process started")
	return nil
}

func (l *CommandLauncher) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cmd != nil && !l.exitedLocked()
}

func (l *CommandLauncher) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cmd == nil || l.exitedLocked() {
		return nil
	}

	if err := l.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return l.cmd.Process.Kill()
	}

	select {
	case <-l.exited:
		return nil
	case <-time.After(stopGracePeriod):
		l.log.Warn().Int("pid", l.cmd.Process.Pid).Msg("pipeline process ignored SIGTERM, killing")
		return l.cmd.Process.Kill()
	}
}

func (l *CommandLauncher) exitedLocked() bool {
	select {
	case <-l.exited:
		return true
	default:
		return false
	}
}
