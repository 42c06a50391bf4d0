package devserver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/entrhq/guitest/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// DefaultStartupWait is the grace period between spawning and the first probe.
	DefaultStartupWait = 5 * time.Second
	// DefaultReadyTimeout bounds the health probe after the grace period.
	DefaultReadyTimeout = 30 * time.Second
	// DefaultStopGrace is how long Stop waits for the process group to exit.
	DefaultStopGrace = 2 * time.Second
)

var (
	// ErrNoCommand is returned by Start when no serve command is configured.
	ErrNoCommand = fmt.Errorf("%w: dev server command is required", types.ErrConfig)

	// ErrStartFailed is returned when the server never became ready.
	ErrStartFailed = errors.New("server failed to start")
)

// State is a lifecycle state of the Manager.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateWaiting
	StateReady
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateWaiting:
		return "waiting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Config describes the server to start.
type Config struct {
	Command string
	Dir     string
	Port    int

	// URL is probed for readiness.
	URL string

	// StartupWait is slept after spawning. Zero means DefaultStartupWait;
	// a negative value disables the wait.
	StartupWait time.Duration

	// ReadyTimeout bounds the readiness probe. Zero means DefaultReadyTimeout.
	ReadyTimeout time.Duration
}

// running pairs a process with a channel closed once its exit has been logged.
type running struct {
	proc   Process
	exited chan struct{}
}

// Prober reports whether url answers before timeout.
type Prober interface {
	Probe(ctx context.Context, url string, timeout time.Duration) bool
}

// Manager runs at most one dev server at a time.
type Manager struct {
	mu        sync.Mutex
	state     State
	current   *running
	launcher  Launcher
	prober    Prober
	logger    zerolog.Logger
	stopGrace time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithLauncher replaces the process launcher.
func WithLauncher(l Launcher) Option {
	return func(m *Manager) {
		m.launcher = l
	}
}

// WithLogger sets the logger receiving lifecycle events and server output.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithStopGrace sets how long Stop waits for the process group to exit.
func WithStopGrace(d time.Duration) Option {
	return func(m *Manager) {
		m.stopGrace = d
	}
}

// NewManager returns an idle Manager that probes readiness with prober.
func NewManager(prober Prober, opts ...Option) *Manager {
	m := &Manager{
		state:     StateIdle,
		launcher:  NewExecLauncher(),
		prober:    prober,
		logger:    zerolog.Nop(),
		stopGrace: DefaultStopGrace,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Start spawns cfg.Command and blocks until the server answers on cfg.URL.
// A server that never becomes ready is stopped before ErrStartFailed is returned.
func (m *Manager) Start(ctx context.Context, cfg Config) error {
	if cfg.Command == "" {
		return ErrNoCommand
	}

	m.mu.Lock()
	if m.state != StateIdle && m.state != StateStopped {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("dev server already %s", state)
	}
	m.state = StateStarting
	m.mu.Unlock()

	env := []string{"NODE_ENV=development"}
	if cfg.Port > 0 {
		env = append(env, "PORT="+strconv.Itoa(cfg.Port))
	}

	m.logger.Info().
		Str("command", shellescape.QuoteCommand([]string{"sh", "-c", cfg.Command})).
		Str("dir", cfg.Dir).
		Int("port", cfg.Port).
		Msg("starting dev server")

	proc, err := m.launcher.Launch(ctx, Spec{
		Command: cfg.Command,
		Dir:     cfg.Dir,
		Env:     env,
		Output:  m.logOutput,
	})
	if err != nil {
		m.setState(StateFailed)
		m.setState(StateStopped)
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	r := &running{proc: proc, exited: make(chan struct{})}
	done := proc.Done()

	m.mu.Lock()
	m.current = r
	m.state = StateWaiting
	m.mu.Unlock()

	go m.watchExit(r, done)

	if err := m.awaitReady(ctx, done, cfg); err != nil {
		m.setState(StateFailed)
		if stopErr := m.Stop(); stopErr != nil {
			m.logger.Warn().Err(stopErr).Msg("failed to stop dev server after failed start")
		}
		return err
	}

	m.setState(StateReady)
	m.logger.Info().Str("url", cfg.URL).Msg("dev server ready")
	return nil
}

func (m *Manager) awaitReady(ctx context.Context, done <-chan struct{}, cfg Config) error {
	wait := cfg.StartupWait
	if wait == 0 {
		wait = DefaultStartupWait
	}
	if wait > 0 {
		m.logger.Debug().Dur("wait", wait).Msg("waiting for dev server startup")
		if err := sleepContext(ctx, wait); err != nil {
			return err
		}
	}

	timeout := cfg.ReadyTimeout
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}

	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-done:
			cancel()
		case <-probeCtx.Done():
		}
	}()

	if m.prober.Probe(probeCtx, cfg.URL, timeout) {
		return nil
	}

	select {
	case <-done:
		return fmt.Errorf("%w: process exited before %s became ready", ErrStartFailed, cfg.URL)
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return &types.TimeoutError{
		Op:  "dev server startup",
		Err: fmt.Errorf("%w: %s not ready within %s", ErrStartFailed, cfg.URL, timeout),
	}
}

func (m *Manager) watchExit(r *running, done <-chan struct{}) {
	defer close(r.exited)
	<-done

	m.mu.Lock()
	expected := m.current != r
	m.mu.Unlock()

	event := m.logger.Warn()
	if expected {
		event = m.logger.Debug()
	}
	event.Err(r.proc.Err()).Msg("dev server exited")
}

func (m *Manager) logOutput(stream, line string) {
	m.logger.Info().Str("stream", stream).Msg(line)
}

// Stop terminates the server's process group and waits up to the stop grace
// period for it to exit. It does not force-kill. Calling Stop when nothing is
// running is a no-op.
func (m *Manager) Stop() error {
	m.mu.Lock()
	r := m.current
	m.current = nil
	m.mu.Unlock()

	if r == nil {
		return nil
	}

	m.logger.Info().Int("pid", r.proc.Pid()).Msg("stopping dev server")
	err := r.proc.Terminate()

	if err == nil {
		select {
		case <-r.exited:
		case <-time.After(m.stopGrace):
			m.logger.Warn().Dur("grace", m.stopGrace).Msg("dev server still running after grace period")
		}
	}

	m.setState(StateStopped)
	if err != nil {
		return fmt.Errorf("failed to stop dev server: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
