// Package logging provides the structured diagnostic log for a guitest run.
//
// Every process gets one session id. Component loggers share a single JSON-lines
// file under ~/.guitest/logs/<session-id>-guitest.log, so a failed CI run can be
// inspected after the fact without cluttering the console. Console mirroring is
// opt-in through Options.Console.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	sessionID     string
	sessionIDOnce sync.Once
)

// getSessionID returns or creates the session ID for this process.
func getSessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

// GetSessionID returns the current process-wide session ID.
func GetSessionID() string {
	return getSessionID()
}

// DefaultDir returns ~/.guitest/logs.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".guitest", "logs"), nil
}

// Options configures Open.
type Options struct {
	// Dir holds the log file. Empty means DefaultDir.
	Dir string

	// Level is the minimum level written.
	Level zerolog.Level

	// Console, when set, also receives human-readable log lines.
	Console io.Writer
}

// Session is the open diagnostic log of this process.
type Session struct {
	id        string
	path      string
	file      *os.File
	root      zerolog.Logger
	closeOnce sync.Once
}

// Open creates the session log file.
//
// If the directory cannot be created or the file cannot be opened, Open returns
// a fallback session that writes to stderr together with the error, so callers
// can warn and continue.
func Open(opts Options) (*Session, error) {
	dir := opts.Dir
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return newFallback(opts), err
		}
		dir = d
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return newFallback(opts), fmt.Errorf("failed to create log directory: %w", err)
	}

	id := getSessionID()
	path := filepath.Join(dir, fmt.Sprintf("%s-guitest.log", id))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return newFallback(opts), fmt.Errorf("failed to open log file: %w", err)
	}

	var w io.Writer = file
	if opts.Console != nil {
		w = zerolog.MultiLevelWriter(file, consoleWriter(opts.Console))
	}

	return &Session{
		id:   id,
		path: path,
		file: file,
		root: newRoot(w, opts.Level),
	}, nil
}

func newFallback(opts Options) *Session {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	s := &Session{
		id:   getSessionID(),
		root: newRoot(consoleWriter(console), opts.Level),
	}
	s.root.Warn().Msg("file logging unavailable, falling back to stderr")
	return s
}

func newRoot(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("session", getSessionID()).
		Logger()
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
}

// Logger returns a logger tagged with component.
func (s *Session) Logger(component string) zerolog.Logger {
	return s.root.With().Str("component", component).Logger()
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Path returns the log file path, or "" in fallback mode.
func (s *Session) Path() string {
	return s.path
}

// Close closes the log file. Safe to call multiple times.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.file != nil {
			err = s.file.Close()
		}
	})
	return err
}
