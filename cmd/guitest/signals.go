package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/entrhq/guitest/pkg/runner"
)

// setServer records the dev server of the current run for forceStop.
func (a *app) setServer(s runner.Server) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.server = s
}

func (a *app) forceStop() {
	a.mu.Lock()
	s := a.server
	a.mu.Unlock()
	if s != nil {
		_ = s.Stop()
	}
}

// signalContext cancels the returned context on the first SIGINT or SIGTERM,
// letting the run clean up. A second signal stops the dev server and exits 130.
func (a *app) signalContext(parent context.Context) (context.Context, func()) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	return a.handleSignals(parent, sigs, func() { signal.Stop(sigs) })
}

func (a *app) handleSignals(parent context.Context, sigs <-chan os.Signal, release func()) (context.Context, func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		select {
		case <-sigs:
			a.stderrf("\nInterrupted, cleaning up (press Ctrl+C again to force quit)\n")
			cancel()
		case <-done:
			return
		}
		select {
		case <-sigs:
			a.stderrf("Forcing exit\n")
			a.forceStop()
			a.exit(exitInterrupted)
		case <-done:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			release()
			close(done)
			cancel()
		})
	}
}

func (a *app) stderrf(s string) {
	_, _ = a.stderr.Write([]byte(s))
}
