// Package health polls an HTTP endpoint until it answers or a deadline passes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultInterval is the pause between probes.
	DefaultInterval = time.Second
	// DefaultRequestTimeout bounds a single probe request.
	DefaultRequestTimeout = 5 * time.Second
)

// Prober checks whether a server is listening and answering.
type Prober struct {
	client   *http.Client
	interval time.Duration
	logger   zerolog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithInterval sets the pause between probes.
func WithInterval(d time.Duration) Option {
	return func(p *Prober) {
		p.interval = d
	}
}

// WithRequestTimeout bounds each probe request.
func WithRequestTimeout(d time.Duration) Option {
	return func(p *Prober) {
		p.client.Timeout = d
	}
}

// WithLogger sets the logger used for probe diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Prober) {
		p.logger = l
	}
}

// NewProber returns a Prober with a 1s interval and a 5s per-request timeout.
func NewProber(opts ...Option) *Prober {
	p := &Prober{
		client:   &http.Client{Timeout: DefaultRequestTimeout},
		interval: DefaultInterval,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe polls url until it responds with a status below 500 or timeout elapses.
// Client errors such as 404 still mean a server is answering and count as ready.
// Network failures are retried. Probe never returns an error; it reports false
// when the deadline passes or ctx is done first.
func (p *Prober) Probe(ctx context.Context, url string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	attempt := 0
	for {
		attempt++
		if p.check(ctx, url) {
			p.logger.Debug().Str("url", url).Int("attempt", attempt).Msg("server ready")
			return true
		}

		select {
		case <-ctx.Done():
			p.logger.Debug().Str("url", url).Int("attempts", attempt).Msg("server not ready before deadline")
			return false
		case <-ticker.C:
		}
	}
}

func (p *Prober) check(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Trace().Err(err).Str("url", url).Msg("probe failed")
		return false
	}
	resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}
