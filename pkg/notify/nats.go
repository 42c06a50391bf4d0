// Package notify publishes finished runs to a NATS subject so CI dashboards
// and chat bridges can react to them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/entrhq/guitest/pkg/types"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is the base subject for run events.
const DefaultSubject = "guitest.results"

// Event is the message published for a run.
type Event struct {
	Type      string           `json:"type"` // "passed", "failed" or "skipped"
	Project   string           `json:"project,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Result    *types.RunResult `json:"result"`
}

// NewEvent classifies r.
func NewEvent(project string, r *types.RunResult) *Event {
	typ := "passed"
	switch {
	case r.TotalTests == 0:
		typ = "skipped"
	case r.Failed():
		typ = "failed"
	}
	return &Event{Type: typ, Project: project, Timestamp: time.Now().UTC(), Result: r}
}

// Publisher sends run events somewhere.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// conn is the slice of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes events to <subject>.<story>.<type>.
type NATSPublisher struct {
	conn    conn
	subject string
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	URL            string
	Subject        string
	ConnectTimeout time.Duration
}

// NewNATSPublisher connects to the server at cfg.URL.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("guitest"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.MaxReconnects(3),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return newPublisher(nc, cfg.Subject), nil
}

func newPublisher(c conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: c, subject: subject}
}

// Subject returns the subject event is published on.
func (p *NATSPublisher) Subject(event *Event) string {
	story := "unknown"
	if event.Result != nil && event.Result.StoryID != "" {
		story = event.Result.StoryID
	}
	return fmt.Sprintf("%s.%s.%s", p.subject, story, event.Type)
}

// Publish sends event and waits for the server to acknowledge the flush,
// so the message is not lost when the process exits right after.
func (p *NATSPublisher) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(event), data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
