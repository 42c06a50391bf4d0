package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/guitest/pkg/browser"
	"github.com/entrhq/guitest/pkg/devserver"
	"github.com/entrhq/guitest/pkg/notify"
	"github.com/entrhq/guitest/pkg/types"
	"github.com/entrhq/guitest/pkg/verify"
)

// events is a shared, ordered log of collaborator calls.
type events struct {
	mu    sync.Mutex
	lines []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines = append(e.lines, s)
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.lines...)
}

type fakeServer struct {
	log      *events
	startErr error
	started  []devserver.Config
	stops    int
}

func (s *fakeServer) Start(ctx context.Context, cfg devserver.Config) error {
	s.log.add("server.start")
	s.started = append(s.started, cfg)
	return s.startErr
}

func (s *fakeServer) Stop() error {
	s.log.add("server.stop")
	s.stops++
	return nil
}

// fakeBrowser is a page with a status line that a click on #save fills in.
type fakeBrowser struct {
	log         *events
	opened      browser.Options
	status      string
	visited     []string
	screenshots []string
	closed      int
}

func (b *fakeBrowser) Goto(url string, timeout time.Duration) error {
	b.log.add("goto " + url)
	b.visited = append(b.visited, url)
	return nil
}

func (b *fakeBrowser) WaitForSelector(selector string, timeout time.Duration) error {
	if selector == "#save" || selector == "#status" {
		return nil
	}
	return &types.TimeoutError{Op: "wait for " + selector}
}

func (b *fakeBrowser) Click(selector string) error {
	if selector == "#save" {
		b.status = "Saved successfully"
	}
	return nil
}

func (b *fakeBrowser) Fill(selector, value string) error { return nil }
func (b *fakeBrowser) Hover(selector string) error       { return nil }
func (b *fakeBrowser) ScrollBy(dy int) error             { return nil }

func (b *fakeBrowser) Screenshot(path string) error {
	b.log.add("screenshot " + path[strings.LastIndex(path, "/")+1:])
	b.screenshots = append(b.screenshots, path)
	return nil
}

func (b *fakeBrowser) Count(selector string) (int, error) { return 1, nil }
func (b *fakeBrowser) Visible(selector string) (bool, error) {
	return true, nil
}

func (b *fakeBrowser) Text(selector string) (string, bool, error) {
	if selector == "#status" {
		return b.status, true, nil
	}
	return "", false, nil
}

func (b *fakeBrowser) Attribute(selector, name string) (string, bool, error) {
	return "", false, nil
}

func (b *fakeBrowser) ViewportSize() (int, int)                                { return 1280, 720 }
func (b *fakeBrowser) CaptureViewport() ([]byte, error)                        { return nil, nil }
func (b *fakeBrowser) MouseClick(x, y float64, button string, count int) error { return nil }
func (b *fakeBrowser) MouseMove(x, y float64) error                            { return nil }
func (b *fakeBrowser) MouseWheel(dx, dy float64) error                         { return nil }
func (b *fakeBrowser) TypeText(text string) error                              { return nil }
func (b *fakeBrowser) PressKey(key string) error                               { return nil }

func (b *fakeBrowser) Close() error {
	b.log.add("browser.close")
	b.closed++
	return nil
}

type fakeProvider struct {
	agentic  bool
	verdicts map[string]types.Verification
	err      error
	requests []verify.Request
	block    bool
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Agentic() bool { return p.agentic }

func (p *fakeProvider) Verify(ctx context.Context, req verify.Request) (types.Verification, error) {
	p.requests = append(p.requests, req)
	if p.block {
		<-ctx.Done()
		return types.Verification{}, ctx.Err()
	}
	if p.err != nil {
		return types.Verification{}, p.err
	}
	return p.verdicts[req.TestID], nil
}

type fakeRecorder struct {
	projects []string
	runs     []*types.RunResult
	err      error
}

func (r *fakeRecorder) Record(project string, run *types.RunResult) error {
	r.projects = append(r.projects, project)
	r.runs = append(r.runs, run)
	return r.err
}

type fakePublisher struct {
	events []*notify.Event
}

func (p *fakePublisher) Publish(ctx context.Context, e *notify.Event) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }
