package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/entrhq/guitest/pkg/config"
	"github.com/entrhq/guitest/pkg/devserver"
	"github.com/entrhq/guitest/pkg/history"
	"github.com/entrhq/guitest/pkg/report"
	"github.com/entrhq/guitest/pkg/scenario"
	"github.com/entrhq/guitest/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

type testApp struct {
	*app
	out, err *bytes.Buffer
}

func newTestApp(t *testing.T, env map[string]string) *testApp {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	a := newApp(out, errOut)
	a.getenv = func(k string) string { return env[k] }
	a.exit = func(code int) { t.Fatalf("unexpected exit %d", code) }
	return &testApp{app: a, out: out, err: errOut}
}

func (ta *testApp) run(args ...string) error {
	return ta.cli.Run(append([]string{appName}, args...))
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	ta := newTestApp(t, nil)
	require.NoError(t, ta.run("version"))
	assert.Contains(t, ta.out.String(), "guitest dev (commit none")
}

func TestDetectCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "package.json"), `{"name":"web","dependencies":{"next":"14.0.0"},"scripts":{"dev":"next dev"}}`)

	ta := newTestApp(t, nil)
	require.NoError(t, ta.run("detect", dir))
	assert.Contains(t, ta.out.String(), `"type": "nextjs"`)
	assert.Contains(t, ta.out.String(), `"devCommand": "npm run dev"`)
}

func TestHistoryCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	ta := newTestApp(t, nil)
	require.NoError(t, ta.run("history", "--db", db))
	assert.Contains(t, ta.out.String(), "No runs recorded")

	store, err := history.Open(db)
	require.NoError(t, err)
	r := types.NewRunResult("US-007")
	r.RunID = "run-1"
	r.Add(types.NewTestResult("login", types.KindBrowser))
	require.NoError(t, store.Record("shop", r))
	require.NoError(t, store.Close())

	ta = newTestApp(t, nil)
	require.NoError(t, ta.run("history", "--db", db, "--project", "shop"))
	out := ta.out.String()
	assert.Contains(t, out, "US-007")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "0/1")

	ta = newTestApp(t, nil)
	require.NoError(t, ta.run("history", "--db", db, "--json"))
	assert.Contains(t, ta.out.String(), `"runId": "run-1"`)
}

func TestRunCommand_Usage(t *testing.T) {
	ta := newTestApp(t, nil)
	err := ta.run("run")
	assert.Equal(t, exitUsage, exitCode(err))

	err = ta.run("run", "--only", "[", "prd.json")
	assert.Equal(t, exitUsage, exitCode(err))
}

func TestRunCommand_MissingDocument(t *testing.T) {
	ta := newTestApp(t, nil)
	err := ta.run("run", filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, exitFailed, exitCode(err))
	assert.Contains(t, ta.err.String(), "failed to read test document")
}

func TestRunCommand_NothingToTest(t *testing.T) {
	dir := t.TempDir()
	prd := writeFile(t, filepath.Join(dir, "prd.json"), `{"project":"shop","userStories":[{"id":"US-001","passes":true}]}`)
	db := filepath.Join(dir, "history.db")
	metrics := filepath.Join(dir, "guitest.prom")

	ta := newTestApp(t, nil)
	err := ta.run("run",
		"--log-dir", filepath.Join(dir, "logs"),
		"--history-db", db,
		"--output", "out",
		"--metrics-file", metrics,
		prd,
	)
	require.NoError(t, err)

	out := ta.out.String()
	assert.Contains(t, out, report.ResultsMarker)
	assert.Contains(t, out, `"storyId": "none"`)
	assert.FileExists(t, filepath.Join(dir, "out", "results.json"))
	assert.FileExists(t, metrics)

	store, err := history.Open(db)
	require.NoError(t, err)
	defer store.Close()
	entries, err := store.List(history.Query{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "shop", entries[0].Project)
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	prd := writeFile(t, filepath.Join(dir, "prd.json"), `{"project":"shop","userStories":[]}`)

	ta := newTestApp(t, nil)
	err := ta.run("run", "--provider", "gpt-vision", "--no-history", prd)
	assert.Equal(t, exitFailed, exitCode(err))
	assert.Contains(t, ta.err.String(), "invalid verify provider")
}

// withContext runs fn with a cli.Context parsed from run's flags.
func withContext(t *testing.T, args []string, fn func(c *cli.Context)) {
	t.Helper()
	called := false
	app := &cli.App{
		Name:  appName,
		Flags: runFlags(),
		Action: func(c *cli.Context) error {
			called = true
			fn(c)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{appName}, args...)))
	require.True(t, called)
}

func TestResolveConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	writeFile(t, filepath.Join(dir, "package.json"), `{"devDependencies":{"vite":"5.0.0"},"scripts":{"dev":"vite"}}`)
	writeFile(t, filepath.Join(dir, "guitest.yaml"), `
dev_server:
  command: make serve
  port: 4000
verify:
  provider: openai
  api_key: from-file
artifacts:
  output_dir: reports
`)
	doc := &scenario.Document{
		Path:          filepath.Join(dir, "prd.json"),
		GUITestConfig: &scenario.GUITestConfig{DevPort: 5000},
	}
	env := map[string]string{"OPENAI_API_KEY": "from-env"}

	withContext(t, []string{"--model", "gpt-4o-mini", "--headless=false"}, func(c *cli.Context) {
		cfg, project, err := resolveConfig(c, doc, func(k string) string { return env[k] })
		require.NoError(t, err)
		assert.Equal(t, "vite", string(project.Type))
		assert.Equal(t, "make serve", cfg.DevServer.Command)
		assert.Equal(t, 5000, cfg.DevServer.Port)
		assert.Equal(t, "openai", cfg.Verify.Provider)
		assert.Equal(t, "gpt-4o-mini", cfg.Verify.Model)
		assert.Equal(t, "from-file", cfg.Verify.APIKey)
		assert.False(t, cfg.Browser.Headless)
		assert.Equal(t, filepath.Join(dir, "reports"), cfg.Artifacts.OutputDir)
	})

	withContext(t, []string{"--provider", "OpenAI", "--port", "6000", "--dev-command", "npm start"}, func(c *cli.Context) {
		cfg, _, err := resolveConfig(c, doc, func(k string) string { return env[k] })
		require.NoError(t, err)
		assert.Equal(t, "openai", cfg.Verify.Provider)
		assert.Equal(t, "from-env", cfg.Verify.APIKey)
		assert.Equal(t, 6000, cfg.DevServer.Port)
		assert.Equal(t, "npm start", cfg.DevServer.Command)
	})
}

func TestResolveConfig_DetectedDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	writeFile(t, filepath.Join(dir, "manage.py"), "")
	doc := &scenario.Document{Path: filepath.Join(dir, "prd.json")}

	withContext(t, []string{"--quiet", "--no-history", "--trace"}, func(c *cli.Context) {
		cfg, _, err := resolveConfig(c, doc, func(string) string { return "" })
		require.NoError(t, err)
		assert.Equal(t, "python manage.py runserver 8000", cfg.DevServer.Command)
		assert.Equal(t, 8000, cfg.DevServer.Port)
		assert.Equal(t, config.DefaultProvider, cfg.Verify.Provider)
		assert.Equal(t, "quiet", cfg.Logging.Verbosity)
		assert.False(t, cfg.History.Enabled)
		assert.True(t, cfg.Telemetry.Trace)
	})
}

type stopCounter struct {
	mu    sync.Mutex
	stops int
}

func (s *stopCounter) Start(context.Context, devserver.Config) error { return nil }
func (s *stopCounter) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func TestHandleSignals(t *testing.T) {
	ta := newTestApp(t, nil)
	exited := make(chan int, 1)
	ta.exit = func(code int) { exited <- code }
	server := &stopCounter{}
	ta.setServer(server)

	sigs := make(chan os.Signal, 2)
	released := false
	ctx, stop := ta.handleSignals(context.Background(), sigs, func() { released = true })

	sigs <- os.Interrupt
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled by first signal")
	}

	sigs <- os.Interrupt
	select {
	case code := <-exited:
		assert.Equal(t, exitInterrupted, code)
	case <-time.After(time.Second):
		t.Fatal("second signal did not exit")
	}
	server.mu.Lock()
	assert.Equal(t, 1, server.stops)
	server.mu.Unlock()

	stop()
	stop()
	assert.True(t, released)
	assert.Contains(t, ta.err.String(), "press Ctrl+C again")
}

func TestHandleSignals_StopWithoutSignal(t *testing.T) {
	ta := newTestApp(t, nil)
	ctx, stop := ta.handleSignals(context.Background(), make(chan os.Signal), func() {})
	stop()
	assert.Error(t, ctx.Err())
	assert.Empty(t, ta.err.String())
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "prd.json"), `{}`)

	ta := newTestApp(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runs := 0
	err := ta.watch(ctx, path, func() error {
		runs++
		switch runs {
		case 1:
			go func() {
				time.Sleep(100 * time.Millisecond)
				_ = os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0o644)
				_ = os.WriteFile(path, []byte(`{"project":"changed"}`), 0o644)
			}()
			return errTestsFailed
		default:
			cancel()
			return nil
		}
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, runs)
	assert.Contains(t, ta.err.String(), "Watching")
}
