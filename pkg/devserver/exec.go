package devserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"golang.org/x/sync/errgroup"
)

// ExecLauncher runs commands as real child processes.
type ExecLauncher struct{}

// NewExecLauncher returns a launcher backed by os/exec.
func NewExecLauncher() *ExecLauncher {
	return &ExecLauncher{}
}

// Launch starts spec.Command in its own process group. The context is only used
// for the start itself; the process outlives it until Terminate is called.
func (l *ExecLauncher) Launch(ctx context.Context, spec Spec) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := shellCommand(spec.Command)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	p := &execProcess{
		cmd:  cmd,
		done: make(chan struct{}),
	}

	var g errgroup.Group
	g.Go(func() error { return drain(stdout, "stdout", spec.Output) })
	g.Go(func() error { return drain(stderr, "stderr", spec.Output) })

	go func() {
		// Pipes must be fully read before Wait closes them.
		_ = g.Wait()
		p.err = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

// maxLineBytes caps one logged line. Longer lines are cut and the rest of the
// line is discarded so the pipe keeps draining.
const maxLineBytes = 1024 * 1024

func drain(r io.Reader, stream string, output func(stream, line string)) error {
	reader := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	truncated := false
	for {
		frag, isPrefix, err := reader.ReadLine()
		if !truncated && len(frag) > 0 {
			if room := maxLineBytes - len(line); len(frag) > room {
				frag = frag[:room]
				truncated = true
			}
			line = append(line, frag...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if isPrefix {
			continue
		}
		if output != nil {
			text := string(line)
			if truncated {
				text += " [truncated]"
			}
			output(stream, text)
		}
		line = line[:0]
		truncated = false
	}
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Terminate() error {
	return terminateGroup(p.cmd)
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}
