package devserver

import "context"

//go:generate mockgen -package=devserver -destination=mock_process_test.go github.com/entrhq/guitest/pkg/devserver Launcher,Process

// Spec describes the command to launch.
type Spec struct {
	// Command is run through the platform shell.
	Command string

	// Dir is the working directory.
	Dir string

	// Env is appended to the current environment.
	Env []string

	// Output receives every line written to stdout or stderr.
	Output func(stream, line string)
}

// Launcher spawns serve commands.
type Launcher interface {
	Launch(ctx context.Context, spec Spec) (Process, error)
}

// Process is a running command and its process group.
type Process interface {
	// Pid returns the leader's process id.
	Pid() int

	// Terminate asks the whole process group to exit.
	Terminate() error

	// Done is closed once the process has exited and its output is drained.
	Done() <-chan struct{}

	// Err returns the exit error. Only meaningful after Done is closed.
	Err() error
}
