//go:build windows

package devserver

import (
	"errors"
	"os"
	"os/exec"
)

func shellCommand(command string) *exec.Cmd {
	return exec.Command("cmd", "/c", command)
}

// setProcessGroup is a no-op; Setpgid is not available on Windows.
func setProcessGroup(cmd *exec.Cmd) {}

// terminateGroup kills the shell. Windows has no group-wide SIGTERM.
func terminateGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	err := cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
