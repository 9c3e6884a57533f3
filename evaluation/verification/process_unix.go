//go:build !windows

package verification

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// configureProcess starts the check in its own process group so a timeout
// takes down every process it spawned.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
}

// reapProcessGroup kills whatever is left of the group after the leader
// exited.
func reapProcessGroup(cmd *exec.Cmd) {
	_ = killProcessGroup(cmd)
}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	pid := cmd.Process.Pid
	if pid <= 0 {
		return nil
	}
	// Setpgid without Pgid makes the child its own group leader.
	err := syscall.Kill(-pid, syscall.SIGKILL)
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}
