//go:build !windows

package verify

import (
	"os/exec"
	"syscall"
	"time"
)

// configureProcAttr sets up process group isolation so the whole process
// tree spawned by cmd can be signaled together.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcessGroup sends SIGTERM to cmd's process group, waits up to
// gracePeriod for it to exit, then escalates to SIGKILL. Safe to call
// after the process has already exited.
func terminateProcessGroup(cmd *exec.Cmd, gracePeriod time.Duration) {
	if cmd == nil || cmd.Process == nil {
		return
	}

	pid := cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		return
	}

	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		return
	}

	deadline := time.After(gracePeriod)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			_ = syscall.Kill(-pgid, syscall.SIGKILL)
			return
		case <-ticker.C:
			if err := syscall.Kill(pid, 0); err != nil {
				return
			}
		}
	}
}
