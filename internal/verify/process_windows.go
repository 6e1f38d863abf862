//go:build windows

package verify

import (
	"os/exec"
	"time"
)

// configureProcAttr is a no-op on Windows (Setpgid not supported).
func configureProcAttr(_ *exec.Cmd) {}

// terminateProcessGroup on Windows falls back to killing the process
// directly; gracePeriod is unused since there is no process-group signal
// to wait out.
func terminateProcessGroup(cmd *exec.Cmd, _ time.Duration) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
