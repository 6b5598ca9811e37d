//go:build !windows

package tournament

import (
	"os/exec"
	"syscall"
)

// setupProcessGroup starts the judge in its own process group so a timeout
// kills any helpers it spawned along with it.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
