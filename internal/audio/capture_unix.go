//go:build !windows

package audio

import (
	"os/exec"
	"syscall"
)

// detachProcessGroup starts cmd in its own process group.
func detachProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}
