//go:build windows

package audio

import (
	"os/exec"
	"syscall"
)

// detachProcessGroup starts cmd in a new process group so console Ctrl+C is not delivered to it.
func detachProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}
