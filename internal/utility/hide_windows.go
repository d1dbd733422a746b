//go:build windows

package utility

import (
	"os/exec"
	"syscall"
)

// hideWindow keeps a console window from popping up next to the GUI.
func hideWindow(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.HideWindow = true
}
