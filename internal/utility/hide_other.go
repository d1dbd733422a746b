//go:build !windows

package utility

import "os/exec"

func hideWindow(*exec.Cmd) {}
