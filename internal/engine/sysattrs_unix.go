//go:build !windows

package engine

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr detaches the child on Unix-like systems by starting
// it in a new session (setsid), so it has no controlling terminal and
// survives the engine exiting.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
