//go:build unix

package worker

import (
	"os/exec"
	"syscall"
)

// procAttr puts each worker in its own process group so a kill reaches
// any children the worker itself spawned (ffmpeg, model CLIs).
func procAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// Negative pid addresses the whole group.
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	_ = cmd.Process.Kill()
}

// LowerPriority drops the calling process to a background scheduling
// priority. Best effort: failure is ignored by callers.
func LowerPriority() error {
	return syscall.Setpriority(syscall.PRIO_PROCESS, 0, 10)
}
