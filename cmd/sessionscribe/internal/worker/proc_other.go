//go:build !unix

package worker

import (
	"os/exec"
	"syscall"
)

func procAttr() *syscall.SysProcAttr {
	return nil
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// LowerPriority is a no-op where process priorities are unsupported.
func LowerPriority() error {
	return nil
}
