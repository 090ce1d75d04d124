//go:build !windows

package infrastructure

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in its own process group so that killing
// it also reaches wrapper scripts' descendants (steamcmd.sh execs the real
// binary; a stray grandchild would otherwise keep the stdout pipe open).
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
}

// signalGroup signals the whole process group of pid, falling back to the
// single process if the group is already gone.
func signalGroup(pid int, sig syscall.Signal) {
	if err := syscall.Kill(-pid, sig); err != nil {
		syscall.Kill(pid, sig)
	}
}
