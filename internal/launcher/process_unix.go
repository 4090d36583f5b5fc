//go:build !windows

package launcher

import (
	"os"
	"os/exec"
	"syscall"
)

// detach puts the child in its own process group so signals aimed at the
// launcher's terminal do not reach it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func interrupt(p *os.Process) error {
	return p.Signal(os.Interrupt)
}
