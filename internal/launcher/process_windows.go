//go:build windows

package launcher

import (
	"os"
	"os/exec"
	"syscall"
)

const createNewProcessGroup = 0x00000200

func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}

// interrupt kills the process: Windows has no portable way to deliver
// os.Interrupt to another process.
func interrupt(p *os.Process) error {
	return p.Kill()
}
