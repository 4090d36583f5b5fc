package launcher

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Process is a child started by a Spawner.
type Process interface {
	Pid() int
	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}
	// Stop asks the process to exit and kills it after grace.
	Stop(grace time.Duration) error
}

type Spawner interface {
	Spawn() (Process, error)
}

// CommandSpawner starts Args as a detached background process. Output goes to
// LogFile when set and is discarded otherwise.
type CommandSpawner struct {
	Args    []string
	Dir     string
	LogFile string
	Env     []string
}

// CheckCommand verifies that the program of args exists. Paths are checked on
// disk; bare names are resolved through PATH.
func CheckCommand(args []string) error {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return errors.New("launcher: empty command")
	}
	prog := args[0]
	if strings.ContainsRune(prog, filepath.Separator) || strings.Contains(prog, "/") {
		info, err := os.Stat(prog)
		if err != nil {
			return fmt.Errorf("launcher: %s not found: %w", prog, err)
		}
		if info.IsDir() {
			return fmt.Errorf("launcher: %s is a directory", prog)
		}
		return nil
	}
	if _, err := exec.LookPath(prog); err != nil {
		return fmt.Errorf("launcher: %s not found: %w", prog, err)
	}
	return nil
}

func (s CommandSpawner) Spawn() (Process, error) {
	if len(s.Args) == 0 {
		return nil, errors.New("launcher: empty command")
	}

	cmd := exec.Command(s.Args[0], s.Args[1:]...)
	cmd.Dir = s.Dir
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	detach(cmd)

	var logFile *os.File
	if s.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(s.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("launcher: creating log directory: %w", err)
		}
		f, err := os.OpenFile(s.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("launcher: opening log file: %w", err)
		}
		logFile = f
		cmd.Stdout = f
		cmd.Stderr = f
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, fmt.Errorf("launcher: start %s: %w", s.Args[0], err)
	}

	c := &child{cmd: cmd, logFile: logFile, done: make(chan struct{})}
	go c.wait()
	return c, nil
}

type child struct {
	cmd     *exec.Cmd
	logFile *os.File
	done    chan struct{}
}

func (c *child) wait() {
	err := c.cmd.Wait()
	slog.Info("dependent process exited", "pid", c.Pid(), "err", err)
	if c.logFile != nil {
		_ = c.logFile.Close()
	}
	close(c.done)
}

func (c *child) Pid() int {
	return c.cmd.Process.Pid
}

func (c *child) Done() <-chan struct{} {
	return c.done
}

func (c *child) Stop(grace time.Duration) error {
	select {
	case <-c.done:
		return nil
	default:
	}

	if err := interrupt(c.cmd.Process); err != nil {
		// Already gone or not signalable; fall through to kill.
		_ = c.cmd.Process.Kill()
	}

	select {
	case <-c.done:
	case <-time.After(grace):
		if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("launcher: kill pid %d: %w", c.Pid(), err)
		}
		<-c.done
	}
	return nil
}
