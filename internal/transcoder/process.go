package transcoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Process is a running transcoder.
type Process interface {
	Stdout() io.Reader
	Stderr() io.Reader
	Pid() int
	// Kill terminates the process. It is safe to call more than once.
	Kill() error
	// Wait blocks until the process has exited and its pipes are drained.
	Wait() error
}

// Launcher starts transcoder processes.
type Launcher interface {
	Launch(ctx context.Context, args []string) (Process, error)
}

// ExecLauncher runs a binary from the host.
type ExecLauncher struct {
	// Path is the transcoder binary, "ffmpeg" when empty.
	Path string
	// KillGrace is how long Kill waits after SIGTERM before SIGKILL.
	KillGrace time.Duration
}

var _ Launcher = (*ExecLauncher)(nil)

// Launch starts the binary with stdout and stderr connected to pipes.
func (l *ExecLauncher) Launch(ctx context.Context, args []string) (Process, error) {
	path := l.Path
	if path == "" {
		path = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = l.grace()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", path, err)
	}

	p := &execProcess{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		done:   make(chan struct{}),
		grace:  l.grace(),
	}
	return p, nil
}

func (l *ExecLauncher) grace() time.Duration {
	if l.KillGrace > 0 {
		return l.KillGrace
	}
	return 2 * time.Second
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr io.Reader
	grace  time.Duration

	wait    sync.Once
	waitErr error
	done    chan struct{}
	kill    sync.Once
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }
func (p *execProcess) Pid() int          { return p.cmd.Process.Pid }

func (p *execProcess) Wait() error {
	p.wait.Do(func() {
		p.waitErr = p.cmd.Wait()
		close(p.done)
	})
	<-p.done
	return p.waitErr
}

// Kill asks the process to terminate and escalates to SIGKILL if it has not
// exited within the grace period.
func (p *execProcess) Kill() error {
	var err error
	p.kill.Do(func() {
		if err = p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			if errors.Is(err, os.ErrProcessDone) {
				err = nil
			}
			return
		}
		go func() {
			select {
			case <-p.done:
			case <-time.After(p.grace):
				_ = p.cmd.Process.Kill()
			}
		}()
	})
	return err
}
