package stream

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/inloco/rtspview/internal/transcoder"
)

type fakeProcess struct {
	args []string
	pid  int

	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	killed   atomic.Bool
	exitOnce sync.Once
	exited   chan struct{}
}

func newFakeProcess(args []string, pid int) *fakeProcess {
	p := &fakeProcess{args: args, pid: pid, exited: make(chan struct{})}
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()
	return p
}

func (p *fakeProcess) Stdout() io.Reader { return p.stdoutR }
func (p *fakeProcess) Stderr() io.Reader { return p.stderrR }
func (p *fakeProcess) Pid() int          { return p.pid }

func (p *fakeProcess) Kill() error {
	p.killed.Store(true)
	p.exit()
	return nil
}

func (p *fakeProcess) Wait() error {
	<-p.exited
	return nil
}

// exit simulates the process ending on its own.
func (p *fakeProcess) exit() {
	p.exitOnce.Do(func() {
		_ = p.stdoutW.Close()
		_ = p.stderrW.Close()
		close(p.exited)
	})
}

func (p *fakeProcess) url() string {
	for i, a := range p.args {
		if a == "-i" && i+1 < len(p.args) {
			return p.args[i+1]
		}
	}
	return ""
}

func (p *fakeProcess) scale() string {
	for _, a := range p.args {
		if strings.HasPrefix(a, "scale=") {
			return a
		}
	}
	return ""
}

type fakeLauncher struct {
	mu        sync.Mutex
	procs     []*fakeProcess
	launchErr error
	onLaunch  func(p *fakeProcess)
}

var _ transcoder.Launcher = (*fakeLauncher)(nil)

func (l *fakeLauncher) Launch(ctx context.Context, args []string) (transcoder.Process, error) {
	l.mu.Lock()
	if l.launchErr != nil {
		l.mu.Unlock()
		return nil, l.launchErr
	}
	p := newFakeProcess(args, 1000+len(l.procs))
	l.procs = append(l.procs, p)
	hook := l.onLaunch
	l.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return p, nil
}

func (l *fakeLauncher) launched() []*fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeProcess(nil), l.procs...)
}

func newTestReader(l *fakeLauncher) *Reader {
	return NewReader(Config{
		Launcher:       l,
		StartupTimeout: 50 * time.Millisecond,
		ReadBufferSize: 4096,
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
