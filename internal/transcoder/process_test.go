package transcoder

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"
)

const helperEnv = "RTSPVIEW_TRANSCODER_HELPER"

func TestMain(m *testing.M) {
	switch os.Getenv(helperEnv) {
	case "echo":
		fmt.Fprint(os.Stdout, "frame-bytes")
		fmt.Fprint(os.Stderr, "oops")
		os.Exit(0)
	case "sleep":
		time.Sleep(time.Minute)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func TestExecLauncherPipes(t *testing.T) {
	t.Setenv(helperEnv, "echo")
	l := &ExecLauncher{Path: os.Args[0]}

	p, err := l.Launch(context.Background(), []string{"-i", "ignored"})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if p.Pid() <= 0 {
		t.Fatalf("pid = %d", p.Pid())
	}

	out, err := io.ReadAll(p.Stdout())
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	errOut, err := io.ReadAll(p.Stderr())
	if err != nil {
		t.Fatalf("read stderr: %v", err)
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if string(out) != "frame-bytes" {
		t.Fatalf("stdout = %q", out)
	}
	if string(errOut) != "oops" {
		t.Fatalf("stderr = %q", errOut)
	}
}

func TestExecLauncherKill(t *testing.T) {
	t.Setenv(helperEnv, "sleep")
	l := &ExecLauncher{Path: os.Args[0], KillGrace: 200 * time.Millisecond}

	p, err := l.Launch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if err := p.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if err := p.Kill(); err != nil {
		t.Fatalf("second Kill: %v", err)
	}

	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, p.Stdout())
		_, _ = io.Copy(io.Discard, p.Stderr())
		_ = p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after Kill")
	}
}

func TestExecLauncherMissingBinary(t *testing.T) {
	l := &ExecLauncher{Path: "/nonexistent/ffmpeg"}
	if _, err := l.Launch(context.Background(), nil); err == nil {
		t.Fatal("expected error for missing binary")
	}
}
