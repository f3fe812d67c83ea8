package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/inloco/rtspview/internal/frame"
	"github.com/inloco/rtspview/internal/logx"
	"github.com/inloco/rtspview/internal/metrics"
	"github.com/inloco/rtspview/internal/transcoder"
)

// ErrStartFailed is returned when the transcoder could not be started or
// reported an error right after launch.
var ErrStartFailed = errors.New("stream: transcoder failed to start")

const stopTimeout = 5 * time.Second

// Session is one running transcoder decoding URL at Resolution. It is
// created by Reader.Start and Reader.SetResolution and ends with Close.
type Session struct {
	ID         string
	URL        string
	Resolution Resolution
	Width      int
	Height     int
	StartedAt  time.Time

	proc   transcoder.Process
	cancel context.CancelFunc
	queue  chan frame.Frame

	firstData     chan struct{}
	firstDataOnce sync.Once
	firstErr      chan string

	readers sync.WaitGroup
	done    chan struct{}
	exitErr error

	closing   atomic.Bool
	stopping  chan struct{}
	closeOnce sync.Once

	seq         atomic.Uint64
	queueFull   atomic.Uint64
	lastFrameAt atomic.Int64
}

// SessionStats are counters of a session.
type SessionStats struct {
	FramesRead uint64 `json:"frames_read"`
	// QueueFullWaits counts frames the reader had to hold until the
	// presenter made room.
	QueueFullWaits uint64    `json:"queue_full_waits"`
	Queued         int       `json:"queued"`
	LastFrameAt    time.Time `json:"last_frame_at,omitempty"`
	Exited         bool      `json:"exited"`
}

// startSession launches the transcoder and runs the startup check. ctx
// bounds the check only; the process lives until Close.
func startSession(ctx context.Context, cfg Config, url string, res Resolution) (*Session, error) {
	width, height := res.Dimensions()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownResolution, int(res))
	}

	procCtx, cancel := context.WithCancel(context.Background())
	args := transcoder.Args(url, width, height, cfg.Options)
	proc, err := cfg.Launcher.Launch(procCtx, args)
	if err != nil {
		cancel()
		logx.Log.Error().Err(err).Str("url", url).Msg("launch transcoder")
		return nil, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	s := &Session{
		ID:         uuid.NewString(),
		URL:        url,
		Resolution: res,
		Width:      width,
		Height:     height,
		StartedAt:  time.Now(),
		proc:       proc,
		cancel:     cancel,
		queue:      make(chan frame.Frame, cfg.QueueSize),
		firstData:  make(chan struct{}),
		firstErr:   make(chan string, 1),
		stopping:   make(chan struct{}),
		done:       make(chan struct{}),
	}

	s.readers.Add(2)
	go s.readFrames(proc.Stdout(), cfg.ReadBufferSize)
	go s.readErrors(proc.Stderr())
	go s.wait()

	logx.Log.Info().
		Str("session", s.ID).
		Str("url", url).
		Str("resolution", res.String()).
		Int("pid", proc.Pid()).
		Msg("transcoder launched")

	if err := s.awaitStartup(ctx, cfg.StartupTimeout); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// awaitStartup waits for the first sign of life. Any stderr output or an
// early exit is a failure; stdout data or a quiet timeout is a success. When
// several signals are ready at once, failure wins.
func (s *Session) awaitStartup(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-s.firstErr:
		return s.startupError(msg)
	case <-s.done:
		return s.startupExit()
	case <-s.firstData:
	case <-timer.C:
		logx.Log.Debug().Str("session", s.ID).Dur("timeout", timeout).Msg("no output yet; assuming started")
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrStartFailed, ctx.Err())
	}

	select {
	case msg := <-s.firstErr:
		return s.startupError(msg)
	default:
	}
	select {
	case <-s.done:
		return s.startupExit()
	default:
	}
	return nil
}

func (s *Session) startupError(msg string) error {
	logx.Log.Error().Str("session", s.ID).Str("stderr", msg).Msg("transcoder reported an error on startup")
	return fmt.Errorf("%w: %s", ErrStartFailed, msg)
}

func (s *Session) startupExit() error {
	logx.Log.Error().Err(s.exitErr).Str("session", s.ID).Msg("transcoder exited on startup")
	return fmt.Errorf("%w: transcoder exited", ErrStartFailed)
}

func (s *Session) readFrames(r io.Reader, bufSize int) {
	defer s.readers.Done()

	acc := frame.NewAccumulator(frame.Stride(s.Width, s.Height))
	buf := make([]byte, bufSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.firstDataOnce.Do(func() { close(s.firstData) })
			for _, data := range acc.Push(buf[:n]) {
				if !s.enqueue(data) {
					return
				}
			}
		}
		if err != nil {
			if p := acc.Reset(); p > 0 {
				metrics.RecordPartialBytes(p)
				logx.Log.Debug().Str("session", s.ID).Int("bytes", p).Msg("discarding incomplete trailing frame")
			}
			if !errors.Is(err, io.EOF) && !s.closing.Load() {
				logx.Log.Warn().Err(err).Str("session", s.ID).Msg("read transcoder output")
			}
			return
		}
	}
}

// enqueue adds a frame, waiting while the queue is full so the transcoder
// is held back by the pipe instead of losing frames. It reports false once
// the session is closing.
func (s *Session) enqueue(data []byte) bool {
	f := frame.Frame{
		Seq:       s.seq.Add(1),
		Timestamp: time.Now(),
		Width:     s.Width,
		Height:    s.Height,
		Data:      data,
		SessionID: s.ID,
	}
	s.lastFrameAt.Store(f.Timestamp.UnixNano())
	metrics.RecordFrameRead()

	select {
	case s.queue <- f:
		return true
	default:
	}
	s.queueFull.Add(1)
	metrics.RecordQueueFull()
	select {
	case s.queue <- f:
		return true
	case <-s.stopping:
		return false
	}
}

// readErrors forwards the transcoder's stderr to the log, one line per
// entry. The first bytes seen are also handed to the startup check.
func (s *Session) readErrors(r io.Reader) {
	defer s.readers.Done()

	var pending []byte
	buf := make([]byte, 4096)
	first := true
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if first {
				first = false
				s.firstErr <- string(bytes.TrimSpace(buf[:n]))
			}
			pending = append(pending, buf[:n]...)
			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				s.logStderr(pending[:i])
				pending = pending[i+1:]
			}
		}
		if err != nil {
			s.logStderr(pending)
			return
		}
	}
}

func (s *Session) logStderr(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	logx.Log.Warn().Str("session", s.ID).Str("stderr", string(line)).Msg("transcoder")
}

// wait reaps the process once both pipes are drained.
func (s *Session) wait() {
	s.readers.Wait()
	s.exitErr = s.proc.Wait()
	if !s.closing.Load() {
		logx.Log.Warn().Err(s.exitErr).Str("session", s.ID).Msg("transcoder exited")
	}
	close(s.done)
}

// PollFrame returns the oldest complete frame, or false when none is ready.
// It never blocks.
func (s *Session) PollFrame() (frame.Frame, bool) {
	select {
	case f := <-s.queue:
		return f, true
	default:
		return frame.Frame{}, false
	}
}

// Pid returns the transcoder process id.
func (s *Session) Pid() int {
	return s.proc.Pid()
}

// Stats returns the session counters.
func (s *Session) Stats() SessionStats {
	st := SessionStats{
		FramesRead:     s.seq.Load(),
		QueueFullWaits: s.queueFull.Load(),
		Queued:         len(s.queue),
	}
	if ns := s.lastFrameAt.Load(); ns != 0 {
		st.LastFrameAt = time.Unix(0, ns)
	}
	select {
	case <-s.done:
		st.Exited = true
	default:
	}
	return st
}

// Close terminates the transcoder and waits for its goroutines. It is safe
// to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		close(s.stopping)
		if err := s.proc.Kill(); err != nil {
			logx.Log.Warn().Err(err).Str("session", s.ID).Msg("kill transcoder")
		}
		s.cancel()
	})

	select {
	case <-s.done:
		return nil
	case <-time.After(stopTimeout):
		return fmt.Errorf("stream: session %s did not stop within %s", s.ID, stopTimeout)
	}
}
