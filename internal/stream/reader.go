// Package stream owns the transcoder child process and turns its output into
// complete frames.
//
// A Reader holds at most one Session. Start and SetResolution replace it,
// Stop ends it. PollFrame is cheap and never blocks, so it can be called from
// a presentation timer while control operations run elsewhere.
package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inloco/rtspview/internal/frame"
	"github.com/inloco/rtspview/internal/logx"
	"github.com/inloco/rtspview/internal/metrics"
	"github.com/inloco/rtspview/internal/transcoder"
)

// State is the lifecycle state of a Reader.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Config configures a Reader.
type Config struct {
	// Launcher starts the transcoder. Defaults to an ExecLauncher for ffmpeg.
	Launcher transcoder.Launcher
	// Options tune the transcoder command line.
	Options transcoder.Options
	// Resolution is the initial decode size.
	Resolution Resolution
	// StartupTimeout bounds how long Start watches for early errors.
	StartupTimeout time.Duration
	// QueueSize is the number of complete frames buffered per session.
	QueueSize int
	// ReadBufferSize is the chunk size used to read the transcoder output.
	ReadBufferSize int
}

func (c *Config) setDefaults() {
	if c.Launcher == nil {
		c.Launcher = &transcoder.ExecLauncher{}
	}
	if !c.Resolution.Valid() {
		c.Resolution = DefaultResolution
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = 2 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 4
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = 64 * 1024
	}
}

// Reader manages the stream session.
type Reader struct {
	cfg Config

	// mu serialises Start, SetResolution and Stop.
	mu       sync.Mutex
	settings atomic.Pointer[settings]
	session  atomic.Pointer[Session]
}

type settings struct {
	url string
	res Resolution
}

// NewReader returns an idle Reader.
func NewReader(cfg Config) *Reader {
	cfg.setDefaults()
	r := &Reader{cfg: cfg}
	r.settings.Store(&settings{res: cfg.Resolution})
	return r
}

// Start replaces the current session with one decoding url. The URL is
// remembered even when the start fails, so a later resolution change
// retries it.
func (r *Reader) Start(ctx context.Context, url string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings.Store(&settings{url: url, res: r.settings.Load().res})
	_ = r.stopLocked()
	return r.startLocked(ctx)
}

// SetResolution ends the current session, switches to res and, when a URL
// has been set, starts a new session before returning. It returns a nil
// session when there is no URL to restart.
func (r *Reader) SetResolution(ctx context.Context, res Resolution) (*Session, error) {
	if !res.Valid() {
		return nil, ErrUnknownResolution
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_ = r.stopLocked()
	url := r.settings.Load().url
	r.settings.Store(&settings{url: url, res: res})
	logx.Log.Info().Str("resolution", res.String()).Msg("resolution changed")
	if url == "" {
		return nil, nil
	}
	return r.startLocked(ctx)
}

// Stop ends the current session. It is a no-op when idle.
func (r *Reader) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stopLocked()
}

// PollFrame returns the next complete frame of the current session, or false
// when no session is running or no full frame has arrived yet.
func (r *Reader) PollFrame() (frame.Frame, bool) {
	s := r.session.Load()
	if s == nil {
		return frame.Frame{}, false
	}
	return s.PollFrame()
}

// State reports whether a session is running.
func (r *Reader) State() State {
	if r.session.Load() != nil {
		return StateRunning
	}
	return StateIdle
}

// Session returns the current session or nil.
func (r *Reader) Session() *Session {
	return r.session.Load()
}

// URL returns the last URL passed to Start.
func (r *Reader) URL() string {
	return r.settings.Load().url
}

// Resolution returns the configured resolution.
func (r *Reader) Resolution() Resolution {
	return r.settings.Load().res
}

func (r *Reader) startLocked(ctx context.Context) (*Session, error) {
	st := r.settings.Load()
	s, err := startSession(ctx, r.cfg, st.url, st.res)
	metrics.RecordStreamStart(err == nil)
	if err != nil {
		return nil, err
	}
	r.session.Store(s)
	logx.Log.Info().Str("session", s.ID).Str("url", s.URL).Msg("stream started")
	return s, nil
}

func (r *Reader) stopLocked() error {
	s := r.session.Swap(nil)
	if s == nil {
		return nil
	}
	err := s.Close()
	logx.Log.Info().Str("session", s.ID).Msg("stream stopped")
	return err
}
