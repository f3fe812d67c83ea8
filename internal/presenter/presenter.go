// Package presenter polls the stream reader on a fixed period and shows each
// complete frame on the registered display surfaces.
package presenter

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/inloco/rtspview/internal/frame"
	"github.com/inloco/rtspview/internal/logx"
	"github.com/inloco/rtspview/internal/metrics"
)

// DefaultInterval is the polling period.
const DefaultInterval = 100 * time.Millisecond

// FrameSource yields complete frames without blocking.
type FrameSource interface {
	PollFrame() (frame.Frame, bool)
}

// Surface displays a picture, replacing whatever it showed before. The image
// is shared with other surfaces and must not be modified.
type Surface interface {
	Show(img *image.RGBA) error
}

// Presenter moves frames from a source to its surfaces.
type Presenter struct {
	source   FrameSource
	interval time.Duration

	mu       sync.RWMutex
	surfaces []Surface
	current  *image.RGBA
	meta     frame.Frame
}

// New returns a Presenter polling source every interval.
func New(source FrameSource, interval time.Duration, surfaces ...Surface) *Presenter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Presenter{
		source:   source,
		interval: interval,
		surfaces: surfaces,
	}
}

// AddSurface registers another surface.
func (p *Presenter) AddSurface(s Surface) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.surfaces = append(p.surfaces, s)
}

// Run ticks until ctx is done.
func (p *Presenter) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Tick polls one frame and shows it. It reports whether a frame was shown.
func (p *Presenter) Tick() bool {
	f, ok := p.source.PollFrame()
	if !ok {
		return false
	}
	img := f.Image()
	if img == nil {
		return false
	}

	p.mu.Lock()
	p.current = img
	f.Data = nil
	p.meta = f
	surfaces := append([]Surface(nil), p.surfaces...)
	p.mu.Unlock()

	for _, s := range surfaces {
		if err := s.Show(img); err != nil {
			logx.Log.Warn().Err(err).Uint64("seq", f.Seq).Msg("show frame")
		}
	}
	metrics.RecordFramePresented()
	return true
}

// Snapshot returns the picture currently on display and the metadata of the
// frame it came from. Data of the returned frame is nil.
func (p *Presenter) Snapshot() (*image.RGBA, frame.Frame, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return nil, frame.Frame{}, false
	}
	return p.current, p.meta, true
}

// Interval returns the polling period.
func (p *Presenter) Interval() time.Duration {
	return p.interval
}
