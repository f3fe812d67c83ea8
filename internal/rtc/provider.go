package rtc

import (
	"errors"
	"image"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/inloco/rtspview/internal/metrics"
	"github.com/inloco/rtspview/internal/presenter"
)

// ErrProviderClosed is returned by Frame once the provider is closed.
var ErrProviderClosed = errors.New("rtc: frame provider closed")

// FrameProvider hands out pictures to a single consumer.
type FrameProvider interface {
	io.Closer
	// Frame blocks until a picture newer than the previous call is available.
	Frame() (*image.RGBA, error)
}

// FrameProviderFactory creates a FrameProvider per viewer.
type FrameProviderFactory interface {
	NewFrameProvider() (FrameProvider, error)
}

// mailbox is a single-slot FrameProvider: a new picture overwrites one that
// was not consumed yet.
type mailbox struct {
	id  string
	hub *Hub

	mu     sync.Mutex
	cond   *sync.Cond
	img    *image.RGBA
	drops  uint64
	closed bool
}

var _ FrameProvider = (*mailbox)(nil)

func newMailbox(hub *Hub) *mailbox {
	m := &mailbox{id: uuid.NewString(), hub: hub}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) put(img *image.RGBA) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.img != nil {
		m.drops++
	}
	m.img = img
	m.cond.Signal()
}

func (m *mailbox) Frame() (*image.RGBA, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.img == nil && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return nil, ErrProviderClosed
	}
	img := m.img
	m.img = nil
	return img, nil
}

func (m *mailbox) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()

	m.hub.remove(m.id)
	return nil
}

// Hub fans presented pictures out to every connected viewer. It is a
// presenter.Surface on one side and a FrameProviderFactory on the other.
type Hub struct {
	mu        sync.Mutex
	mailboxes map[string]*mailbox
	last      *image.RGBA
}

var (
	_ presenter.Surface    = (*Hub)(nil)
	_ FrameProviderFactory = (*Hub)(nil)
)

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{mailboxes: make(map[string]*mailbox)}
}

// Show delivers img to every viewer.
func (h *Hub) Show(img *image.RGBA) error {
	h.mu.Lock()
	h.last = img
	boxes := make([]*mailbox, 0, len(h.mailboxes))
	for _, m := range h.mailboxes {
		boxes = append(boxes, m)
	}
	h.mu.Unlock()

	for _, m := range boxes {
		m.put(img)
	}
	return nil
}

// NewFrameProvider registers a viewer. The picture currently on display is
// queued right away so a new viewer does not wait for the next frame.
func (h *Hub) NewFrameProvider() (FrameProvider, error) {
	m := newMailbox(h)

	h.mu.Lock()
	h.mailboxes[m.id] = m
	last := h.last
	h.mu.Unlock()

	if last != nil {
		m.put(last)
	}
	metrics.ViewerConnected()
	return m, nil
}

// Viewers returns the number of registered providers.
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.mailboxes)
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	_, ok := h.mailboxes[id]
	delete(h.mailboxes, id)
	h.mu.Unlock()

	if ok {
		metrics.ViewerDisconnected()
	}
}
