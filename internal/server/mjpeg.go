package server

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"

	"github.com/google/uuid"

	"github.com/inloco/rtspview/internal/logx"
	"github.com/inloco/rtspview/internal/presenter"
)

const jpegQuality = 80

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MJPEG is a display surface that streams presented frames to HTTP clients
// as multipart/x-mixed-replace JPEG parts.
type MJPEG struct {
	mu   sync.Mutex
	subs map[string]chan []byte
}

var _ presenter.Surface = (*MJPEG)(nil)

func NewMJPEG() *MJPEG {
	return &MJPEG{subs: make(map[string]chan []byte)}
}

// Show encodes img once and offers it to every client. A client that has not
// taken the previous picture yet gets the new one instead.
func (m *MJPEG) Show(img *image.RGBA) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.subs) == 0 {
		return nil
	}
	b, err := encodeJPEG(img)
	if err != nil {
		return fmt.Errorf("mjpeg: encode: %w", err)
	}
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- b
	}
	return nil
}

// Clients returns the number of connected streams.
func (m *MJPEG) Clients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *MJPEG) subscribe() (string, <-chan []byte) {
	id := uuid.NewString()
	ch := make(chan []byte, 1)
	m.mu.Lock()
	m.subs[id] = ch
	m.mu.Unlock()
	return id, ch
}

func (m *MJPEG) unsubscribe(id string) {
	m.mu.Lock()
	delete(m.subs, id)
	m.mu.Unlock()
}

func (m *MJPEG) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	id, frames := m.subscribe()
	defer m.unsubscribe(id)

	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case b := <-frames:
			part, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type":   {"image/jpeg"},
				"Content-Length": {fmt.Sprint(len(b))},
			})
			if err != nil {
				return
			}
			if _, err := part.Write(b); err != nil {
				logx.Log.Debug().Err(err).Str("client", id).Msg("mjpeg client gone")
				return
			}
			flusher.Flush()
		}
	}
}
