// Package server exposes the viewer page and the stream control API.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inloco/rtspview/internal/logx"
	"github.com/inloco/rtspview/internal/presenter"
	"github.com/inloco/rtspview/internal/store"
	"github.com/inloco/rtspview/internal/stream"
	"github.com/inloco/rtspview/internal/transcoder"
)

// User-facing outcomes of a start. Every failure cause maps to the same text.
const (
	msgStarted     = "Stream started."
	msgStartFailed = "This URL was not found, try another one."
)

const maxBodyBytes = 64 << 10

//go:embed ui
var uiFS embed.FS

// ViewerCounter reports connected WebRTC viewers.
type ViewerCounter interface {
	Viewers() int
}

// Deps are the components the HTTP surface drives.
type Deps struct {
	Reader    *stream.Reader
	Presenter *presenter.Presenter
	Store     store.Store
	MJPEG     *MJPEG
	// Signal handles /ws. The route is absent when nil.
	Signal  http.Handler
	Viewers ViewerCounter
	// Gatherer serves /metrics. Defaults to the global registry.
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
}

type api struct {
	Deps
}

// New constructs the HTTP handler.
func New(d Deps) http.Handler {
	if d.Store == nil {
		d.Store = store.NewMemoryStore()
	}
	if d.MJPEG == nil {
		d.MJPEG = NewMJPEG()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	a := &api{Deps: d}

	r := chi.NewRouter()
	if len(d.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}

	ui, _ := fs.Sub(uiFS, "ui")
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, ui, "index.html")
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	if d.Signal != nil {
		r.Handle("/ws", d.Signal)
	}

	r.Route("/api", func(ar chi.Router) {
		ar.Get("/resolutions", a.getResolutions)
		ar.Get("/snapshot.jpg", a.getSnapshot)
		ar.Get("/stream.mjpg", d.MJPEG.ServeHTTP)
		ar.Route("/stream", func(sr chi.Router) {
			sr.Get("/state", a.getState)
			sr.Post("/start", a.postStart)
			sr.Post("/resolution", a.postResolution)
			sr.Post("/stop", a.postStop)
		})
	})
	return r
}

type startRequest struct {
	URL string `json:"url"`
}

type resolutionRequest struct {
	Resolution string `json:"resolution"`
}

type result struct {
	OK      bool        `json:"ok"`
	Message string      `json:"message"`
	State   *stateReply `json:"state,omitempty"`
}

type resolutionInfo struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type sessionInfo struct {
	ID        string              `json:"id"`
	StartedAt time.Time           `json:"started_at"`
	Pid       int                 `json:"pid"`
	Stats     stream.SessionStats `json:"stats"`
	Usage     *transcoder.Usage   `json:"usage,omitempty"`
}

type stateReply struct {
	State      stream.State `json:"state"`
	URL        string       `json:"url"`
	SavedURL   string       `json:"saved_url,omitempty"`
	Resolution string       `json:"resolution"`
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	Session    *sessionInfo `json:"session,omitempty"`
	Viewers    int          `json:"viewers"`
	Streams    int          `json:"mjpeg_clients"`
	LastSeq    uint64       `json:"last_presented_seq,omitempty"`
}

func (a *api) state(ctx context.Context) *stateReply {
	res := a.Reader.Resolution()
	w, h := res.Dimensions()
	st := &stateReply{
		State:      a.Reader.State(),
		URL:        a.Reader.URL(),
		Resolution: res.String(),
		Width:      w,
		Height:     h,
		Streams:    a.MJPEG.Clients(),
	}
	if saved, err := a.Store.Load(ctx); err == nil {
		st.SavedURL = saved.URL
	}
	if a.Viewers != nil {
		st.Viewers = a.Viewers.Viewers()
	}
	if a.Presenter != nil {
		if _, meta, ok := a.Presenter.Snapshot(); ok {
			st.LastSeq = meta.Seq
		}
	}
	if s := a.Reader.Session(); s != nil {
		info := &sessionInfo{ID: s.ID, StartedAt: s.StartedAt, Pid: s.Pid(), Stats: s.Stats()}
		if !info.Stats.Exited {
			if u, err := transcoder.Stats(info.Pid); err == nil {
				info.Usage = &u
			}
		}
		st.Session = info
	}
	return st
}

func (a *api) save(ctx context.Context) {
	s := store.Settings{URL: a.Reader.URL(), Resolution: a.Reader.Resolution().String()}
	if err := a.Store.Save(ctx, s); err != nil {
		logx.Log.Warn().Err(err).Msg("save settings")
	}
}

func (a *api) postStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, result{Message: "invalid request body"})
		return
	}

	_, err := a.Reader.Start(r.Context(), req.URL)
	a.save(r.Context())
	if err != nil {
		logx.Log.Warn().Err(err).Str("url", req.URL).Msg("start stream")
		writeJSON(w, http.StatusUnprocessableEntity, result{Message: msgStartFailed, State: a.state(r.Context())})
		return
	}
	writeJSON(w, http.StatusOK, result{OK: true, Message: msgStarted, State: a.state(r.Context())})
}

func (a *api) postResolution(w http.ResponseWriter, r *http.Request) {
	var req resolutionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, result{Message: "invalid request body"})
		return
	}
	res, err := stream.ParseResolution(req.Resolution)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, result{Message: err.Error()})
		return
	}

	s, err := a.Reader.SetResolution(r.Context(), res)
	a.save(r.Context())
	if err != nil {
		logx.Log.Warn().Err(err).Str("resolution", res.String()).Msg("restart stream")
		writeJSON(w, http.StatusUnprocessableEntity, result{Message: msgStartFailed, State: a.state(r.Context())})
		return
	}
	msg := "Resolution set."
	if s != nil {
		msg = "Stream restarted."
	}
	writeJSON(w, http.StatusOK, result{OK: true, Message: msg, State: a.state(r.Context())})
}

func (a *api) postStop(w http.ResponseWriter, r *http.Request) {
	if err := a.Reader.Stop(); err != nil {
		logx.Log.Warn().Err(err).Msg("stop stream")
	}
	writeJSON(w, http.StatusOK, result{OK: true, Message: "Stream stopped.", State: a.state(r.Context())})
}

func (a *api) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.state(r.Context()))
}

func (a *api) getResolutions(w http.ResponseWriter, r *http.Request) {
	out := make([]resolutionInfo, 0, 4)
	for _, res := range stream.Resolutions() {
		width, height := res.Dimensions()
		out = append(out, resolutionInfo{Name: res.String(), Width: width, Height: height})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) getSnapshot(w http.ResponseWriter, r *http.Request) {
	if a.Presenter == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	img, _, ok := a.Presenter.Snapshot()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	b, err := encodeJPEG(img)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Log.Debug().Err(err).Msg("write response")
	}
}
