package signal

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/inloco/rtspview/internal/logx"
	"github.com/inloco/rtspview/internal/rtc"
)

// PeerFactory creates the server side of a viewer connection.
type PeerFactory func() (*rtc.Peer, error)

// Handler upgrades viewer requests and runs one negotiation per connection.
type Handler struct {
	newPeer  PeerFactory
	upgrader websocket.Upgrader
}

// NewHandler returns a Handler. With no allowed origins only same-host pages
// may connect; "*" allows any origin.
func NewHandler(newPeer PeerFactory, allowedOrigins []string) *Handler {
	h := &Handler{newPeer: newPeer}
	if len(allowedOrigins) > 0 {
		allowed := make(map[string]bool, len(allowedOrigins))
		for _, o := range allowedOrigins {
			allowed[o] = true
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		}
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.Log.Debug().Err(err).Msg("websocket upgrade")
		return
	}
	room := NewRoom(conn)
	defer room.Close()

	peer, err := h.newPeer()
	if err != nil {
		logx.Log.Error().Err(err).Msg("create peer")
		_ = room.SendError("could not create peer connection")
		return
	}
	defer peer.Close()
	log := logx.Log.With().Str("peer", peer.ID).Logger()

	if err := peer.Open(); err != nil {
		log.Error().Err(err).Msg("open peer")
		_ = room.SendError("could not create offer")
		return
	}
	if err := room.SendOffer(peer.GetOffer()); err != nil {
		log.Warn().Err(err).Msg("send offer")
		return
	}
	for _, candidate := range peer.GetICECandidates() {
		if err := room.SendCandidate(candidate); err != nil {
			log.Warn().Err(err).Msg("send candidate")
			return
		}
	}

	msgs := make(chan *Message)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			m, err := room.RecvMsg()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case msgs <- m:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-peer.Done():
			_ = room.SendBye()
			return
		case err := <-readErr:
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("signaling read")
			}
			return
		case m := <-msgs:
			switch m.Type {
			case TypeAnswer:
				if err := peer.SetAnswer(m.Answer()); err != nil {
					log.Warn().Err(err).Msg("set answer")
					_ = room.SendError("invalid answer")
					return
				}
			case TypeCandidate:
				if m.Candidate == nil {
					continue
				}
				if err := peer.AddICECandidate(*m.Candidate); err != nil {
					log.Warn().Err(err).Msg("add candidate")
				}
			case TypeBye:
				_ = room.SendBye()
				return
			default:
				log.Debug().Str("type", m.Type).Msg("ignoring signaling message")
			}
		}
	}
}
