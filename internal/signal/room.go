// Package signal negotiates viewer WebRTC sessions over a websocket.
//
// The server speaks first: it sends an "offer" followed by its "candidate"
// messages. The browser replies with an "answer" and may trickle its own
// candidates. Either side ends the session with "bye".
package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
)

// Message types.
const (
	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeCandidate = "candidate"
	TypeBye       = "bye"
	TypeError     = "error"
)

const writeWait = 10 * time.Second

// Message is the signaling envelope. Offer and answer messages have the same
// shape as a browser RTCSessionDescription.
type Message struct {
	Type      string                   `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// Room is one signaling connection.
type Room struct {
	wsConn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewRoom wraps an established websocket connection.
func NewRoom(conn *websocket.Conn) *Room {
	return &Room{wsConn: conn}
}

func (r *Room) send(m Message) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_ = r.wsConn.SetWriteDeadline(time.Now().Add(writeWait))
	return r.wsConn.WriteJSON(m)
}

func (r *Room) SendOffer(offer *webrtc.SessionDescription) error {
	if offer == nil {
		return errors.New("signal: no local description")
	}
	return r.send(Message{Type: TypeOffer, SDP: offer.SDP})
}

func (r *Room) SendCandidate(candidate webrtc.ICECandidateInit) error {
	return r.send(Message{Type: TypeCandidate, Candidate: &candidate})
}

func (r *Room) SendBye() error {
	return r.send(Message{Type: TypeBye})
}

func (r *Room) SendError(msg string) error {
	return r.send(Message{Type: TypeError, Error: msg})
}

// RecvMsg reads the next message. A message carrying an error is returned
// as an error.
func (r *Room) RecvMsg() (*Message, error) {
	_, buf, err := r.wsConn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var message Message
	if err := json.Unmarshal(buf, &message); err != nil {
		return nil, fmt.Errorf("signal: decode message: %w", err)
	}
	if message.Error != "" {
		return nil, errors.New(message.Error)
	}
	if message.Type == "" {
		return nil, errors.New("signal: message without type")
	}
	return &message, nil
}

// RecvAnswer reads the next message and requires it to be an answer.
func (r *Room) RecvAnswer() (*webrtc.SessionDescription, error) {
	m, err := r.RecvMsg()
	if err != nil {
		return nil, err
	}
	if m.Type != TypeAnswer {
		return nil, fmt.Errorf("signal: expected answer, got %q", m.Type)
	}
	return m.Answer(), nil
}

// Answer returns the session description carried by an answer message.
func (m *Message) Answer() *webrtc.SessionDescription {
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: m.SDP}
}

// Close sends a close frame and closes the connection.
func (r *Room) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.writeMu.Lock()
		_ = r.wsConn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		r.writeMu.Unlock()
		err = r.wsConn.Close()
	})
	return err
}
