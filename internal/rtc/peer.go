// Package rtc delivers presented frames to browsers over WebRTC.
package rtc

import (
	"errors"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"

	"github.com/inloco/rtspview/internal/logx"
)

// Encoder compresses pictures of one size to VP8.
type Encoder interface {
	Encode(img *image.RGBA) ([]byte, error)
	Size() image.Point
	Close() error
}

// EncoderFactory builds an Encoder for size at frameRate.
type EncoderFactory func(size image.Point, frameRate int) (Encoder, error)

// Peer is one viewer connection with a single VP8 video track.
type Peer struct {
	ID string

	frameProviderFactory FrameProviderFactory
	newEncoder           EncoderFactory
	frameInterval        time.Duration

	frameProvider     FrameProvider
	webrtcConn        *webrtc.PeerConnection
	gatheringComplete <-chan struct{}
	videoTrack        *webrtc.TrackLocalStaticSample

	mu            sync.Mutex
	iceCandidates []webrtc.ICECandidateInit

	iceConnectionStateConnected    sync.Once
	iceConnectionStateDisconnected sync.Once
	done                           chan struct{}
}

// NewPeer creates a peer connection. frameInterval is the presentation
// period and sets both the encoder frame rate and the sample duration.
func NewPeer(frameProviderFactory FrameProviderFactory, newEncoder EncoderFactory, webrtcConfig webrtc.Configuration, frameInterval time.Duration) (*Peer, error) {
	if frameInterval <= 0 {
		frameInterval = 100 * time.Millisecond
	}

	conn, err := webrtc.NewPeerConnection(webrtcConfig)
	if err != nil {
		return nil, err
	}

	peer := &Peer{
		ID:                   uuid.NewString(),
		frameProviderFactory: frameProviderFactory,
		newEncoder:           newEncoder,
		frameInterval:        frameInterval,
		webrtcConn:           conn,
		gatheringComplete:    webrtc.GatheringCompletePromise(conn),
		done:                 make(chan struct{}),
	}

	conn.OnConnectionStateChange(peer.onConnectionStateChange)
	conn.OnICECandidate(peer.onICECandidate)
	conn.OnICEConnectionStateChange(peer.onICEConnectionStateChange)

	return peer, nil
}

// Open adds the video track and creates the local offer.
func (p *Peer) Open() error {
	capability := webrtc.RTPCodecCapability{
		MimeType: webrtc.MimeTypeVP8,
	}
	videoTrack, err := webrtc.NewTrackLocalStaticSample(capability, "video", "rtspview")
	if err != nil {
		return err
	}
	p.videoTrack = videoTrack

	if _, err := p.webrtcConn.AddTrack(videoTrack); err != nil {
		return err
	}

	offer, err := p.webrtcConn.CreateOffer(nil)
	if err != nil {
		return err
	}

	if err := p.webrtcConn.SetLocalDescription(offer); err != nil {
		return err
	}

	return nil
}

// Close tears down the connection and releases the frame provider.
func (p *Peer) Close() error {
	p.finish()
	return p.webrtcConn.Close()
}

// Done is closed when the connection has failed, disconnected or been closed.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// GetICECandidates blocks until gathering is complete and returns the local
// candidates.
func (p *Peer) GetICECandidates() []webrtc.ICECandidateInit {
	<-p.gatheringComplete
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), p.iceCandidates...)
}

// GetOffer returns the local description once gathering is complete, so the
// SDP already carries the candidates.
func (p *Peer) GetOffer() *webrtc.SessionDescription {
	<-p.gatheringComplete
	return p.webrtcConn.LocalDescription()
}

// SetAnswer applies the viewer's answer.
func (p *Peer) SetAnswer(answer *webrtc.SessionDescription) error {
	if answer == nil {
		return errors.New("rtc: empty answer")
	}
	return p.webrtcConn.SetRemoteDescription(*answer)
}

// AddICECandidate applies a trickled remote candidate.
func (p *Peer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.webrtcConn.AddICECandidate(candidate)
}

func (p *Peer) onConnectionStateChange(s webrtc.PeerConnectionState) {
	logx.Log.Debug().Str("peer", p.ID).Str("state", s.String()).Msg("peer connection state changed")

	switch s {
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		p.finish()
	}
}

func (p *Peer) onICECandidate(iceCandidate *webrtc.ICECandidate) {
	if iceCandidate == nil {
		return
	}

	logx.Log.Trace().Str("peer", p.ID).Str("candidate", iceCandidate.String()).Msg("ICE candidate gathered")

	p.mu.Lock()
	p.iceCandidates = append(p.iceCandidates, iceCandidate.ToJSON())
	p.mu.Unlock()
}

func (p *Peer) onICEConnectionStateChange(connectionState webrtc.ICEConnectionState) {
	logx.Log.Debug().Str("peer", p.ID).Str("state", connectionState.String()).Msg("ICE connection state changed")

	switch connectionState {
	case webrtc.ICEConnectionStateConnected:
		p.iceConnectionStateConnected.Do(func() {
			frameProvider, err := p.frameProviderFactory.NewFrameProvider()
			if err != nil {
				logx.Log.Error().Err(err).Str("peer", p.ID).Msg("create frame provider")
				p.finish()
				return
			}
			p.mu.Lock()
			select {
			case <-p.done:
				p.mu.Unlock()
				_ = frameProvider.Close()
				return
			default:
			}
			p.frameProvider = frameProvider
			p.mu.Unlock()

			logx.Log.Info().Str("peer", p.ID).Msg("viewer connected")
			go func() {
				if err := p.writeSamples(frameProvider); err != nil {
					logx.Log.Warn().Err(err).Str("peer", p.ID).Msg("write samples")
				}
			}()
		})

	case webrtc.ICEConnectionStateDisconnected, webrtc.ICEConnectionStateFailed:
		p.finish()
	}
}

// finish releases the frame provider and signals Done once.
func (p *Peer) finish() {
	p.iceConnectionStateDisconnected.Do(func() {
		p.mu.Lock()
		fp := p.frameProvider
		close(p.done)
		p.mu.Unlock()
		if fp != nil {
			if err := fp.Close(); err != nil {
				logx.Log.Warn().Err(err).Str("peer", p.ID).Msg("close frame provider")
			}
		}
		logx.Log.Info().Str("peer", p.ID).Msg("viewer disconnected")
	})
}

func (p *Peer) writeSamples(frameProvider FrameProvider) error {
	var encoder Encoder
	defer func() {
		if encoder != nil {
			_ = encoder.Close()
		}
	}()

	frameRate := int(time.Second / p.frameInterval)
	for {
		frame, err := frameProvider.Frame()
		if errors.Is(err, ErrProviderClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		if encoder == nil || encoder.Size() != frame.Rect.Size() {
			if encoder != nil {
				_ = encoder.Close()
			}
			encoder, err = p.newEncoder(frame.Rect.Size(), frameRate)
			if err != nil {
				return err
			}
		}

		data, err := encoder.Encode(frame)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			continue
		}

		sample := media.Sample{
			Data:     data,
			Duration: p.frameInterval,
		}
		if err := p.videoTrack.WriteSample(sample); err != nil {
			return err
		}
	}
}
