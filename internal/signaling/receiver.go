package signaling

import (
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

// remote is the part of the transport that consumes the peer's messages.
type remote interface {
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
}

type receiver struct {
	tr     remote
	conn   *websocket.Conn
	sender *sender
}

// watch reads until the WebSocket fails or is closed. An offer is answered
// on the spot.
func (r *receiver) watch() error {
	for {
		var msg message
		if err := r.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read WS message: %w", err)
		}
		if err := r.apply(msg); err != nil {
			return err
		}
	}
}

func (r *receiver) apply(msg message) error {
	switch msg.Type {
	case kindOffer, kindAnswer:
		if err := r.tr.SetRemoteDescription(msg.description()); err != nil {
			return err
		}
		if msg.Type == kindOffer {
			return r.sender.describe(kindAnswer)
		}

	case kindCandidate:
		init, err := msg.candidate()
		if err != nil {
			return err
		}
		return r.tr.AddICECandidate(init)
	}
	return nil
}
