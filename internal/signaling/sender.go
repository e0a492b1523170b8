package signaling

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

// describer is the part of the transport that produces local descriptions.
type describer interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
}

// sender owns every write to the signaling socket. Applying a local
// description and writing it happen under one lock, so a candidate gathered
// in between waits until the description is on the wire.
type sender struct {
	tr   describer
	conn *websocket.Conn
	mu   sync.Mutex
}

// describe creates an offer or answer, applies it locally and sends it.
func (s *sender) describe(k kind) error {
	create := s.tr.CreateAnswer
	if k == kindOffer {
		create = s.tr.CreateOffer
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	desc, err := create()
	if err != nil {
		return err
	}
	if err := s.tr.SetLocalDescription(desc); err != nil {
		return err
	}
	return s.conn.WriteJSON(descriptionMessage(desc))
}

// trickle sends one gathered ICE candidate.
func (s *sender) trickle(c webrtc.ICECandidateInit) error {
	msg, err := candidateMessage(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(msg)
}
