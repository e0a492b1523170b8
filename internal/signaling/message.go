// Package signaling runs the WebSocket SDP/ICE exchange that sets up the
// WebRTC transport. Callers receive a ready Transport; the WebSocket is closed
// as soon as both channels are open.
package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

type kind string

const (
	kindOffer     kind = "offer"
	kindAnswer    kind = "answer"
	kindCandidate kind = "candidate"
)

// message is one JSON frame on the signaling socket. Candidate holds a
// JSON-encoded ICECandidateInit.
type message struct {
	Type      kind   `json:"type"`
	SDP       string `json:"sdp,omitempty"`
	Candidate string `json:"candidate,omitempty"`
}

func descriptionMessage(desc webrtc.SessionDescription) message {
	return message{Type: kind(desc.Type.String()), SDP: desc.SDP}
}

func candidateMessage(c webrtc.ICECandidateInit) (message, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return message{}, err
	}
	return message{Type: kindCandidate, Candidate: string(data)}, nil
}

// description returns the SDP carried by an offer or answer.
func (m message) description() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(string(m.Type)), SDP: m.SDP}
}

func (m message) candidate() (webrtc.ICECandidateInit, error) {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(m.Candidate), &init); err != nil {
		return init, fmt.Errorf("parse ICE candidate: %w", err)
	}
	return init, nil
}
