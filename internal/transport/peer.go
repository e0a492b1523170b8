package transport

import (
	"github.com/pion/webrtc/v4"
)

// Pre-negotiated channel ids. Both sides create the same channels locally, so
// no OnDataChannel round trip is needed.
const (
	controlChannelID uint16 = 0 // client -> host: handshake token, input events
	streamChannelID  uint16 = 1 // host -> client: frame fragments
)

// newPeerConnection creates a PeerConnection using the given STUN servers.
// No TURN is configured; connectivity is direct or not at all.
func newPeerConnection(iceServers []string) (*webrtc.PeerConnection, error) {
	config := webrtc.Configuration{}
	if len(iceServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return webrtc.NewPeerConnection(config)
}

// newDatagramChannel creates a negotiated, unordered DataChannel with no
// retransmits, which gives it UDP delivery semantics.
func newDatagramChannel(pc *webrtc.PeerConnection, label string, id uint16) (*webrtc.DataChannel, error) {
	ordered := false
	negotiated := true
	retransmits := uint16(0)

	return pc.CreateDataChannel(label, &webrtc.DataChannelInit{
		Ordered:        &ordered,
		Negotiated:     &negotiated,
		ID:             &id,
		MaxRetransmits: &retransmits,
	})
}
