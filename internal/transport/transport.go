package transport

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/rdstream/internal/util"
)

// Side selects which channel a Transport reads and which it writes.
type Side int

const (
	// SideHost reads control and writes stream.
	SideHost Side = iota
	// SideClient reads stream and writes control.
	SideClient
)

func (s Side) String() string {
	if s == SideClient {
		return "client"
	}
	return "host"
}

// Transport wraps a PeerConnection and its two datagram channels. After
// signaling, Conn exposes them as a net.PacketConn so the streaming core does
// not care which transport it runs on.
//
// Its lifecycle follows the channels and the context passed at construction:
// either channel closing cancels the transport.
type Transport struct {
	pc      *webrtc.PeerConnection
	control *webrtc.DataChannel
	stream  *webrtc.DataChannel
	conn    *channelConn

	ready chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error

	mu      sync.RWMutex
	pcState webrtc.PeerConnectionState
}

// NewTransport creates a PeerConnection with both channels. The caller
// performs signaling through the exposed methods, waits for Ready and then
// uses Conn.
func NewTransport(ctx context.Context, side Side, iceServers []string) (*Transport, error) {
	pc, err := newPeerConnection(iceServers)
	if err != nil {
		return nil, err
	}

	control, err := newDatagramChannel(pc, "control", controlChannelID)
	if err != nil {
		pc.Close()
		return nil, err
	}
	stream, err := newDatagramChannel(pc, "stream", streamChannelID)
	if err != nil {
		pc.Close()
		return nil, err
	}

	tCtx, tCancel := context.WithCancel(ctx)

	t := &Transport{
		pc:      pc,
		control: control,
		stream:  stream,
		ready:   make(chan struct{}),
		ctx:     tCtx,
		cancel:  tCancel,
		pcState: webrtc.PeerConnectionStateNew,
	}

	in, out := control, stream
	if side == SideClient {
		in, out = stream, control
	}
	t.conn = newChannelConn(in, out, tCtx.Done(), t.Close)

	// Ready once both channels are open.
	var opened sync.WaitGroup
	opened.Add(2)
	for _, dc := range []*webrtc.DataChannel{control, stream} {
		var once sync.Once
		dc.OnOpen(func() {
			util.LogDebug("DataChannel %s open", dc.Label())
			once.Do(opened.Done)
		})
		dc.OnClose(func() {
			util.LogDebug("DataChannel %s closed", dc.Label())
			tCancel()
		})
	}
	go func() {
		opened.Wait()
		close(t.ready)
	}()

	// Record PC state (informational only).
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("PeerConnection state: %s", state.String())
		t.mu.Lock()
		t.pcState = state
		t.mu.Unlock()
		if state == webrtc.PeerConnectionStateFailed {
			tCancel()
		}
	})

	return t, nil
}

// Lifecycle

// Ready is closed when both channels are open.
func (t *Transport) Ready() <-chan struct{} {
	return t.ready
}

// Done is closed when the transport shuts down.
func (t *Transport) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Close shuts down both channels and the PeerConnection. It is safe to call
// more than once.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		t.closeErr = errors.Join(t.control.Close(), t.stream.Close(), t.pc.Close())
	})
	return t.closeErr
}

// ConnectionState returns the last observed PeerConnection state.
func (t *Transport) ConnectionState() webrtc.PeerConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pcState
}

// Conn returns the datagram view of the channels. Closing it closes the
// transport.
func (t *Transport) Conn() net.PacketConn {
	return t.conn
}

// PeerAddr is the address reported for every datagram read from Conn.
func (t *Transport) PeerAddr() net.Addr {
	return remoteAddr
}

// Signaling

// CreateOffer generates an SDP offer.
func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	return t.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (t *Transport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP.
func (t *Transport) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the remote SDP.
func (t *Transport) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(sdp)
}

// OnICECandidate registers a callback for locally gathered candidates. A nil
// candidate signals the end of gathering.
func (t *Transport) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	t.pc.OnICECandidate(fn)
}

// AddICECandidate adds a remote candidate received through signaling.
func (t *Transport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(candidate)
}
