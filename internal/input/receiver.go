package input

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/1ureka/rdstream/internal/protocol"
	"github.com/1ureka/rdstream/internal/session"
	"github.com/1ureka/rdstream/internal/util"
)

// Tuning constants.
const (
	queueSize   = 256                    // decoded events waiting for dispatch
	readTimeout = 500 * time.Millisecond // read deadline for interruptibility
	maxDatagram = 2048                   // larger datagrams are never valid here
)

// Receiver reads the host's shared socket. Input events from the session peer
// are queued for the Dispatcher; repeat handshake tokens go to the gate.
type Receiver struct {
	conn   net.PacketConn
	gate   *session.Gate
	events chan protocol.InputEvent

	onSession func(*session.Session)
}

// NewReceiver creates a Receiver reading from conn.
func NewReceiver(conn net.PacketConn, gate *session.Gate) *Receiver {
	return &Receiver{
		conn:   conn,
		gate:   gate,
		events: make(chan protocol.InputEvent, queueSize),
	}
}

// OnSession registers a callback for handshakes accepted after startup.
func (r *Receiver) OnSession(fn func(*session.Session)) {
	r.onSession = fn
}

// Events returns the queue consumed by the Dispatcher.
func (r *Receiver) Events() <-chan protocol.InputEvent {
	return r.events
}

// Run reads until ctx is cancelled or the socket fails.
func (r *Receiver) Run(ctx context.Context) error {
	buf := make([]byte, maxDatagram)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := r.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		r.handle(buf[:n], addr)
	}
}

// handle classifies one datagram. Tokens are checked first so a secret that
// happens to be 16 bytes long is still a handshake.
func (r *Receiver) handle(data []byte, addr net.Addr) {
	if r.gate.IsToken(data) {
		s, err := r.gate.Authenticate(data, addr)
		if err != nil {
			util.LogWarning("handshake from %s refused: %v", addr, err)
			return
		}
		util.LogSuccess("client %s authenticated", addr)
		if r.onSession != nil {
			r.onSession(s)
		}
		return
	}

	if len(data) != protocol.InputEventSize {
		util.LogDebug("ignoring %d-byte datagram from %s", len(data), addr)
		util.Stats.EventsDropped.Add(1)
		return
	}
	if !r.gate.Current().FromPeer(addr) {
		util.LogDebug("ignoring input from unauthenticated %s", addr)
		util.Stats.EventsDropped.Add(1)
		return
	}

	ev, err := protocol.DecodeInputEvent(data)
	if err != nil {
		util.Stats.EventsDropped.Add(1)
		return
	}

	select {
	case r.events <- ev:
		util.Stats.EventsRecv.Add(1)
	default:
		util.LogDebug("input queue full, dropping %s event", ev.Type)
		util.Stats.EventsDropped.Add(1)
	}
}
