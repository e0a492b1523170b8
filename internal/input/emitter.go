package input

import (
	"errors"
	"fmt"
	"net"

	"github.com/1ureka/rdstream/internal/protocol"
	"github.com/1ureka/rdstream/internal/util"
)

// ErrResolutionUnknown means no frame has announced a stream resolution yet,
// so there is nothing to scale against.
var ErrResolutionUnknown = errors.New("stream resolution unknown")

// Emitter sends client-side events to the host's input port. It is owned by
// the client loop.
type Emitter struct {
	conn   net.PacketConn
	host   net.Addr
	stream func() Size
	window Size
}

// NewEmitter creates an Emitter. stream reports the current stream
// resolution, usually from the frame consumer.
func NewEmitter(conn net.PacketConn, host net.Addr, stream func() Size, window Size) *Emitter {
	return &Emitter{conn: conn, host: host, stream: stream, window: window}
}

// SetWindow records the local window size used for scaling.
func (e *Emitter) SetWindow(s Size) {
	e.window = s
}

// Window returns the local window size.
func (e *Emitter) Window() Size {
	return e.window
}

// Scale converts local window coordinates to stream coordinates. An
// unknown window size passes coordinates through.
func (e *Emitter) Scale(x, y int) (int, int, error) {
	stream := e.stream()
	if !stream.Known() {
		return 0, 0, ErrResolutionUnknown
	}
	if !e.window.Known() {
		return x, y, nil
	}
	sx, sy := Rescale(x, y, e.window, stream)
	return sx, sy, nil
}

// Emit scales and sends one event. Delivery is unreliable; the only feedback
// is a local write error.
func (e *Emitter) Emit(t protocol.EventType, x, y, key int) error {
	sx, sy, err := e.Scale(x, y)
	if err != nil {
		return err
	}

	pkt := protocol.EncodeInputEvent(protocol.InputEvent{
		Type: t,
		X:    int32(sx),
		Y:    int32(sy),
		Key:  int32(key),
	})
	if _, err := e.conn.WriteTo(pkt, e.host); err != nil {
		return fmt.Errorf("send %s event: %w", t, err)
	}
	util.Stats.EventsSent.Add(1)
	return nil
}
