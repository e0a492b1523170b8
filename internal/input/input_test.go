package input

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/rdstream/internal/protocol"
	"github.com/1ureka/rdstream/internal/session"
)

func fixed(s Size) func() Size {
	return func() Size { return s }
}

func TestRescale(t *testing.T) {
	testCases := []struct {
		name     string
		x, y     int
		src, dst Size
		wantX    int
		wantY    int
	}{
		{"window to stream", 400, 300, Size{800, 600}, Size{1600, 1200}, 800, 600},
		{"stream to screen", 800, 600, Size{1600, 1200}, Size{3200, 2400}, 1600, 1200},
		{"truncates", 1, 1, Size{3, 3}, Size{2, 2}, 0, 0},
		{"downscale", 1279, 719, Size{1280, 720}, Size{640, 360}, 639, 359},
		{"unknown source", 7, 9, Size{}, Size{100, 100}, 7, 9},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			x, y := Rescale(tc.x, tc.y, tc.src, tc.dst)
			assert.Equal(t, tc.wantX, x)
			assert.Equal(t, tc.wantY, y)
		})
	}
}

func newPair(t *testing.T) (local, remote net.PacketConn) {
	t.Helper()
	local, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	remote, err = net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		local.Close()
		remote.Close()
	})
	return local, remote
}

func readEvent(t *testing.T, conn net.PacketConn) protocol.InputEvent {
	t.Helper()
	buf := make([]byte, 64)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	require.Equal(t, protocol.InputEventSize, n)
	ev, err := protocol.DecodeInputEvent(buf[:n])
	require.NoError(t, err)
	return ev
}

func TestEmitScalesToStream(t *testing.T) {
	client, host := newPair(t)

	e := NewEmitter(client, host.LocalAddr(), fixed(Size{1600, 1200}), Size{800, 600})
	require.NoError(t, e.Emit(protocol.EventLeftDown, 400, 300, 0))

	ev := readEvent(t, host)
	assert.Equal(t, protocol.InputEvent{Type: protocol.EventLeftDown, X: 800, Y: 600}, ev)
}

func TestEmitDiscardsWithoutResolution(t *testing.T) {
	client, host := newPair(t)

	e := NewEmitter(client, host.LocalAddr(), fixed(Size{0, 600}), Size{800, 600})
	err := e.Emit(protocol.EventMove, 10, 10, 0)
	assert.ErrorIs(t, err, ErrResolutionUnknown)

	require.NoError(t, host.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = host.ReadFrom(make([]byte, 64))
	assert.Error(t, err, "nothing was sent")
}

func TestEmitKeyEvent(t *testing.T) {
	client, host := newPair(t)

	e := NewEmitter(client, host.LocalAddr(), fixed(Size{1280, 720}), Size{})
	require.NoError(t, e.Emit(protocol.EventKeyDown, 0, 0, 0x41))

	ev := readEvent(t, host)
	assert.Equal(t, protocol.EventKeyDown, ev.Type)
	assert.Equal(t, int32(0x41), ev.Key)
}

func TestEmitterWindow(t *testing.T) {
	e := NewEmitter(nil, nil, fixed(Size{1600, 1200}), Size{})

	x, y, err := e.Scale(5, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, x, "unknown window passes through")
	assert.Equal(t, 6, y)

	e.SetWindow(Size{800, 600})
	assert.Equal(t, Size{800, 600}, e.Window())
	x, y, err = e.Scale(400, 300)
	require.NoError(t, err)
	assert.Equal(t, 800, x)
	assert.Equal(t, 600, y)
}

// recordingInjector logs every call as a string.
type recordingInjector struct {
	calls []string
}

func (r *recordingInjector) MoveCursor(x, y int) error {
	r.calls = append(r.calls, fmt.Sprintf("move %d,%d", x, y))
	return nil
}

func (r *recordingInjector) MouseButton(b Button, down bool) error {
	r.calls = append(r.calls, fmt.Sprintf("%s down=%v", b, down))
	return nil
}

func (r *recordingInjector) Key(code int, down bool) error {
	r.calls = append(r.calls, fmt.Sprintf("key %d down=%v", code, down))
	return nil
}

func TestDispatchRules(t *testing.T) {
	testCases := []struct {
		name string
		ev   protocol.InputEvent
		want []string
	}{
		{"move", protocol.InputEvent{Type: protocol.EventMove, X: 800, Y: 600}, []string{"move 1600,1200"}},
		{"left down", protocol.InputEvent{Type: protocol.EventLeftDown, X: 1, Y: 2}, []string{"move 2,4", "left down=true"}},
		{"left up", protocol.InputEvent{Type: protocol.EventLeftUp, X: 1, Y: 2}, []string{"left down=false"}},
		{"right down", protocol.InputEvent{Type: protocol.EventRightDown, X: 3, Y: 4}, []string{"move 6,8", "right down=true"}},
		{"right up", protocol.InputEvent{Type: protocol.EventRightUp}, []string{"right down=false"}},
		{"key down", protocol.InputEvent{Type: protocol.EventKeyDown, X: 99, Y: 99, Key: 13}, []string{"key 13 down=true"}},
		{"key up", protocol.InputEvent{Type: protocol.EventKeyUp, Key: 13}, []string{"key 13 down=false"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inj := &recordingInjector{}
			d := NewDispatcher(inj, fixed(Size{1600, 1200}), Size{3200, 2400})

			require.NoError(t, d.Dispatch(tc.ev))
			assert.Equal(t, tc.want, inj.calls)
		})
	}
}

func TestDispatchUnknownType(t *testing.T) {
	inj := &recordingInjector{}
	d := NewDispatcher(inj, fixed(Size{1, 1}), Size{1, 1})

	assert.Error(t, d.Dispatch(protocol.InputEvent{Type: 9}))
	assert.Empty(t, inj.calls)
}

func TestReceiverGatesInput(t *testing.T) {
	host, client := newPair(t)
	gate := session.NewGate("TEST_KEY_123", 50006, session.PolicyReplace)
	r := NewReceiver(host, gate)

	var admitted []*session.Session
	r.OnSession(func(s *session.Session) { admitted = append(admitted, s) })

	move := protocol.EncodeInputEvent(protocol.InputEvent{Type: protocol.EventMove, X: 5, Y: 6})

	// Before any handshake, input is ignored.
	r.handle(move, client.LocalAddr())
	assert.Empty(t, r.Events())

	// Handshake, then input from the same peer is queued.
	r.handle([]byte("TEST_KEY_123"), client.LocalAddr())
	require.Len(t, admitted, 1)
	r.handle(move, client.LocalAddr())
	require.Len(t, r.Events(), 1)
	assert.Equal(t, int32(5), (<-r.Events()).X)

	// Wrong size and foreign peers are ignored.
	r.handle(move[:15], client.LocalAddr())
	r.handle(append(move, 0), client.LocalAddr())
	r.handle(move, &net.UDPAddr{IP: net.IPv4(10, 9, 9, 9), Port: 1})
	assert.Empty(t, r.Events())
}

func TestReceiverRunEndToEnd(t *testing.T) {
	host, client := newPair(t)
	gate := session.NewGate("k", 50006, session.PolicyReplace)
	_, err := gate.Authenticate([]byte("k"), client.LocalAddr())
	require.NoError(t, err)

	r := NewReceiver(host, gate)
	inj := &recordingInjector{}
	d := NewDispatcher(inj, fixed(Size{1600, 1200}), Size{3200, 2400})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- r.Run(ctx) }()

	e := NewEmitter(client, host.LocalAddr(), fixed(Size{1600, 1200}), Size{800, 600})
	require.NoError(t, e.Emit(protocol.EventMove, 400, 300, 0))

	select {
	case ev := <-r.Events():
		require.NoError(t, d.Dispatch(ev))
	case <-time.After(3 * time.Second):
		t.Fatal("event not received")
	}
	assert.Equal(t, []string{"move 1600,1200"}, inj.calls)

	cancel()
	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("receiver did not stop")
	}
}

func TestDispatcherRunStopsOnClose(t *testing.T) {
	inj := &recordingInjector{}
	d := NewDispatcher(inj, fixed(Size{10, 10}), Size{10, 10})

	events := make(chan protocol.InputEvent, 2)
	events <- protocol.InputEvent{Type: protocol.EventKeyDown, Key: 1}
	events <- protocol.InputEvent{Type: protocol.EventKeyUp, Key: 1}
	close(events)

	d.Run(context.Background(), events)
	assert.Equal(t, []string{"key 1 down=true", "key 1 down=false"}, inj.calls)
}
