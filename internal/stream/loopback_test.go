package stream

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/rdstream/internal/session"
)

// TestLoopbackFrame sends a multi-fragment frame over real UDP sockets and
// checks that it reassembles byte for byte.
func TestLoopbackFrame(t *testing.T) {
	host, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer host.Close()

	client, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer client.Close()

	sess := &session.Session{Peer: client.LocalAddr(), Stream: client.LocalAddr()}
	p := NewProducer(host, WithChunkSize(8000), WithPacing(time.Millisecond))
	c := NewConsumer()

	frame := makeFrame(20000)
	n, err := p.Send(context.Background(), frame, 100, 100, sess)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	buf := make([]byte, 65535)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
	for range n {
		m, _, err := client.ReadFrom(buf)
		require.NoError(t, err)

		res := c.Ingest(buf[:m])
		require.NotEqual(t, StatusDropped, res.Status)
		if res.Status == StatusReady {
			assert.Equal(t, frame, res.Frame)
			assert.Zero(t, res.Missing)
			return
		}
	}
	t.Fatal("frame never completed")
}
