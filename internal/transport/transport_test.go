package transport

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connectPair runs a complete offer/answer exchange in-process with
// non-trickle ICE.
func connectPair(t *testing.T, ctx context.Context) (host, client *Transport) {
	t.Helper()

	host, err := NewTransport(ctx, SideHost, nil)
	require.NoError(t, err)
	client, err = NewTransport(ctx, SideClient, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		host.Close()
		client.Close()
	})

	offer, err := host.CreateOffer()
	require.NoError(t, err)
	gathered := webrtc.GatheringCompletePromise(host.pc)
	require.NoError(t, host.SetLocalDescription(offer))
	<-gathered

	require.NoError(t, client.SetRemoteDescription(*host.pc.LocalDescription()))
	answer, err := client.CreateAnswer()
	require.NoError(t, err)
	gathered = webrtc.GatheringCompletePromise(client.pc)
	require.NoError(t, client.SetLocalDescription(answer))
	<-gathered

	require.NoError(t, host.SetRemoteDescription(*client.pc.LocalDescription()))

	for _, tr := range []*Transport{host, client} {
		select {
		case <-tr.Ready():
		case <-time.After(10 * time.Second):
			t.Skip("no ICE connectivity in this environment")
		}
	}
	return host, client
}

func readWithin(t *testing.T, conn net.PacketConn, d time.Duration) ([]byte, net.Addr) {
	t.Helper()
	buf := make([]byte, 2048)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(d)))
	n, addr, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	return buf[:n], addr
}

func TestTransportDatagrams(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	host, client := connectPair(t, ctx)

	// control: client -> host
	_, err := client.Conn().WriteTo([]byte("TEST_KEY_123"), host.PeerAddr())
	require.NoError(t, err)
	data, addr := readWithin(t, host.Conn(), 5*time.Second)
	assert.Equal(t, "TEST_KEY_123", string(data))
	assert.Equal(t, host.PeerAddr(), addr)

	// stream: host -> client
	frag := make([]byte, 1200)
	for i := range frag {
		frag[i] = byte(i)
	}
	_, err = host.Conn().WriteTo(frag, addr)
	require.NoError(t, err)
	data, _ = readWithin(t, client.Conn(), 5*time.Second)
	assert.Equal(t, frag, data)
}

func TestTransportReadDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	host, _ := connectPair(t, ctx)

	require.NoError(t, host.Conn().SetReadDeadline(time.Now().Add(20*time.Millisecond)))
	_, _, err := host.Conn().ReadFrom(make([]byte, 16))
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)

	require.NoError(t, host.Conn().SetReadDeadline(time.Now().Add(-time.Second)))
	_, _, err = host.Conn().ReadFrom(make([]byte, 16))
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestTransportClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	host, _ := connectPair(t, ctx)

	conn := host.Conn()
	require.NoError(t, conn.SetReadDeadline(time.Time{}))
	require.NoError(t, conn.Close())
	assert.NotPanics(t, func() { host.Close() })

	<-host.Done()
	_, _, err := conn.ReadFrom(make([]byte, 16))
	assert.ErrorIs(t, err, net.ErrClosed)
	_, err = conn.WriteTo([]byte{1}, nil)
	assert.ErrorIs(t, err, net.ErrClosed)
}

func TestSideString(t *testing.T) {
	assert.Equal(t, "host", SideHost.String())
	assert.Equal(t, "client", SideClient.String())
	assert.Equal(t, "webrtc", localAddr.Network())
}
