package transport

import (
	"net"
	"os"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/rdstream/internal/util"
)

const (
	highWaterMark = 1024 * 1024 // writes are dropped while bufferedAmount exceeds this
	inboxSize     = 512         // inbound messages waiting for ReadFrom
)

// Addr names one end of a DataChannel pair. The peer is fixed, so the value
// only matters for logging and session bookkeeping.
type Addr string

func (a Addr) Network() string { return "webrtc" }
func (a Addr) String() string  { return string(a) }

const (
	localAddr  Addr = "local"
	remoteAddr Addr = "peer"
)

// channelConn is a net.PacketConn that reads from one DataChannel and writes
// to another. WriteTo ignores its address argument.
type channelConn struct {
	in  *webrtc.DataChannel
	out *webrtc.DataChannel

	inbox chan []byte
	done  <-chan struct{}
	close func() error

	mu       sync.Mutex
	deadline time.Time
}

func newChannelConn(in, out *webrtc.DataChannel, done <-chan struct{}, closeFn func() error) *channelConn {
	c := &channelConn{
		in:    in,
		out:   out,
		inbox: make(chan []byte, inboxSize),
		done:  done,
		close: closeFn,
	}

	in.OnMessage(func(msg webrtc.DataChannelMessage) {
		data := make([]byte, len(msg.Data))
		copy(data, msg.Data)
		select {
		case c.inbox <- data:
		default:
			util.LogDebug("%s inbox full, dropping %d bytes", in.Label(), len(data))
		}
	})

	return c
}

// ReadFrom blocks for the next message. A deadline set while a read is
// blocked applies from the next call.
func (c *channelConn) ReadFrom(p []byte) (int, net.Addr, error) {
	c.mu.Lock()
	deadline := c.deadline
	c.mu.Unlock()

	var expired <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			return 0, nil, os.ErrDeadlineExceeded
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case data := <-c.inbox:
		return copy(p, data), remoteAddr, nil
	case <-expired:
		return 0, nil, os.ErrDeadlineExceeded
	case <-c.done:
		return 0, nil, net.ErrClosed
	}
}

// WriteTo sends p as one message. Like UDP it never blocks: while the channel
// is congested or not yet open the datagram is silently lost.
func (c *channelConn) WriteTo(p []byte, _ net.Addr) (int, error) {
	select {
	case <-c.done:
		return 0, net.ErrClosed
	default:
	}

	if c.out.ReadyState() != webrtc.DataChannelStateOpen || c.out.BufferedAmount() > highWaterMark {
		return len(p), nil
	}
	if err := c.out.Send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close tears down the whole transport.
func (c *channelConn) Close() error {
	return c.close()
}

func (c *channelConn) LocalAddr() net.Addr { return localAddr }

func (c *channelConn) SetDeadline(t time.Time) error {
	return c.SetReadDeadline(t)
}

func (c *channelConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

func (c *channelConn) SetWriteDeadline(time.Time) error {
	return nil
}

var _ net.PacketConn = (*channelConn)(nil)
