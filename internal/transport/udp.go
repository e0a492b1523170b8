// Package transport provides the datagram sockets the streaming core runs on:
// plain UDP, or a pair of WebRTC DataChannels presented as net.PacketConn.
package transport

import (
	"errors"
	"fmt"
	"net"

	"github.com/1ureka/rdstream/internal/util"
)

// ErrBind means a socket could not be opened. It is fatal at startup.
var ErrBind = errors.New("bind failed")

// ListenUDP binds addr and sizes the kernel buffers. A buffer size of 0 keeps
// the OS default; failing to resize is logged, not fatal.
func ListenUDP(addr string, sendBuf, recvBuf int) (*net.UDPConn, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", ErrBind, addr, err)
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBind, addr, err)
	}

	if sendBuf > 0 {
		if err := conn.SetWriteBuffer(sendBuf); err != nil {
			util.LogWarning("set send buffer to %d: %v", sendBuf, err)
		}
	}
	if recvBuf > 0 {
		if err := conn.SetReadBuffer(recvBuf); err != nil {
			util.LogWarning("set receive buffer to %d: %v", recvBuf, err)
		}
	}
	return conn, nil
}
