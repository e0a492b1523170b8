// Package session admits a single client through a shared-secret handshake and
// records where its frame stream must be sent.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1ureka/rdstream/internal/util"
)

var (
	// ErrHandshakeRejected means the token did not match the secret.
	ErrHandshakeRejected = errors.New("handshake rejected")
	// ErrSessionActive means another peer holds the session under PolicyReject.
	ErrSessionActive = errors.New("session already active")
)

// Policy decides what a valid handshake from a new peer does to an active session.
type Policy int

const (
	// PolicyReplace lets the last successful handshake win.
	PolicyReplace Policy = iota
	// PolicyReject keeps the first peer until the process exits.
	PolicyReject
)

// ParsePolicy maps a config value onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "replace":
		return PolicyReplace, nil
	case "reject":
		return PolicyReject, nil
	}
	return 0, fmt.Errorf("unknown session policy %q", s)
}

// Session is the host's record of the authenticated client.
type Session struct {
	// Peer is the address the handshake came from.
	Peer net.Addr
	// Stream is Peer with its port replaced by the fixed stream port.
	Stream      net.Addr
	Established time.Time
}

// FromPeer reports whether addr belongs to the same host as the session peer.
// Ports are not compared.
func (s *Session) FromPeer(addr net.Addr) bool {
	if s == nil || addr == nil {
		return false
	}
	return hostOf(s.Peer) == hostOf(addr)
}

func hostOf(addr net.Addr) string {
	if udp, ok := addr.(*net.UDPAddr); ok {
		return udp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// streamAddr substitutes the stream port into a UDP sender address. Other
// address kinds (point-to-point transports) are used as is.
func streamAddr(sender net.Addr, port int) net.Addr {
	udp, ok := sender.(*net.UDPAddr)
	if !ok {
		return sender
	}
	return &net.UDPAddr{IP: udp.IP, Port: port, Zone: udp.Zone}
}

// Gate owns the single session slot.
type Gate struct {
	secret     []byte
	streamPort int
	policy     Policy

	mu      sync.RWMutex
	current *Session
}

// NewGate creates a gate comparing tokens against secret.
func NewGate(secret string, streamPort int, policy Policy) *Gate {
	return &Gate{
		secret:     []byte(secret),
		streamPort: streamPort,
		policy:     policy,
	}
}

// IsToken reports whether raw is exactly the shared secret.
func (g *Gate) IsToken(raw []byte) bool {
	return bytes.Equal(raw, g.secret)
}

// Authenticate admits sender if raw equals the secret. A mismatch leaves the
// gate untouched.
func (g *Gate) Authenticate(raw []byte, sender net.Addr) (*Session, error) {
	if !g.IsToken(raw) {
		return nil, ErrHandshakeRejected
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current != nil && g.policy == PolicyReject && !g.current.FromPeer(sender) {
		return nil, fmt.Errorf("%w: held by %s", ErrSessionActive, g.current.Peer)
	}

	s := &Session{
		Peer:        sender,
		Stream:      streamAddr(sender, g.streamPort),
		Established: time.Now(),
	}
	g.current = s
	util.Stats.Handshakes.Add(1)
	return s, nil
}

// Current returns the active session, or nil before the first handshake.
func (g *Gate) Current() *Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

// pollInterval bounds how long Wait blocks in a single read so that context
// cancellation is noticed.
const pollInterval = 500 * time.Millisecond

// maxTokenSize bounds the handshake read buffer.
const maxTokenSize = 1024

// Wait blocks until a valid handshake arrives on conn. Wrong tokens are
// ignored without a reply. There is no timeout; only ctx ends the wait.
func (g *Gate) Wait(ctx context.Context, conn net.PacketConn) (*Session, error) {
	buf := make([]byte, maxTokenSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return nil, fmt.Errorf("set read deadline: %w", err)
		}
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read handshake: %w", err)
		}

		s, err := g.Authenticate(buf[:n], addr)
		if err != nil {
			util.LogDebug("handshake from %s ignored: %v", addr, err)
			continue
		}
		return s, nil
	}
}
