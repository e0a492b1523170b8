package signaling

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/1ureka/rdstream/internal/util"
)

// keyParam carries the shared secret on the WebSocket URL.
const keyParam = "key"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// server is the host-side WebSocket endpoint. It hands out the first
// authenticated connection and refuses the rest.
type server struct {
	secret   string
	listener net.Listener
	srv      *http.Server
	connCh   chan *websocket.Conn
	claimed  atomic.Bool
}

func newServer(secret string) *server {
	return &server{
		secret: secret,
		connCh: make(chan *websocket.Conn, 1),
	}
}

// start listens on addr and serves /ws in the background.
func (s *server) start(addr string) (net.Addr, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start WS server: %w", err)
	}
	s.listener = listener

	r := chi.NewRouter()
	r.Get("/ws", s.handleWS)
	s.srv = &http.Server{Handler: r}

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogDebug("signaling server stopped: %v", err)
		}
	}()

	return listener.Addr(), nil
}

func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get(keyParam)
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.secret)) != 1 {
		util.LogWarning("signaling request from %s refused", r.RemoteAddr)
		http.Error(w, "Invalid key", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// Only accept the first client.
	if !s.claimed.CompareAndSwap(false, true) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "already connected"))
		conn.Close()
		return
	}
	s.connCh <- conn
}

// waitForClient blocks until a client connects or ctx is cancelled.
func (s *server) waitForClient(ctx context.Context) (*websocket.Conn, error) {
	select {
	case conn := <-s.connCh:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// close stops accepting connections. Upgraded connections are unaffected.
func (s *server) close() {
	if s.srv != nil {
		s.srv.Close()
	}
}
