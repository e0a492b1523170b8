package signaling

import (
	"context"
	"fmt"
	"net"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/pterm/pterm"

	"github.com/1ureka/rdstream/internal/transport"
	"github.com/1ureka/rdstream/internal/util"
)

// Options configures either side of the exchange.
type Options struct {
	// Addr is the host's listen address, e.g. ":8443".
	Addr string
	// URL is the host's WebSocket endpoint as seen by the client.
	URL string
	// Secret authenticates the WebSocket upgrade.
	Secret     string
	ICEServers []string
	// OnListen is called with the bound address once the host is listening.
	// The default prints it.
	OnListen func(net.Addr)
}

// EstablishAsHost runs the host-side flow:
//  1. Start a WS server on opts.Addr
//  2. Wait for an authenticated client
//  3. Create a Transport and send the offer
//  4. Exchange answer and candidates until both channels open
//  5. Close the WS server and connection
func EstablishAsHost(ctx context.Context, opts Options) (*transport.Transport, error) {
	srv := newServer(opts.Secret)
	addr, err := srv.start(opts.Addr)
	if err != nil {
		return nil, err
	}
	defer srv.close()

	if opts.OnListen != nil {
		opts.OnListen(addr)
	} else {
		printListening(addr)
	}

	wsConn, err := srv.waitForClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for client: %w", err)
	}
	defer wsConn.Close()
	util.LogInfo("signaling client connected from %s", wsConn.RemoteAddr())

	tr, err := transport.NewTransport(ctx, transport.SideHost, opts.ICEServers)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	s, errCh := exchange(tr, wsConn)

	// Host sends the offer first.
	if err := s.describe(kindOffer); err != nil {
		tr.Close()
		return nil, fmt.Errorf("failed to send offer: %w", err)
	}

	return awaitReady(ctx, tr, errCh)
}

// EstablishAsClient runs the client-side flow: connect, answer the host's
// offer, exchange candidates, and return once both channels are open.
func EstablishAsClient(ctx context.Context, opts Options) (*transport.Transport, error) {
	util.LogInfo("connecting to signaling server %s", opts.URL)
	wsConn, err := connect(ctx, opts.URL, opts.Secret)
	if err != nil {
		return nil, err
	}
	defer wsConn.Close()

	tr, err := transport.NewTransport(ctx, transport.SideClient, opts.ICEServers)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	_, errCh := exchange(tr, wsConn)
	return awaitReady(ctx, tr, errCh)
}

// exchange wires candidate trickling and starts the receive loop. The loop
// exits when wsConn is closed by the caller.
func exchange(tr *transport.Transport, wsConn *websocket.Conn) (*sender, <-chan error) {
	s := &sender{tr: tr, conn: wsConn}
	r := &receiver{tr: tr, conn: wsConn, sender: s}

	tr.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		// Best effort; the socket may already be closed once channels open.
		s.trickle(c.ToJSON())
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.watch()
	}()
	return s, errCh
}

func awaitReady(ctx context.Context, tr *transport.Transport, errCh <-chan error) (*transport.Transport, error) {
	select {
	case <-tr.Ready():
		util.LogSuccess("WebRTC channels established, closing WS")
		return tr, nil

	case err := <-errCh:
		tr.Close()
		return nil, fmt.Errorf("signaling failed: %w", err)

	case <-ctx.Done():
		tr.Close()
		return nil, ctx.Err()
	}
}

func printListening(addr net.Addr) {
	port := 0
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = tcp.Port
	}
	pterm.DefaultBox.WithTitle("WebSocket Signaling Server").Println(
		fmt.Sprintf("Port : %d\nPath : /ws\n\nForward this port if the client is outside your network.", port),
	)
	util.LogInfo("waiting for client...")
}
