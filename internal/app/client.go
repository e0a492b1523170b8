package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/1ureka/rdstream/internal/config"
	"github.com/1ureka/rdstream/internal/input"
	"github.com/1ureka/rdstream/internal/media"
	"github.com/1ureka/rdstream/internal/session"
	"github.com/1ureka/rdstream/internal/signaling"
	"github.com/1ureka/rdstream/internal/stream"
	"github.com/1ureka/rdstream/internal/transport"
	"github.com/1ureka/rdstream/internal/util"
	"github.com/1ureka/rdstream/internal/viewer"
)

// maxFragment bounds the client receive buffer: the largest UDP payload.
const maxFragment = 65507

// RunClient orchestrates the client lifecycle:
//  1. Bind the stream port (or establish the WebRTC transport)
//  2. Start the viewer, which supplies UI events
//  3. Send the handshake token
//  4. Run the poll loop until ctx is cancelled
func RunClient(ctx context.Context, cfg *config.Config) error {
	conn, hostAddr, err := openClientConn(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	var (
		renderer media.Renderer = media.NewDecodeRenderer(media.NewJPEG(0), &media.LogPainter{})
		events   <-chan viewer.Event
	)
	if cfg.Client.ViewerAddr != "" {
		v := viewer.New()
		ln, err := net.Listen("tcp", cfg.Client.ViewerAddr)
		if err != nil {
			return fmt.Errorf("%w: viewer %s: %v", transport.ErrBind, cfg.Client.ViewerAddr, err)
		}
		go func() {
			if err := util.Serve(ctx, ln, v.Handler()); err != nil {
				util.LogWarning("viewer server: %v", err)
			}
		}()
		util.LogSuccess("viewer ready at http://%s", ln.Addr())
		events = v.Events()
		if util.DebugEnabled() {
			// Also decode each frame so corrupt ones show up in the log.
			renderer = media.Renderers{v, renderer}
		} else {
			renderer = v
		}
	}

	if cfg.Admin.Addr != "" {
		if err := startAdmin(ctx, cfg.Admin.Addr, "client", nil); err != nil {
			return err
		}
	}
	util.StartStatsReporter(ctx, cfg.Admin.StatsInterval)

	return streamClient(ctx, cfg, conn, hostAddr, renderer, events)
}

func openClientConn(ctx context.Context, cfg *config.Config) (net.PacketConn, net.Addr, error) {
	if cfg.Transport == config.TransportWebRTC {
		tr, err := signaling.EstablishAsClient(ctx, signaling.Options{
			URL:        cfg.Signaling.URL,
			Secret:     cfg.Secret,
			ICEServers: cfg.Signaling.ICEServers,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("establish webrtc transport: %w", err)
		}
		return tr.Conn(), tr.PeerAddr(), nil
	}

	hostAddr, err := resolveHost(cfg.HostAddr, cfg.ListenPort)
	if err != nil {
		return nil, nil, err
	}
	conn, err := transport.ListenUDP(fmt.Sprintf(":%d", cfg.StreamPort), cfg.Socket.SendBuffer, cfg.Socket.RecvBuffer)
	if err != nil {
		return nil, nil, err
	}
	util.LogSuccess("client listening on udp %s", conn.LocalAddr())
	return conn, hostAddr, nil
}

// resolveHost accepts "ip" or "ip:port"; a bare host gets the default port.
func resolveHost(host string, port int) (*net.UDPAddr, error) {
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, strconv.Itoa(port))
	}
	addr, err := net.ResolveUDPAddr("udp", host)
	if err != nil {
		return nil, fmt.Errorf("resolve host %q: %w", host, err)
	}
	return addr, nil
}

// streamClient is the single cooperative loop: drain UI events, poll the
// socket for one datagram, reassemble, render. The handshake is resent every
// HandshakeRetry until the host's first datagram arrives.
func streamClient(ctx context.Context, cfg *config.Config, conn net.PacketConn, hostAddr net.Addr, renderer media.Renderer, events <-chan viewer.Event) error {
	consumer := stream.NewConsumer(stream.WithConsumerLayout(layoutOf(cfg)))
	resolution := func() input.Size {
		w, h := consumer.Resolution()
		return input.Size{Width: w, Height: h}
	}
	emitter := input.NewEmitter(conn, hostAddr, resolution, input.Size{
		Width:  cfg.Client.WindowWidth,
		Height: cfg.Client.WindowHeight,
	})
	host := &session.Session{Peer: hostAddr}

	token := []byte(cfg.Secret)
	if _, err := conn.WriteTo(token, hostAddr); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}
	util.LogInfo("handshake sent to %s", hostAddr)
	lastToken := time.Now()
	connected := false

	buf := make([]byte, maxFragment)
	for {
		if ctx.Err() != nil {
			return nil
		}

		drainEvents(events, emitter)

		if !connected && cfg.Client.HandshakeRetry > 0 && time.Since(lastToken) >= cfg.Client.HandshakeRetry {
			if _, err := conn.WriteTo(token, hostAddr); err != nil {
				util.LogDebug("resend handshake: %v", err)
			}
			lastToken = time.Now()
		}

		if err := conn.SetReadDeadline(time.Now().Add(cfg.Client.PollInterval)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}
		if !host.FromPeer(from) {
			util.LogDebug("ignoring datagram from %s", from)
			continue
		}
		if !connected {
			connected = true
			util.LogSuccess("stream from %s started", from)
		}

		res := consumer.Ingest(buf[:n])
		switch res.Status {
		case stream.StatusReady:
			if res.Missing > 0 {
				util.LogDebug("frame %dx%d completed with %d bytes missing", res.Width, res.Height, res.Missing)
			}
			if err := renderer.Render(res.Frame, res.Width, res.Height); err != nil {
				util.LogDebug("render: %v", err)
			}
		case stream.StatusDropped:
			util.LogDebug("fragment dropped: %s", res.Reason)
		}
	}
}

// drainEvents forwards every pending UI event without blocking.
func drainEvents(events <-chan viewer.Event, e *input.Emitter) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Window.Known() {
				e.SetWindow(ev.Window)
			}
			if err := e.Emit(ev.Type, ev.X, ev.Y, ev.Key); err != nil && !errors.Is(err, input.ErrResolutionUnknown) {
				util.LogDebug("emit %s: %v", ev.Type, err)
			}
		default:
			return
		}
	}
}
