// Package app wires the streaming core to its transports and collaborators
// for the host and client roles.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/1ureka/rdstream/internal/admin"
	"github.com/1ureka/rdstream/internal/config"
	"github.com/1ureka/rdstream/internal/input"
	"github.com/1ureka/rdstream/internal/media"
	"github.com/1ureka/rdstream/internal/protocol"
	"github.com/1ureka/rdstream/internal/session"
	"github.com/1ureka/rdstream/internal/signaling"
	"github.com/1ureka/rdstream/internal/stream"
	"github.com/1ureka/rdstream/internal/transport"
	"github.com/1ureka/rdstream/internal/util"
)

// RunHost orchestrates the host lifecycle:
//  1. Bind the shared socket (or establish the WebRTC transport)
//  2. Open the capture source and the admin surface
//  3. Wait for the handshake
//  4. Stream frames and apply input until ctx is cancelled
//
// configPath, when set, is watched and fps, quality and pacing changes are
// applied without restarting.
func RunHost(ctx context.Context, cfg *config.Config, configPath string) error {
	conn, err := openHostConn(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	capt, err := openCapturer(cfg)
	if err != nil {
		return err
	}

	reload := make(chan *config.Config, 1)
	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, config.RoleHost, func(c *config.Config) {
				select {
				case <-reload:
				default:
				}
				reload <- c
			})
			if err != nil {
				util.LogWarning("config watch stopped: %v", err)
			}
		}()
	}

	util.StartStatsReporter(ctx, cfg.Admin.StatsInterval)

	return streamHost(ctx, cfg, conn, capt, media.LogInjector{}, reload)
}

func openHostConn(ctx context.Context, cfg *config.Config) (net.PacketConn, error) {
	if cfg.Transport == config.TransportWebRTC {
		tr, err := signaling.EstablishAsHost(ctx, signaling.Options{
			Addr:       cfg.Signaling.Addr,
			Secret:     cfg.Secret,
			ICEServers: cfg.Signaling.ICEServers,
		})
		if err != nil {
			return nil, fmt.Errorf("establish webrtc transport: %w", err)
		}
		return tr.Conn(), nil
	}

	addr := fmt.Sprintf(":%d", cfg.ListenPort)
	conn, err := transport.ListenUDP(addr, cfg.Socket.SendBuffer, cfg.Socket.RecvBuffer)
	if err != nil {
		return nil, err
	}
	util.LogSuccess("host listening on udp %s", conn.LocalAddr())
	return conn, nil
}

func openCapturer(cfg *config.Config) (media.Capturer, error) {
	if cfg.Stream.Source == config.SourcePattern {
		w, h := cfg.Stream.Width, cfg.Stream.Height
		if w == 0 || h == 0 {
			w, h = 1280, 720
		}
		return media.NewPatternCapturer(w, h), nil
	}
	return media.NewScreenCapturer(cfg.Stream.Display)
}

func layoutOf(cfg *config.Config) protocol.Layout {
	if cfg.Stream.Sequenced {
		return protocol.LayoutSequenced
	}
	return protocol.LayoutPlain
}

// streamHost runs admission, the input loops and the capture loop on conn.
func streamHost(ctx context.Context, cfg *config.Config, conn net.PacketConn, capt media.Capturer, inj input.Injector, reload <-chan *config.Config) error {
	policy, err := session.ParsePolicy(cfg.Session.Policy)
	if err != nil {
		return err
	}
	gate := session.NewGate(cfg.Secret, cfg.StreamPort, policy)

	b := capt.Bounds()
	screen := input.Size{Width: b.Dx(), Height: b.Dy()}
	size := screen
	if cfg.Stream.Width > 0 && cfg.Stream.Height > 0 {
		size = input.Size{Width: cfg.Stream.Width, Height: cfg.Stream.Height}
	}

	if cfg.Admin.Addr != "" {
		if err := startAdmin(ctx, cfg.Admin.Addr, "host", gate); err != nil {
			return err
		}
	}

	util.LogInfo("waiting for client handshake (screen %dx%d, stream %dx%d)", screen.Width, screen.Height, size.Width, size.Height)
	sess, err := gate.Wait(ctx, conn)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	util.LogSuccess("client %s authenticated, streaming to %s", sess.Peer, sess.Stream)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	receiver := input.NewReceiver(conn, gate)
	receiver.OnSession(func(s *session.Session) {
		util.LogInfo("stream target is now %s", s.Stream)
	})
	dispatcher := input.NewDispatcher(inj, func() input.Size { return size }, screen)

	// A receiver failure ends the stream and is what streamHost returns.
	recvErr := make(chan error, 1)
	stopped := func() error {
		select {
		case err := <-recvErr:
			return err
		default:
			return nil
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := receiver.Run(ctx); err != nil {
			recvErr <- fmt.Errorf("input receiver stopped: %w", err)
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx, receiver.Events())
	}()

	producer := stream.NewProducer(conn,
		stream.WithChunkSize(cfg.Stream.ChunkSize),
		stream.WithPacing(cfg.Stream.Pacing),
		stream.WithLayout(layoutOf(cfg)),
	)
	enc := media.NewJPEG(cfg.Stream.Quality)

	ticker := time.NewTicker(cfg.Stream.FrameInterval())
	defer ticker.Stop()

	for {
		if err := sendFrame(ctx, capt, enc, producer, size, gate.Current()); err != nil {
			if ctx.Err() != nil {
				return stopped()
			}
			util.LogDebug("frame skipped: %v", err)
		}

		select {
		case <-ctx.Done():
			return stopped()
		case c := <-reload:
			if d := c.Stream.FrameInterval(); d > 0 {
				ticker.Reset(d)
			}
			producer.SetPacing(c.Stream.Pacing)
			enc = media.NewJPEG(c.Stream.Quality)
			util.LogInfo("applied config: %d fps, pacing %s, quality %d", c.Stream.FPS, c.Stream.Pacing, enc.Quality)
		case <-ticker.C:
		}
	}
}

// sendFrame performs one capture -> scale -> encode -> send cycle.
func sendFrame(ctx context.Context, capt media.Capturer, enc media.Encoder, p *stream.Producer, size input.Size, sess *session.Session) error {
	img, err := capt.Capture()
	if err != nil {
		return err
	}
	img = media.Resize(img, size.Width, size.Height)

	data, err := enc.Encode(img)
	if err != nil {
		return err
	}
	_, err = p.Send(ctx, data, size.Width, size.Height, sess)
	return err
}

func startAdmin(ctx context.Context, addr, role string, gate *session.Gate) error {
	reg := prometheus.NewRegistry()
	if err := util.RegisterMetrics(reg); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: admin %s: %v", transport.ErrBind, addr, err)
	}

	started := time.Now()
	h := admin.NewRouter(reg, func() admin.Health {
		health := admin.Health{Role: role, Started: started}
		if gate != nil {
			if s := gate.Current(); s != nil {
				health.Session = s.Peer.String()
			}
		}
		return health
	})

	go func() {
		if err := util.Serve(ctx, ln, h); err != nil {
			util.LogWarning("admin server: %v", err)
		}
	}()
	util.LogInfo("admin listening on http://%s", ln.Addr())
	return nil
}
