package main

import (
	"github.com/spf13/cobra"

	"github.com/1ureka/rdstream/internal/config"
)

type hostOpts struct {
	transport  string
	listenPort int
	streamPort int
	secret     string
	fps        int
	width      int
	height     int
	source     string
	policy     string
	adminAddr  string
	wsAddr     string
}

func newHostCmd(root *rootOpts) *cobra.Command {
	var opts hostOpts

	cmd := &cobra.Command{
		Use:     "host",
		Aliases: []string{"h"},
		Short:   "Capture this screen and stream it to one client",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			cfg, err := loadConfig(root, config.RoleHost, func(c *config.Config) {
				if flags.Changed("transport") {
					c.Transport = opts.transport
				}
				if flags.Changed("port") {
					c.ListenPort = opts.listenPort
				}
				if flags.Changed("stream-port") {
					c.StreamPort = opts.streamPort
				}
				if flags.Changed("secret") {
					c.Secret = opts.secret
				}
				if flags.Changed("fps") {
					c.Stream.FPS = opts.fps
				}
				if flags.Changed("width") {
					c.Stream.Width = opts.width
				}
				if flags.Changed("height") {
					c.Stream.Height = opts.height
				}
				if flags.Changed("source") {
					c.Stream.Source = opts.source
				}
				if flags.Changed("policy") {
					c.Session.Policy = opts.policy
				}
				if flags.Changed("admin") {
					c.Admin.Addr = opts.adminAddr
				}
				if flags.Changed("ws-addr") {
					c.Signaling.Addr = opts.wsAddr
				}
			})
			if err != nil {
				return err
			}
			return runHost(cmd.Context(), cfg, root.configPath)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.transport, "transport", config.TransportUDP, "Transport: udp or webrtc")
	f.IntVarP(&opts.listenPort, "port", "p", 0, "UDP port for handshake and input")
	f.IntVar(&opts.streamPort, "stream-port", 0, "Client UDP port frames are sent to")
	f.StringVar(&opts.secret, "secret", "", "Shared handshake secret")
	f.IntVar(&opts.fps, "fps", 0, "Capture rate")
	f.IntVar(&opts.width, "width", 0, "Forced stream width (0 = native)")
	f.IntVar(&opts.height, "height", 0, "Forced stream height (0 = native)")
	f.StringVar(&opts.source, "source", config.SourceScreen, "Capture source: screen or pattern")
	f.StringVar(&opts.policy, "policy", config.PolicyReplace, "Session policy: replace or reject")
	f.StringVar(&opts.adminAddr, "admin", "", "Admin HTTP address for /metrics and /healthz")
	f.StringVar(&opts.wsAddr, "ws-addr", "", "WebSocket signaling listen address (webrtc)")
	return cmd
}

type clientOpts struct {
	transport  string
	listenPort int
	streamPort int
	secret     string
	viewerAddr string
	wsURL      string
	adminAddr  string
}

func newClientCmd(root *rootOpts) *cobra.Command {
	var opts clientOpts

	cmd := &cobra.Command{
		Use:     "client [host-ip]",
		Aliases: []string{"c"},
		Short:   "Connect to a host and display its screen",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			cfg, err := loadConfig(root, config.RoleClient, func(c *config.Config) {
				if len(args) == 1 {
					c.HostAddr = args[0]
				}
				if flags.Changed("transport") {
					c.Transport = opts.transport
				}
				if flags.Changed("port") {
					c.ListenPort = opts.listenPort
				}
				if flags.Changed("stream-port") {
					c.StreamPort = opts.streamPort
				}
				if flags.Changed("secret") {
					c.Secret = opts.secret
				}
				if flags.Changed("viewer") {
					c.Client.ViewerAddr = opts.viewerAddr
				}
				if flags.Changed("ws-url") {
					c.Signaling.URL = opts.wsURL
				}
				if flags.Changed("admin") {
					c.Admin.Addr = opts.adminAddr
				}
			})
			if err != nil {
				return err
			}
			return runClient(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.transport, "transport", config.TransportUDP, "Transport: udp or webrtc")
	f.IntVarP(&opts.listenPort, "port", "p", 0, "Host UDP port for handshake and input")
	f.IntVar(&opts.streamPort, "stream-port", 0, "Local UDP port frames arrive on")
	f.StringVar(&opts.secret, "secret", "", "Shared handshake secret")
	f.StringVar(&opts.viewerAddr, "viewer", "", "Browser viewer address (empty string disables)")
	f.StringVar(&opts.wsURL, "ws-url", "", "Host WebSocket signaling URL (webrtc)")
	f.StringVar(&opts.adminAddr, "admin", "", "Admin HTTP address for /metrics and /healthz")
	return cmd
}
