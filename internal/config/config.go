// Package config holds the runtime configuration types, their defaults, and
// YAML file loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Role represents the process role (host or client).
type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

// Transport names accepted by Config.Transport.
const (
	TransportUDP    = "udp"
	TransportWebRTC = "webrtc"
)

// Capture sources accepted by StreamConfig.Source.
const (
	SourceScreen  = "screen"
	SourcePattern = "pattern"
)

// Session policies accepted by SessionConfig.Policy.
const (
	PolicyReplace = "replace"
	PolicyReject  = "reject"
)

// Config stores every parameter for either role. Fields not relevant to the
// active role are ignored.
type Config struct {
	Role      Role   `yaml:"-"`
	Transport string `yaml:"transport"`
	Secret    string `yaml:"secret"`
	LogLevel  string `yaml:"log_level"`

	// HostAddr is the host's IP or name (client only).
	HostAddr string `yaml:"host_addr"`
	// ListenPort receives handshake tokens and input events on the host.
	ListenPort int `yaml:"listen_port"`
	// StreamPort receives frame fragments on the client.
	StreamPort int `yaml:"stream_port"`

	Stream    StreamConfig    `yaml:"stream"`
	Session   SessionConfig   `yaml:"session"`
	Client    ClientConfig    `yaml:"client"`
	Socket    SocketConfig    `yaml:"socket"`
	Signaling SignalingConfig `yaml:"signaling"`
	Admin     AdminConfig     `yaml:"admin"`
}

// StreamConfig covers frame production on the host and the wire layout both
// sides must agree on.
type StreamConfig struct {
	// Width and Height force the streamed resolution; 0 keeps the screen size.
	Width     int           `yaml:"width"`
	Height    int           `yaml:"height"`
	FPS       int           `yaml:"fps"`
	ChunkSize int           `yaml:"chunk_size"`
	Pacing    time.Duration `yaml:"pacing"`
	Quality   int           `yaml:"quality"`
	Sequenced bool          `yaml:"sequenced"`
	Source    string        `yaml:"source"`
	Display   int           `yaml:"display"`
}

// FrameInterval is the delay between capture cycles.
func (s StreamConfig) FrameInterval() time.Duration {
	if s.FPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(s.FPS)
}

type SessionConfig struct {
	Policy string `yaml:"policy"`
}

type ClientConfig struct {
	// PollInterval is the socket receive timeout of the client loop.
	PollInterval time.Duration `yaml:"poll_interval"`
	// HandshakeRetry resends the token until the first datagram arrives; 0 sends once.
	HandshakeRetry time.Duration `yaml:"handshake_retry"`
	WindowWidth    int           `yaml:"window_width"`
	WindowHeight   int           `yaml:"window_height"`
	// ViewerAddr serves the browser viewer; empty disables it.
	ViewerAddr string `yaml:"viewer_addr"`
}

type SocketConfig struct {
	SendBuffer int `yaml:"send_buffer"`
	RecvBuffer int `yaml:"recv_buffer"`
}

type SignalingConfig struct {
	// Addr is the host's WebSocket listen address.
	Addr string `yaml:"addr"`
	// URL is the client's WebSocket target.
	URL string `yaml:"url"`
	// ICEServers are STUN URLs used for candidate gathering.
	ICEServers []string `yaml:"ice_servers"`
}

type AdminConfig struct {
	// Addr serves /metrics and /healthz; empty disables it.
	Addr          string        `yaml:"addr"`
	StatsInterval time.Duration `yaml:"stats_interval"`
}

// Default returns the configuration used when no file or flag overrides it.
func Default() *Config {
	return &Config{
		Transport:  TransportUDP,
		Secret:     "TEST_KEY_123",
		LogLevel:   "info",
		ListenPort: 50005,
		StreamPort: 50006,
		Stream: StreamConfig{
			FPS:       30,
			ChunkSize: 60000,
			Pacing:    time.Millisecond,
			Quality:   50,
			Source:    SourceScreen,
		},
		Session: SessionConfig{Policy: PolicyReplace},
		Client: ClientConfig{
			PollInterval:   5 * time.Millisecond,
			HandshakeRetry: time.Second,
			WindowWidth:    1280,
			WindowHeight:   720,
			ViewerAddr:     "127.0.0.1:8090",
		},
		Socket: SocketConfig{
			SendBuffer: 10 * 1024 * 1024,
			RecvBuffer: 32 * 1024 * 1024,
		},
		Signaling: SignalingConfig{
			Addr: ":0",
			ICEServers: []string{
				"stun:stun.l.google.com:19302",
				"stun:stun1.l.google.com:19302",
			},
		},
		Admin: AdminConfig{StatsInterval: 10 * time.Second},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields required by cfg.Role.
func (c *Config) Validate() error {
	var errs []error

	if c.Secret == "" {
		errs = append(errs, errors.New("secret cannot be empty"))
	}
	if !validPort(c.ListenPort) {
		errs = append(errs, fmt.Errorf("invalid listen port: %d", c.ListenPort))
	}
	if !validPort(c.StreamPort) {
		errs = append(errs, fmt.Errorf("invalid stream port: %d", c.StreamPort))
	}
	if c.ListenPort == c.StreamPort {
		errs = append(errs, errors.New("listen and stream ports must differ"))
	}

	switch c.Transport {
	case TransportUDP, TransportWebRTC:
	default:
		errs = append(errs, fmt.Errorf("invalid transport: %q", c.Transport))
	}

	switch c.Session.Policy {
	case PolicyReplace, PolicyReject:
	default:
		errs = append(errs, fmt.Errorf("invalid session policy: %q", c.Session.Policy))
	}

	if c.Stream.ChunkSize <= 0 || c.Stream.ChunkSize > 65507-c.headerSize() {
		errs = append(errs, fmt.Errorf("chunk size must be in 1..%d", 65507-c.headerSize()))
	}

	switch c.Role {
	case RoleHost:
		if c.Stream.FPS <= 0 {
			errs = append(errs, errors.New("fps must be positive"))
		}
		if c.Stream.Pacing < 0 {
			errs = append(errs, errors.New("pacing cannot be negative"))
		}
		if c.Stream.Quality < 1 || c.Stream.Quality > 100 {
			errs = append(errs, fmt.Errorf("quality must be in 1..100, got %d", c.Stream.Quality))
		}
		if c.Stream.Width < 0 || c.Stream.Height < 0 || (c.Stream.Width == 0) != (c.Stream.Height == 0) {
			errs = append(errs, errors.New("stream width and height must both be set or both be zero"))
		}
		switch c.Stream.Source {
		case SourceScreen, SourcePattern:
		default:
			errs = append(errs, fmt.Errorf("invalid capture source: %q", c.Stream.Source))
		}

	case RoleClient:
		if c.Transport == TransportUDP && c.HostAddr == "" {
			errs = append(errs, errors.New("host address is required"))
		}
		if c.Transport == TransportWebRTC && c.Signaling.URL == "" {
			errs = append(errs, errors.New("signaling url is required for the webrtc transport"))
		}
		if c.Client.PollInterval <= 0 {
			errs = append(errs, errors.New("poll interval must be positive"))
		}

	default:
		errs = append(errs, fmt.Errorf("invalid role: %q", c.Role))
	}

	return errors.Join(errs...)
}

func (c *Config) headerSize() int {
	if c.Stream.Sequenced {
		return 24
	}
	return 20
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}
