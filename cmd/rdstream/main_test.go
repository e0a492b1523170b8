package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/rdstream/internal/config"
)

func TestValidHost(t *testing.T) {
	testCases := []struct {
		in   string
		want bool
	}{
		{"192.168.1.20", true},
		{"192.168.1.20:50005", true},
		{"::1", true},
		{"[::1]:50005", true},
		{"", false},
		{"host.example", false},
		{"300.1.1.1", false},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, validHost(tc.in))
		})
	}
}

func TestLoadConfigAppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rdstream.yaml")
	require.NoError(t, os.WriteFile(path, []byte("secret: from-file\nstream:\n  fps: 15\n"), 0o644))

	cfg, err := loadConfig(&rootOpts{configPath: path}, config.RoleHost, func(c *config.Config) {
		c.Stream.FPS = 60
	})
	require.NoError(t, err)
	assert.Equal(t, config.RoleHost, cfg.Role)
	assert.Equal(t, "from-file", cfg.Secret)
	assert.Equal(t, 60, cfg.Stream.FPS)
}

func TestLoadConfigValidates(t *testing.T) {
	_, err := loadConfig(&rootOpts{}, config.RoleClient, nil)
	assert.Error(t, err, "client without host address")

	cfg, err := loadConfig(&rootOpts{}, config.RoleClient, func(c *config.Config) {
		c.HostAddr = "127.0.0.1"
	})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.HostAddr)
}

func TestHostFlagsOverrideConfig(t *testing.T) {
	root := newRootCmd()
	host, _, err := root.Find([]string{"host"})
	require.NoError(t, err)

	require.NoError(t, host.Flags().Parse([]string{"--fps", "12", "--source", "pattern"}))
	assert.True(t, host.Flags().Changed("fps"))
	assert.False(t, host.Flags().Changed("port"))
}
