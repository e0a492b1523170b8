package main

import (
	"context"
	"net"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/rdstream/internal/config"
	"github.com/1ureka/rdstream/internal/util"
)

// runInteractive asks for the role, and the host IP for a client, when no
// subcommand is given. Everything else comes from the config file.
func runInteractive(ctx context.Context, opts *rootOpts) error {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Host: share this screen", "Client: view a remote host"}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	if strings.HasPrefix(role, "Host") {
		cfg, err := loadConfig(opts, config.RoleHost, nil)
		if err != nil {
			return err
		}
		return runHost(ctx, cfg, opts.configPath)
	}

	hostIP := askHostIP()
	cfg, err := loadConfig(opts, config.RoleClient, func(c *config.Config) {
		c.HostAddr = hostIP
	})
	if err != nil {
		return err
	}
	return runClient(ctx, cfg)
}

// askHostIP prompts until a parseable IP (optionally with port) is entered.
func askHostIP() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Enter Host IP").
			Show()

		raw = strings.TrimSpace(raw)
		if validHost(raw) {
			pterm.Println()
			return raw
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter an IP address such as 192.168.1.20")
	}
}

func validHost(raw string) bool {
	host := raw
	if h, _, err := net.SplitHostPort(raw); err == nil {
		host = h
	}
	return net.ParseIP(host) != nil
}
