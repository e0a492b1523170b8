// Command rdstream is the CLI entry point.
//
// A host captures its screen and streams it as fragmented UDP datagrams to a
// single authenticated client, which reassembles and displays the frames and
// sends pointer and keyboard input back. The same protocol also runs over a
// WebRTC DataChannel pair set up through WebSocket signaling.
//
// It can be launched interactively (no subcommand) or non-interactively via
// the host and client subcommands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/rdstream/internal/app"
	"github.com/1ureka/rdstream/internal/config"
	"github.com/1ureka/rdstream/internal/util"
)

var version = "dev"

type rootOpts struct {
	configPath string
	debug      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}

	cmd := &cobra.Command{
		Use:           "rdstream",
		Short:         "Stream a desktop over UDP and control it remotely",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			pterm.Info.Println(fmt.Sprintf("rdstream v%s", version))
			pterm.Println()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (watched for changes on the host)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newHostCmd(opts), newClientCmd(opts))
	return cmd
}

// loadConfig reads the file, applies role and log level, and lets apply
// override fields from flags before validation.
func loadConfig(opts *rootOpts, role config.Role, apply func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	cfg.Role = role
	if apply != nil {
		apply(cfg)
	}

	util.SetLevel(cfg.LogLevel)
	if opts.debug {
		util.EnableDebug()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func runHost(ctx context.Context, cfg *config.Config, configPath string) error {
	if err := app.RunHost(ctx, cfg, configPath); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	util.LogInfo("host stopped")
	return nil
}

func runClient(ctx context.Context, cfg *config.Config) error {
	if err := app.RunClient(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	util.LogInfo("client stopped")
	return nil
}
