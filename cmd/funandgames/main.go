// Command funandgames is the CLI entry point.
//
// A chat relay over a reliable-datagram transport on raw UDP. One process
// runs as the server and relays every message to all other live peers;
// clients send what is typed on stdin and print what the server relays.
//
// It can be launched interactively (no subcommand) or non-interactively via
// the server, client and watch subcommands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/acmcarther/funandgames/internal/app"
	"github.com/acmcarther/funandgames/internal/config"
	"github.com/acmcarther/funandgames/internal/monitor"
	"github.com/acmcarther/funandgames/internal/util"
)

var version = "dev"

var (
	// Global flags
	cfgFile string
	debug   bool

	// Role flags
	bindAddr    string
	remoteAddr  string
	monitorAddr string
	historyPath string
)

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "funandgames",
		Short:         "Chat relay over a reliable UDP transport",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				util.EnableDebug()
			}
			pterm.Info.Println(fmt.Sprintf("funandgames v%s", version))
			pterm.Println()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand → interactive mode.
			cfg, err := runInteractive()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "TOML config file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	root.AddCommand(newServerCmd(), newClientCmd(), newWatchCmd())
	return root
}

func newServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Relay messages between every connected client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, config.RoleServer)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&bindAddr, "bind", "", "UDP address to listen on (default \":5555\")")
	cmd.Flags().StringVar(&monitorAddr, "monitor", "", "HTTP address for the monitor (/ws, /metrics, /peers, /history)")
	cmd.Flags().StringVar(&historyPath, "history", "", "SQLite file to log relayed messages to")
	return cmd
}

func newClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Chat through a relay server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, config.RoleClient)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&bindAddr, "bind", "", "UDP address to listen on (default \":4444\")")
	cmd.Flags().StringVar(&remoteAddr, "remote", "", "Relay server address (default \"localhost:5555\")")
	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <monitor-address>",
		Short: "Stream peer and message events from a server's monitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := fmt.Sprintf("ws://%s/ws", args[0])
			util.LogInfo("watching %s", url)

			err := monitor.Watch(cmd.Context(), url, func(e monitor.Event) {
				pterm.Println(e.String())
			})
			if err != nil && cmd.Context().Err() == nil {
				return err
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// loadConfig layers defaults, the config file, then explicitly set flags.
func loadConfig(cmd *cobra.Command, role config.Role) (config.Config, error) {
	cfg := config.Default(role)
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile, role)
		if err != nil {
			return config.Config{}, err
		}
		util.LogDebug("loaded config from %s", cfgFile)
	}

	flags := cmd.Flags()
	if flags.Changed("bind") {
		cfg.Bind = bindAddr
	}
	if flags.Changed("remote") {
		cfg.Remote = remoteAddr
	}
	if flags.Changed("monitor") {
		cfg.Monitor = monitorAddr
	}
	if flags.Changed("history") {
		cfg.History = historyPath
	}
	if debug {
		cfg.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// run executes the role selected by cfg.
func run(ctx context.Context, cfg config.Config) error {
	if cfg.Debug {
		util.EnableDebug()
	}

	util.LogInfo("You are %s", cfg.Role)

	var err error
	switch cfg.Role {
	case config.RoleServer:
		err = app.RunServer(ctx, cfg)
	default:
		err = app.RunClient(ctx, cfg)
	}
	if err != nil {
		return err
	}

	util.LogSuccess("successfully shut down")
	return nil
}
