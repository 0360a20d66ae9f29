package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/acmcarther/funandgames/internal/config"
	"github.com/acmcarther/funandgames/internal/util"
)

// runInteractive asks for the role and addresses when no subcommand is given.
func runInteractive() (config.Config, error) {
	role, err := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Client: chat through a server", "Server: relay messages"}).
		WithDefaultText("Select your role").
		Show()
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to read role: %w", err)
	}

	pterm.Println()

	if strings.HasPrefix(role, "Server") {
		cfg := config.Default(config.RoleServer)
		port := askPort("Server port", config.DefaultServerPort)
		cfg.Bind = ":" + strconv.Itoa(port)
		cfg.Debug = debug
		return cfg, nil
	}

	cfg := config.Default(config.RoleClient)
	port := askPort("Client port", config.DefaultClientPort)
	host := askHost("Server address", "localhost")
	serverPort := askPort("Server port", config.DefaultServerPort)
	cfg.Bind = ":" + strconv.Itoa(port)
	cfg.Remote = net.JoinHostPort(host, strconv.Itoa(serverPort))
	cfg.Debug = debug
	return cfg, nil
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// askPort prompts the user for a port number until a valid one is entered.
// An empty answer selects def.
func askPort(prompt string, def int) int {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(fmt.Sprintf("%s (1 ~ 65535, default %d)", prompt, def)).
			Show()

		raw = strings.TrimSpace(raw)
		if raw == "" {
			pterm.Println()
			return def
		}

		port, err := strconv.Atoi(raw)
		if err == nil && port >= 1 && port <= 65535 {
			pterm.Println()
			return port
		}

		util.LogWarning("invalid port number: must be 1 ~ 65535")
		pterm.Println()
	}
}

// askHost prompts the user for a host name or IP address.
// An empty answer selects def.
func askHost(prompt, def string) string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(fmt.Sprintf("%s (default %s)", prompt, def)).
			Show()

		raw = strings.TrimSpace(raw)
		if raw == "" {
			pterm.Println()
			return def
		}

		if _, err := config.ParsePeerAddress(net.JoinHostPort(raw, "1")); err == nil {
			pterm.Println()
			return raw
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a reachable host name or IP address")
	}
}
