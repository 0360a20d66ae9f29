package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"

	"github.com/acmcarther/funandgames/internal/config"
	"github.com/acmcarther/funandgames/internal/pubsub"
	"github.com/acmcarther/funandgames/internal/relay"
	"github.com/acmcarther/funandgames/internal/transport"
	"github.com/acmcarther/funandgames/internal/util"
)

// Client is a chat participant connected to one relay server.
type Client struct {
	log    *slog.Logger
	cfg    config.Config
	server netip.AddrPort

	tr      *transport.Transport
	inbound *pubsub.Cursor[transport.Payload]
	console *relay.Console
}

// StartClient binds the client socket. Relayed messages are printed to out.
func StartClient(ctx context.Context, log *slog.Logger, cfg config.Config, out io.Writer) (*Client, error) {
	server, err := config.ParsePeerAddress(cfg.Remote)
	if err != nil {
		return nil, fmt.Errorf("invalid server address: %w", err)
	}

	tcfg, err := cfg.TransportConfig()
	if err != nil {
		return nil, err
	}

	tr, err := transport.Listen(ctx, log, tcfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		log:     log,
		cfg:     cfg,
		server:  server,
		tr:      tr,
		inbound: tr.Inbound(),
		console: relay.NewConsole(log.With("component", "console"), tr, server, out),
	}, nil
}

// Addr returns the client's UDP address.
func (c *Client) Addr() netip.AddrPort {
	return c.tr.LocalAddr()
}

// Run greets the server, then sends every line of in and prints every
// relayed message until ctx is done or in reaches EOF.
func (c *Client) Run(ctx context.Context, in io.Reader) error {
	c.console.Greet()

	return runTasks(ctx,
		func(ctx context.Context) error {
			return c.console.Print(ctx, c.inbound)
		},
		func(ctx context.Context) error {
			return relay.Heartbeat(ctx, c.tr, c.cfg.HeartbeatInterval, c.server)
		},
		detached(func(ctx context.Context) error {
			return c.console.ReadInput(ctx, in)
		}),
		func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return context.Cause(ctx)
			case <-c.tr.Done():
				return errors.New("transport stopped")
			}
		},
	)
}

// Close releases the client socket.
func (c *Client) Close() error {
	return c.tr.Close()
}

// RunClient runs the client role on stdin and stdout until ctx is done.
func RunClient(ctx context.Context, cfg config.Config) error {
	log := util.NewLogger().With("role", config.RoleClient)

	c, err := StartClient(ctx, log, cfg, os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}
	defer c.Close()

	printBanner("Chat Client", [][2]string{
		{"Address", c.Addr().String()},
		{"Server", c.server.String()},
	})
	fmt.Println("type your messages")

	return c.Run(ctx, os.Stdin)
}
