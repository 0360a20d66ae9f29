package relay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/acmcarther/funandgames/internal/protocol"
	"github.com/acmcarther/funandgames/internal/pubsub"
	"github.com/acmcarther/funandgames/internal/transport"
)

// Console is the client side of the chat: lines typed in go to the
// server, messages relayed by the server are printed.
type Console struct {
	log    *slog.Logger
	tr     Transport
	server netip.AddrPort
	out    io.Writer
}

// NewConsole creates a console talking to server and printing to out.
func NewConsole(log *slog.Logger, tr Transport, server netip.AddrPort, out io.Writer) *Console {
	return &Console{log: log, tr: tr, server: server, out: out}
}

// Greet announces the client to the server with a keepalive.
func (c *Console) Greet() {
	c.tr.Submit(c.server, protocol.Wrap(protocol.KindKeepAlive, nil))
}

// ReadInput submits every non-blank line of r to the server as a message.
// It returns at EOF or when ctx is done; a read already in progress
// is not interrupted.
func (c *Console) ReadInput(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}

		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(line) > protocol.MaxBody {
			c.log.Warn("Message truncated", "len", len(line), "max", protocol.MaxBody)
		}
		c.tr.Submit(c.server, protocol.Wrap(protocol.KindMessage, []byte(line)))
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

// Print writes every chat message from in to the console until ctx is done.
func (c *Console) Print(ctx context.Context, in *pubsub.Cursor[transport.Payload]) error {
	for {
		p, err := in.Next(ctx)
		if err != nil {
			return err
		}

		ip, ok := protocol.Classify(p.Origin, p.Body)
		if !ok || ip.Kind != protocol.KindMessage {
			continue
		}
		fmt.Fprintln(c.out, DisplayText(ip.Body))
	}
}

// DisplayText renders a message body for the terminal,
// dropping NUL padding and surrounding whitespace.
func DisplayText(body []byte) string {
	return strings.TrimSpace(strings.Trim(string(body), "\x00"))
}
