// Package relay is the chat layer on top of the transport: the server's
// broadcast policy, the heartbeat that keeps peers alive, and the client console.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/acmcarther/funandgames/internal/protocol"
	"github.com/acmcarther/funandgames/internal/pubsub"
	"github.com/acmcarther/funandgames/internal/transport"
	"github.com/acmcarther/funandgames/internal/util"
)

// Transport is the part of *transport.Transport the relay needs.
type Transport interface {
	Submit(dest netip.AddrPort, body []byte)
	KnownPeers(ctx context.Context) ([]netip.AddrPort, error)
}

// Recorder stores relayed chat messages.
type Recorder interface {
	Record(ctx context.Context, from netip.AddrPort, body []byte, at time.Time) error
}

// Relayed describes one broadcast chat message.
type Relayed struct {
	From netip.AddrPort
	Body []byte
	To   []netip.AddrPort
	At   time.Time
}

// DispatcherConfig holds the optional hooks of a Dispatcher.
type DispatcherConfig struct {
	// Recorder, if set, receives every relayed message.
	Recorder Recorder

	// OnRelay, if set, is called after every broadcast,
	// from the goroutine running the dispatcher.
	OnRelay func(Relayed)
}

// Dispatcher applies the server relay policy to inbound payloads.
type Dispatcher struct {
	log *slog.Logger
	tr  Transport
	cfg DispatcherConfig
}

// NewDispatcher creates a dispatcher that answers through tr.
func NewDispatcher(log *slog.Logger, tr Transport, cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{log: log, tr: tr, cfg: cfg}
}

// Run dispatches every payload from in until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, in *pubsub.Cursor[transport.Payload]) error {
	for {
		p, err := in.Next(ctx)
		if err != nil {
			return err
		}

		if err := d.Dispatch(ctx, p); err != nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			d.log.Warn("Failed to dispatch payload", "origin", p.Origin, "err", err)
		}
	}
}

// Dispatch handles one payload. Unknown or empty payloads are ignored;
// a keepalive has already done its work by refreshing the sender.
func (d *Dispatcher) Dispatch(ctx context.Context, p transport.Payload) error {
	ip, ok := protocol.Classify(p.Origin, p.Body)
	if !ok {
		return nil
	}
	util.Stats.AddPayload(ip.Kind.String())

	if ip.Kind != protocol.KindMessage {
		return nil
	}
	return d.relay(ctx, ip)
}

// relay sends the message, prefixed with its origin, to every other
// known peer, and answers the origin with a keepalive.
func (d *Dispatcher) relay(ctx context.Context, ip protocol.IdentifiedPayload) error {
	peers, err := d.tr.KnownPeers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list peers: %w", err)
	}

	text := append([]byte(ip.Origin.String()+": "), ip.Body...)
	body := protocol.Wrap(protocol.KindMessage, text)

	to := make([]netip.AddrPort, 0, len(peers))
	for _, peer := range peers {
		if peer == ip.Origin {
			continue
		}
		// Bodies are never modified after Submit, so one copy serves every peer.
		d.tr.Submit(peer, body)
		to = append(to, peer)
	}
	d.tr.Submit(ip.Origin, protocol.Wrap(protocol.KindKeepAlive, nil))

	now := time.Now()
	d.log.Debug("Relayed message", "origin", ip.Origin, "recipients", len(to))

	if d.cfg.Recorder != nil {
		if err := d.cfg.Recorder.Record(ctx, ip.Origin, ip.Body, now); err != nil {
			d.log.Warn("Failed to record message", "origin", ip.Origin, "err", err)
		}
	}
	if d.cfg.OnRelay != nil {
		d.cfg.OnRelay(Relayed{From: ip.Origin, Body: ip.Body, To: to, At: now})
	}
	return nil
}
