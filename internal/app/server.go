package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/acmcarther/funandgames/internal/config"
	"github.com/acmcarther/funandgames/internal/history"
	"github.com/acmcarther/funandgames/internal/monitor"
	"github.com/acmcarther/funandgames/internal/pubsub"
	"github.com/acmcarther/funandgames/internal/relay"
	"github.com/acmcarther/funandgames/internal/transport"
	"github.com/acmcarther/funandgames/internal/util"
)

// Server is a running relay: the transport, the optional message history,
// and the optional monitor.
type Server struct {
	log *slog.Logger
	cfg config.Config

	tr      *transport.Transport
	inbound *pubsub.Cursor[transport.Payload]
	events  *pubsub.Cursor[transport.PeerEvent]

	store   *history.Store
	mon     *monitor.Server
	monAddr netip.AddrPort
}

// StartServer binds the relay socket and opens the history and monitor
// when they are configured. Nothing is relayed until Run.
func StartServer(ctx context.Context, log *slog.Logger, cfg config.Config) (*Server, error) {
	tcfg, err := cfg.TransportConfig()
	if err != nil {
		return nil, err
	}

	tr, err := transport.Listen(ctx, log, tcfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		log:     log,
		cfg:     cfg,
		tr:      tr,
		inbound: tr.Inbound(),
		events:  tr.PeerEvents(),
	}

	if cfg.History != "" {
		s.store, err = history.Open(cfg.History)
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	if cfg.Monitor != "" {
		// A nil *history.Store must not become a non-nil interface.
		var hist monitor.HistoryReader
		if s.store != nil {
			hist = s.store
		}

		s.mon = monitor.NewServer(log.With("component", "monitor"), tr, hist)
		s.monAddr, err = s.mon.Start(cfg.Monitor)
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	return s, nil
}

// Addr returns the relay's UDP address.
func (s *Server) Addr() netip.AddrPort {
	return s.tr.LocalAddr()
}

// MonitorAddr returns the monitor's address, or the zero value when disabled.
func (s *Server) MonitorAddr() netip.AddrPort {
	return s.monAddr
}

// KnownPeers returns the live peers.
func (s *Server) KnownPeers(ctx context.Context) ([]netip.AddrPort, error) {
	return s.tr.KnownPeers(ctx)
}

// Run relays messages and sends heartbeats until ctx is done
// or the transport shuts down.
func (s *Server) Run(ctx context.Context) error {
	dcfg := relay.DispatcherConfig{}
	if s.store != nil {
		dcfg.Recorder = s.store
	}
	if s.mon != nil {
		dcfg.OnRelay = func(r relay.Relayed) { s.mon.Publish(monitor.FromRelayed(r)) }
	}
	d := relay.NewDispatcher(s.log.With("component", "dispatcher"), s.tr, dcfg)

	tasks := []func(context.Context) error{
		func(ctx context.Context) error {
			return d.Run(ctx, s.inbound)
		},
		func(ctx context.Context) error {
			return relay.Heartbeat(ctx, s.tr, s.cfg.HeartbeatInterval)
		},
		func(ctx context.Context) error {
			return s.watchPeers(ctx)
		},
		func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return context.Cause(ctx)
			case <-s.tr.Done():
				return errors.New("transport stopped")
			}
		},
	}

	return runTasks(ctx, tasks...)
}

// watchPeers forwards connection table changes to the monitor.
func (s *Server) watchPeers(ctx context.Context) error {
	for {
		e, err := s.events.Next(ctx)
		if err != nil {
			return err
		}
		if s.mon != nil {
			s.mon.Publish(monitor.FromPeerEvent(e))
		}
	}
}

// Close releases everything StartServer opened.
func (s *Server) Close() error {
	var errs []error
	if s.mon != nil {
		errs = append(errs, s.mon.Close())
	}
	errs = append(errs, s.tr.Close())
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}

// RunServer runs the server role until ctx is done.
func RunServer(ctx context.Context, cfg config.Config) error {
	log := util.NewLogger().With("role", config.RoleServer)

	s, err := StartServer(ctx, log, cfg)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	defer s.Close()

	util.RegisterMetrics()
	util.StartStatsReporter(ctx)

	rows := [][2]string{{"Address", s.Addr().String()}}
	if s.mon != nil {
		rows = append(rows, [2]string{"Monitor", s.MonitorAddr().String()})
	}
	if s.store != nil {
		rows = append(rows, [2]string{"History", s.cfg.History})
	}
	printBanner("Chat Relay Server", rows)

	return s.Run(ctx)
}
