// Package transport runs the reliable-datagram engine on a single UDP socket.
//
// Two loops share the socket. The outbound loop numbers and stamps every
// submitted message and writes it; the inbound loop reads frames, tracks
// what each peer has received from us and what we have received from them,
// retransmits what times out, and culls peers that go silent.
// The loops share no state; they talk only through one-way queues.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/acmcarther/funandgames/internal/pubsub"
	"github.com/acmcarther/funandgames/internal/reliable"
)

// DefaultSweepInterval is how often the pending table is checked
// for sends that have passed the drop timeout.
const DefaultSweepInterval = 500 * time.Millisecond

// ErrClosed is the cause reported once Close has been called.
var ErrClosed = errors.New("transport closed")

// Config configures a Transport.
// Zero durations select the package defaults.
type Config struct {
	// Bind is the local address. The zero value binds every
	// interface on an ephemeral port.
	Bind netip.AddrPort

	DropTimeout     time.Duration
	LivenessTimeout time.Duration
	CullInterval    time.Duration
	SweepInterval   time.Duration
}

func (c Config) withDefaults() Config {
	if c.DropTimeout <= 0 {
		c.DropTimeout = reliable.DefaultDropTimeout
	}
	if c.LivenessTimeout <= 0 {
		c.LivenessTimeout = reliable.DefaultLivenessTimeout
	}
	if c.CullInterval <= 0 {
		c.CullInterval = reliable.DefaultCullInterval
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	return c
}

// OutboundMessage is a body headed for one peer.
type OutboundMessage = reliable.OutboundMessage

// Payload is a received frame body with the transport header stripped.
type Payload struct {
	Origin netip.AddrPort
	Body   []byte
}

// PeerEventKind says what happened to a peer.
type PeerEventKind uint8

const (
	PeerJoined PeerEventKind = iota + 1
	PeerCulled
)

func (k PeerEventKind) String() string {
	switch k {
	case PeerJoined:
		return "joined"
	case PeerCulled:
		return "culled"
	default:
		return fmt.Sprintf("PeerEventKind(%d)", uint8(k))
	}
}

// PeerEvent is a change to the connection table.
type PeerEvent struct {
	Peer netip.AddrPort
	Kind PeerEventKind
	At   time.Time
}

// Transport is a reliable-datagram endpoint.
//
// Its lifecycle is governed by the context passed to Listen and by Close.
type Transport struct {
	log   *slog.Logger
	conn  *net.UDPConn
	local netip.AddrPort

	submissions *queue[OutboundMessage]
	peersReq    chan peersRequest

	inTail    *atomic.Pointer[pubsub.Stream[Payload]]
	eventTail *atomic.Pointer[pubsub.Stream[PeerEvent]]

	ctx    context.Context
	cancel context.CancelCauseFunc

	wg       sync.WaitGroup
	closeErr error
}

// Listen binds a UDP socket and starts the transport loops.
// A bind failure is returned; nothing is started in that case.
func Listen(ctx context.Context, log *slog.Logger, cfg Config) (*Transport, error) {
	cfg = cfg.withDefaults()

	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(cfg.Bind))
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", cfg.Bind, err)
	}

	tCtx, cancel := context.WithCancelCause(ctx)

	t := &Transport{
		log:         log,
		conn:        conn,
		local:       unmap(conn.LocalAddr().(*net.UDPAddr).AddrPort()),
		submissions: newQueue[OutboundMessage](),
		peersReq:    make(chan peersRequest),
		inTail:      new(atomic.Pointer[pubsub.Stream[Payload]]),
		eventTail:   new(atomic.Pointer[pubsub.Stream[PeerEvent]]),
		ctx:         tCtx,
		cancel:      cancel,
	}

	sent := newQueue[sentNotice]()
	stamps := newQueue[stampUpdate]()

	s := &sender{
		log:         log.With("loop", "outbound"),
		conn:        conn,
		seq:         reliable.NewSequencer(),
		stamps:      make(map[netip.AddrPort]reliable.AckState),
		submissions: t.submissions,
		updates:     stamps,
		sent:        sent,
	}

	r := newReceiver(log.With("loop", "inbound"), cfg, receiverQueues{
		sent:     sent,
		stamps:   stamps,
		resubmit: t.submissions,
		peersReq: t.peersReq,
	}, t.inTail, t.eventTail)

	datagrams := make(chan datagram)

	t.wg.Add(4)
	go func() {
		defer t.wg.Done()
		s.loop(tCtx)
	}()
	go func() {
		defer t.wg.Done()
		r.readLoop(tCtx, conn, datagrams)
	}()
	go func() {
		defer t.wg.Done()
		r.loop(tCtx, datagrams)
	}()
	go func() {
		defer t.wg.Done()
		<-tCtx.Done()
		// Unblocks the reader.
		t.closeErr = conn.Close()
	}()

	log.Info("Transport listening", "addr", t.local)
	return t, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// LocalAddr returns the bound address.
func (t *Transport) LocalAddr() netip.AddrPort {
	return t.local
}

// Done returns a channel that is closed when the transport is shut down
// (Close called or parent context cancelled).
func (t *Transport) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Close stops both loops, closes the socket,
// and waits for every goroutine to exit.
func (t *Transport) Close() error {
	t.cancel(ErrClosed)
	t.wg.Wait()
	if errors.Is(t.closeErr, net.ErrClosed) {
		return nil
	}
	return t.closeErr
}

// ---------------------------------------------------------------------------
// Data
// ---------------------------------------------------------------------------

// Submit queues body for delivery to dest and returns immediately.
// The transport owns body afterwards. Bodies longer than one
// datagram allows are truncated.
func (t *Transport) Submit(dest netip.AddrPort, body []byte) {
	t.submissions.push(OutboundMessage{Dest: dest, Body: body})
}

// Inbound returns a cursor over payloads received from now on.
// Each call returns an independent cursor.
func (t *Transport) Inbound() *pubsub.Cursor[Payload] {
	return pubsub.NewCursor(t.inTail.Load())
}

// PeerEvents returns a cursor over connection table changes from now on.
func (t *Transport) PeerEvents() *pubsub.Cursor[PeerEvent] {
	return pubsub.NewCursor(t.eventTail.Load())
}

// KnownPeers returns a sorted snapshot of the live peers.
func (t *Transport) KnownPeers(ctx context.Context) ([]netip.AddrPort, error) {
	req := peersRequest{resp: make(chan []netip.AddrPort, 1)}

	select {
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	case <-t.ctx.Done():
		return nil, context.Cause(t.ctx)
	case t.peersReq <- req:
	}

	select {
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	case <-t.ctx.Done():
		return nil, context.Cause(t.ctx)
	case peers := <-req.resp:
		return peers, nil
	}
}

// unmap normalizes IPv4-mapped IPv6 addresses so that a peer
// always has the same key regardless of socket family.
func unmap(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
