package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/acmcarther/funandgames/internal/protocol"
	"github.com/acmcarther/funandgames/internal/pubsub"
	"github.com/acmcarther/funandgames/internal/reliable"
	"github.com/acmcarther/funandgames/internal/util"
)

// datagram is a decoded frame handed from the socket reader to the inbound loop.
type datagram struct {
	from  netip.AddrPort
	frame *protocol.Frame
}

// peersRequest asks the inbound loop for a connection table snapshot.
// resp must be buffered so the loop never blocks on it.
type peersRequest struct {
	resp chan []netip.AddrPort
}

type receiverQueues struct {
	sent     *queue[sentNotice]
	stamps   *queue[stampUpdate]
	resubmit *queue[OutboundMessage]
	peersReq <-chan peersRequest
}

// receiver is the inbound loop. It owns the ack tracker,
// the pending table and the connection table.
type receiver struct {
	log *slog.Logger
	cfg Config
	q   receiverQueues

	acks    *reliable.AckTracker
	pending *reliable.PendingTable
	conns   *reliable.ConnectionTable

	inbound   *pubsub.Publisher[Payload]
	inTail    *atomic.Pointer[pubsub.Stream[Payload]]
	events    *pubsub.Publisher[PeerEvent]
	eventTail *atomic.Pointer[pubsub.Stream[PeerEvent]]
}

func newReceiver(
	log *slog.Logger,
	cfg Config,
	q receiverQueues,
	inTail *atomic.Pointer[pubsub.Stream[Payload]],
	eventTail *atomic.Pointer[pubsub.Stream[PeerEvent]],
) *receiver {
	inbound, inHead := pubsub.NewPublisher[Payload]()
	events, eventHead := pubsub.NewPublisher[PeerEvent]()
	inTail.Store(inHead)
	eventTail.Store(eventHead)

	return &receiver{
		log: log,
		cfg: cfg,
		q:   q,

		acks:    reliable.NewAckTracker(),
		pending: reliable.NewPendingTable(cfg.DropTimeout),
		conns:   reliable.NewConnectionTable(),

		inbound:   inbound,
		inTail:    inTail,
		events:    events,
		eventTail: eventTail,
	}
}

// readLoop performs the blocking socket reads. Datagrams without the
// protocol marker or with a short header are dropped here.
// It returns once the socket is closed.
func (r *receiver) readLoop(ctx context.Context, conn *net.UDPConn, out chan<- datagram) {
	buf := make([]byte, protocol.DatagramSize)

	for {
		n, from, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			r.log.Warn("Failed to read datagram", "err", err)
			continue
		}

		f, ok := protocol.Decode(buf[:n])
		if !ok {
			util.Stats.AddDiscarded()
			continue
		}
		util.Stats.AddRecv(n)

		select {
		case out <- datagram{from: unmap(from), frame: f}:
		case <-ctx.Done():
			return
		}
	}
}

// loop services datagrams, maintenance ticks and snapshot requests.
// Sent notices are drained before anything that reads the pending table.
func (r *receiver) loop(ctx context.Context, datagrams <-chan datagram) {
	sweep := time.NewTicker(r.cfg.SweepInterval)
	defer sweep.Stop()
	cull := time.NewTicker(r.cfg.CullInterval)
	defer cull.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-r.q.sent.ready():
			r.drainSent()

		case d := <-datagrams:
			r.drainSent()
			r.handle(d, time.Now())

		case <-sweep.C:
			r.drainSent()
			r.sweep(time.Now())

		case <-cull.C:
			r.drainSent()
			r.cull(time.Now())

		case req := <-r.q.peersReq:
			req.resp <- r.conns.KnownPeers()
		}
	}
}

func (r *receiver) drainSent() {
	for _, n := range r.q.sent.drain() {
		r.pending.OnSend(n.packet, n.at)
	}
}

// handle applies one inbound frame: record its sequence number,
// clear what it acknowledges, refresh the sender's liveness,
// and publish the payload.
func (r *receiver) handle(d datagram, now time.Time) {
	f := d.frame

	state := r.acks.Observe(d.from, f.Seq)
	r.q.stamps.push(stampUpdate{peer: d.from, state: state})

	if n := r.pending.ClearAcked(d.from, f.AckNum, f.AckField); n > 0 {
		util.Stats.AddAcked(n)
	}

	if r.conns.Touch(d.from, now) {
		r.log.Info("Peer joined", "peer", d.from)
		r.publishEvent(PeerEvent{Peer: d.from, Kind: PeerJoined, At: now})
		util.Stats.SetLive(r.conns.Len())
	}

	r.inbound.Publish(Payload{Origin: d.from, Body: f.Payload})
	r.inTail.Store(r.inbound.Tail())
}

// sweep resubmits every timed-out send as a new packet.
func (r *receiver) sweep(now time.Time) {
	expired := r.pending.Sweep(now)
	if len(expired) == 0 {
		return
	}

	r.log.Debug("Resubmitting unacknowledged sends", "count", len(expired))
	util.Stats.AddRetransmits(len(expired))
	r.q.resubmit.push(expired...)
}

// cull drops every peer not heard from within the liveness timeout,
// along with its ack state and pending sends.
func (r *receiver) cull(now time.Time) {
	culled := r.conns.Cull(now, r.cfg.LivenessTimeout)
	if len(culled) == 0 {
		return
	}

	for _, peer := range culled {
		r.acks.Forget(peer)
		dropped := r.pending.DropPeer(peer)
		r.q.stamps.push(stampUpdate{peer: peer, forget: true})

		r.log.Info("Culling connection", "peer", peer, "dropped_pending", dropped)
		r.publishEvent(PeerEvent{Peer: peer, Kind: PeerCulled, At: now})
	}

	util.Stats.AddCulled(len(culled))
	util.Stats.SetLive(r.conns.Len())
}

func (r *receiver) publishEvent(e PeerEvent) {
	r.events.Publish(e)
	r.eventTail.Store(r.events.Tail())
}
