package transport

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/acmcarther/funandgames/internal/protocol"
	"github.com/acmcarther/funandgames/internal/reliable"
	"github.com/acmcarther/funandgames/internal/util"
)

// sentNotice tells the inbound loop a packet went out,
// so it can wait for the packet's acknowledgment.
type sentNotice struct {
	packet reliable.SequencedPacket
	at     time.Time
}

// stampUpdate carries the inbound loop's latest ack state for a peer.
// forget clears the peer's stamp after a cull.
type stampUpdate struct {
	peer   netip.AddrPort
	state  reliable.AckState
	forget bool
}

// sender is the single-writer goroutine. It owns sequence numbering and
// a copy of the ack stamps, and writes every frame to the socket.
type sender struct {
	log  *slog.Logger
	conn *net.UDPConn

	seq    *reliable.Sequencer
	stamps map[netip.AddrPort]reliable.AckState

	submissions *queue[OutboundMessage]
	updates     *queue[stampUpdate]
	sent        *queue[sentNotice]
}

// loop waits for submissions or stamp updates. Each wake applies every
// pending stamp update first, so frames carry the freshest acks,
// then sends every queued submission in order.
func (s *sender) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.updates.ready():
		case <-s.submissions.ready():
		}

		for _, u := range s.updates.drain() {
			if u.forget {
				delete(s.stamps, u.peer)
				continue
			}
			s.stamps[u.peer] = u.state
		}

		for _, m := range s.submissions.drain() {
			s.send(m)
		}
	}
}

// send numbers, stamps and writes one message.
func (s *sender) send(m OutboundMessage) {
	m.Body = protocol.Truncate(m.Body)

	stamp := s.stamps[m.Dest]
	p := reliable.SequencedPacket{
		OutboundMessage: m,
		Seq:             s.seq.Next(m.Dest),
		AckNum:          stamp.AckNum,
		AckField:        stamp.AckField,
	}

	data, err := protocol.Encode(&protocol.Frame{
		Seq:      p.Seq,
		AckNum:   p.AckNum,
		AckField: p.AckField,
		Payload:  p.Body,
	})
	if err != nil {
		s.log.Error("Failed to encode frame", "dest", m.Dest, "err", err)
		return
	}

	// Recorded before the write so that the inbound loop
	// already knows the packet when its ack arrives.
	s.sent.push(sentNotice{packet: p, at: time.Now()})

	if _, err := s.conn.WriteToUDPAddrPort(data, m.Dest); err != nil {
		s.log.Warn("Failed to send frame", "dest", m.Dest, "seq", p.Seq, "err", err)
		util.Stats.AddSendError()
		return
	}

	util.Stats.AddSent(len(data))
}
