package reliable

import (
	"net/netip"
	"time"

	"github.com/bits-and-blooms/bitset"
)

// DefaultDropTimeout is how long a send may stay unacknowledged
// before it is presumed lost and resubmitted.
const DefaultDropTimeout = 5 * time.Second

// OutboundMessage is an application payload headed for Dest.
type OutboundMessage struct {
	Dest netip.AddrPort
	Body []byte
}

// SequencedPacket is an OutboundMessage as it went out on the wire:
// numbered and stamped with our ack state for the destination.
type SequencedPacket struct {
	OutboundMessage

	Seq      uint16
	AckNum   uint16
	AckField uint32
}

// PendingSend is a packet awaiting acknowledgment.
type PendingSend struct {
	Packet SequencedPacket
	SentAt time.Time
}

type pendingKey struct {
	dest netip.AddrPort
	seq  uint16
}

// PendingTable remembers sent packets until they are acknowledged
// or time out.
type PendingTable struct {
	timeout time.Duration
	entries map[pendingKey]PendingSend
}

// NewPendingTable creates an empty table.
// A non-positive timeout selects DefaultDropTimeout.
func NewPendingTable(timeout time.Duration) *PendingTable {
	if timeout <= 0 {
		timeout = DefaultDropTimeout
	}
	return &PendingTable{
		timeout: timeout,
		entries: make(map[pendingKey]PendingSend),
	}
}

// OnSend records p as sent at now.
// A packet with the same destination and sequence number replaces
// the previous entry and its timer.
func (t *PendingTable) OnSend(p SequencedPacket, now time.Time) {
	t.entries[pendingKey{dest: p.Dest, seq: p.Seq}] = PendingSend{Packet: p, SentAt: now}
}

// ClearAcked removes every entry that sender acknowledges with
// ackNum and ackField, returning how many were removed.
//
// The zero stamp is what a peer sends before it has received anything
// from us, so it acknowledges nothing, not sequence number 0.
func (t *PendingTable) ClearAcked(sender netip.AddrPort, ackNum uint16, ackField uint32) int {
	if ackNum == 0 && ackField == 0 {
		return 0
	}

	n := t.remove(pendingKey{dest: sender, seq: ackNum})

	if ackField == 0 {
		return n
	}

	bs := bitset.From([]uint64{uint64(ackField)})
	for i, ok := bs.NextSet(0); ok; i, ok = bs.NextSet(i + 1) {
		n += t.remove(pendingKey{dest: sender, seq: ackNum - uint16(i+1)})
	}
	return n
}

func (t *PendingTable) remove(k pendingKey) int {
	if _, ok := t.entries[k]; !ok {
		return 0
	}
	delete(t.entries, k)
	return 1
}

// Sweep removes every entry older than the drop timeout
// and returns the original messages for resubmission.
func (t *PendingTable) Sweep(now time.Time) []OutboundMessage {
	var out []OutboundMessage
	for k, p := range t.entries {
		if now.Sub(p.SentAt) > t.timeout {
			delete(t.entries, k)
			out = append(out, p.Packet.OutboundMessage)
		}
	}
	return out
}

// DropPeer removes every entry headed for peer,
// returning how many were removed.
func (t *PendingTable) DropPeer(peer netip.AddrPort) int {
	n := 0
	for k := range t.entries {
		if k.dest == peer {
			delete(t.entries, k)
			n++
		}
	}
	return n
}

// Len reports the number of packets awaiting acknowledgment.
func (t *PendingTable) Len() int {
	return len(t.entries)
}

// Has reports whether the packet with the given destination and
// sequence number is still awaiting acknowledgment.
func (t *PendingTable) Has(dest netip.AddrPort, seq uint16) bool {
	_, ok := t.entries[pendingKey{dest: dest, seq: seq}]
	return ok
}
