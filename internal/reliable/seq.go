// Package reliable holds the per-peer bookkeeping of the transport:
// sequence numbers, received-ack windows, sends awaiting acknowledgment,
// and peer liveness.
//
// None of the types here are safe for concurrent use.
// Each one is owned by exactly one transport loop.
package reliable

import "net/netip"

// Sequencer hands out per-destination sequence numbers.
type Sequencer struct {
	next map[netip.AddrPort]uint16
}

// NewSequencer creates an empty sequencer.
// The first call to Next for any destination returns 1.
func NewSequencer() *Sequencer {
	return &Sequencer{next: make(map[netip.AddrPort]uint16)}
}

// Next returns the next sequence number for dest,
// one more than the previous value, wrapping at 65536.
func (s *Sequencer) Next(dest netip.AddrPort) uint16 {
	n := s.next[dest] + 1
	s.next[dest] = n
	return n
}
