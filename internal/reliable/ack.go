package reliable

import "net/netip"

// AckWindow is the number of sequence numbers before AckNum
// that an AckField can represent.
const AckWindow = 32

// AckState is what we have received from one remote peer.
// Bit i of AckField is set iff AckNum-(i+1) was received.
type AckState struct {
	AckNum   uint16
	AckField uint32
}

// Observe returns state updated with the receipt of seq.
//
// Distances are taken modulo 65536. A forward distance below 32768 is newer;
// everything else, including exactly 32768, is treated as older.
func Observe(state AckState, seq uint16) AckState {
	fwd := seq - state.AckNum

	switch {
	case fwd == 0:
		// Duplicate.
		return state

	case fwd < 1<<15:
		if fwd >= AckWindow {
			return AckState{AckNum: seq}
		}
		return AckState{
			AckNum:   seq,
			AckField: ((state.AckField << 1) | 1) << (fwd - 1),
		}

	default:
		back := state.AckNum - seq
		if back >= AckWindow {
			// Too old to represent.
			return state
		}
		state.AckField |= 1 << (back - 1)
		return state
	}
}

// AckTracker keeps the AckState of every peer we receive from.
type AckTracker struct {
	states map[netip.AddrPort]AckState
}

// NewAckTracker creates an empty tracker.
func NewAckTracker() *AckTracker {
	return &AckTracker{states: make(map[netip.AddrPort]AckState)}
}

// Observe records the receipt of seq from sender and returns the new state.
func (t *AckTracker) Observe(sender netip.AddrPort, seq uint16) AckState {
	s := Observe(t.states[sender], seq)
	t.states[sender] = s
	return s
}

// StampFor returns the ack fields to put on the next frame to dest.
// Unknown peers get the zero state.
func (t *AckTracker) StampFor(dest netip.AddrPort) AckState {
	return t.states[dest]
}

// Forget drops everything known about peer.
func (t *AckTracker) Forget(peer netip.AddrPort) {
	delete(t.states, peer)
}

// Len reports the number of tracked peers.
func (t *AckTracker) Len() int {
	return len(t.states)
}
