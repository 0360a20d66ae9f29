package reliable

import (
	"net/netip"
	"slices"
	"time"
)

// Liveness defaults.
const (
	DefaultLivenessTimeout = 5 * time.Second
	DefaultCullInterval    = 2 * time.Second
)

// ConnectionTable tracks when each peer was last heard from.
// Only inbound frames create or refresh entries.
type ConnectionTable struct {
	lastContact map[netip.AddrPort]time.Time
}

// NewConnectionTable creates an empty table.
func NewConnectionTable() *ConnectionTable {
	return &ConnectionTable{lastContact: make(map[netip.AddrPort]time.Time)}
}

// Touch records contact with peer at now.
// It reports whether peer was previously unknown.
func (c *ConnectionTable) Touch(peer netip.AddrPort, now time.Time) bool {
	_, known := c.lastContact[peer]
	c.lastContact[peer] = now
	return !known
}

// Cull removes and returns every peer whose last contact
// is more than threshold before now.
func (c *ConnectionTable) Cull(now time.Time, threshold time.Duration) []netip.AddrPort {
	var stale []netip.AddrPort
	for peer, last := range c.lastContact {
		if now.Sub(last) > threshold {
			delete(c.lastContact, peer)
			stale = append(stale, peer)
		}
	}
	slices.SortFunc(stale, netip.AddrPort.Compare)
	return stale
}

// KnownPeers returns a sorted snapshot of the live peers.
func (c *ConnectionTable) KnownPeers() []netip.AddrPort {
	peers := make([]netip.AddrPort, 0, len(c.lastContact))
	for peer := range c.lastContact {
		peers = append(peers, peer)
	}
	slices.SortFunc(peers, netip.AddrPort.Compare)
	return peers
}

// Len reports the number of live peers.
func (c *ConnectionTable) Len() int {
	return len(c.lastContact)
}
