package relay

import (
	"context"
	"fmt"
	"net/netip"
	"slices"
	"time"

	"github.com/acmcarther/funandgames/internal/protocol"
)

// DefaultHeartbeatInterval is how often keepalives go out.
const DefaultHeartbeatInterval = time.Second

// Heartbeat sends a keepalive to every known peer, plus each address in
// always, every interval until ctx is done.
//
// The client passes its server in always, so that it keeps knocking
// before the server has ever answered and after it has been culled.
func Heartbeat(ctx context.Context, tr Transport, interval time.Duration, always ...netip.AddrPort) error {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-ticker.C:
		}

		peers, err := tr.KnownPeers(ctx)
		if err != nil {
			return fmt.Errorf("failed to list peers: %w", err)
		}

		for _, peer := range heartbeatTargets(peers, always) {
			tr.Submit(peer, protocol.Wrap(protocol.KindKeepAlive, nil))
		}
	}
}

// heartbeatTargets merges peers and always without duplicates.
func heartbeatTargets(peers, always []netip.AddrPort) []netip.AddrPort {
	out := slices.Clone(peers)
	for _, a := range always {
		if !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	return out
}
