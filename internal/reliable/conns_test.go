package reliable_test

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acmcarther/funandgames/internal/reliable"
)

func TestConnectionTable_cull(t *testing.T) {
	t.Parallel()

	stale := netip.MustParseAddrPort("127.0.0.1:4444")
	fresh := netip.MustParseAddrPort("127.0.0.1:4445")
	t0 := time.Unix(1_000_000, 0)

	c := reliable.NewConnectionTable()
	require.True(t, c.Touch(stale, t0))
	require.True(t, c.Touch(fresh, t0))
	require.False(t, c.Touch(fresh, t0.Add(3*time.Second)), "second touch is a refresh")

	require.Empty(t, c.Cull(t0.Add(5*time.Second), 5*time.Second))

	culled := c.Cull(t0.Add(6*time.Second), 5*time.Second)
	require.Equal(t, []netip.AddrPort{stale}, culled)
	require.Equal(t, []netip.AddrPort{fresh}, c.KnownPeers())

	// Culling is idempotent.
	require.Empty(t, c.Cull(t0.Add(6*time.Second), 5*time.Second))

	// A culled peer comes back as new.
	require.True(t, c.Touch(stale, t0.Add(7*time.Second)))
}

func TestConnectionTable_knownPeersSorted(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_000_000, 0)
	c := reliable.NewConnectionTable()
	for _, s := range []string{"10.0.0.3:1", "10.0.0.1:2", "10.0.0.1:1"} {
		c.Touch(netip.MustParseAddrPort(s), now)
	}

	require.Equal(t, []netip.AddrPort{
		netip.MustParseAddrPort("10.0.0.1:1"),
		netip.MustParseAddrPort("10.0.0.1:2"),
		netip.MustParseAddrPort("10.0.0.3:1"),
	}, c.KnownPeers())
	require.Equal(t, 3, c.Len())
}
