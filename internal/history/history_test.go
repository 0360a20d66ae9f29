package history_test

import (
	"context"
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acmcarther/funandgames/internal/history"
)

func TestStore_recordAndRecent(t *testing.T) {
	t.Parallel()

	s, err := history.Open(filepath.Join(t.TempDir(), "history.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })

	ctx := context.Background()

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, got)

	a := netip.MustParseAddrPort("10.0.0.1:4444")
	b := netip.MustParseAddrPort("[::1]:4444")
	t0 := time.Unix(1_700_000_000, 123)

	require.NoError(t, s.Record(ctx, a, []byte("one"), t0))
	require.NoError(t, s.Record(ctx, b, []byte("two"), t0.Add(time.Second)))
	require.NoError(t, s.Record(ctx, a, []byte("three"), t0.Add(2*time.Second)))

	got, err = s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, "[::1]:4444", got[0].Origin)
	require.Equal(t, "two", got[0].Body)
	require.True(t, got[0].At.Equal(t0.Add(time.Second)))

	require.Equal(t, "10.0.0.1:4444", got[1].Origin)
	require.Equal(t, "three", got[1].Body)
	require.Less(t, got[0].ID, got[1].ID)

	got, err = s.Recent(ctx, 100)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "one", got[0].Body)
}

func TestStore_persists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.sqlite")
	ctx := context.Background()

	s, err := history.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, netip.MustParseAddrPort("10.0.0.1:4444"), []byte("kept"), time.Now()))
	require.NoError(t, s.Close())

	s, err = history.Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "kept", got[0].Body)
}

func TestOpen_badPath(t *testing.T) {
	t.Parallel()

	_, err := history.Open(filepath.Join(t.TempDir(), "missing", "dir", "history.sqlite"))
	require.Error(t, err)
}
