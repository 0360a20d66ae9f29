package app_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acmcarther/funandgames/internal/app"
	"github.com/acmcarther/funandgames/internal/config"
	"github.com/acmcarther/funandgames/internal/dtest"
	"github.com/acmcarther/funandgames/internal/history"
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func fastConfig(role config.Role) config.Config {
	cfg := config.Default(role)
	cfg.Bind = "127.0.0.1:0"
	cfg.HeartbeatInterval = 50 * time.Millisecond
	cfg.SweepInterval = 50 * time.Millisecond
	return cfg
}

type runningClient struct {
	c   *app.Client
	in  *io.PipeWriter
	out *syncBuffer
}

func startClient(t *testing.T, ctx context.Context, server string) *runningClient {
	t.Helper()

	cfg := fastConfig(config.RoleClient)
	cfg.Remote = server

	out := &syncBuffer{}
	c, err := app.StartClient(ctx, dtest.NewLogger(t), cfg, out)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	go c.Run(ctx, pr)
	return &runningClient{c: c, in: pw, out: out}
}

func TestRelay_endToEnd(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scfg := fastConfig(config.RoleServer)
	scfg.Monitor = "127.0.0.1:0"
	scfg.History = filepath.Join(t.TempDir(), "history.sqlite")

	srv, err := app.StartServer(ctx, dtest.NewLogger(t), scfg)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	srvDone := make(chan error, 1)
	go func() { srvDone <- srv.Run(ctx) }()

	alice := startClient(t, ctx, srv.Addr().String())
	bob := startClient(t, ctx, srv.Addr().String())
	carol := startClient(t, ctx, srv.Addr().String())

	require.Eventually(t, func() bool {
		peers, err := srv.KnownPeers(ctx)
		return err == nil && len(peers) == 3
	}, dtest.ScheduleJitter, 20*time.Millisecond)

	_, err = io.WriteString(alice.in, "hello everyone\n")
	require.NoError(t, err)

	want := alice.c.Addr().String() + ": hello everyone"
	for _, rc := range []*runningClient{bob, carol} {
		require.Eventually(t, func() bool {
			return strings.Contains(rc.out.String(), want)
		}, dtest.ScheduleJitter, 20*time.Millisecond)
	}

	// The sender is never echoed.
	require.NotContains(t, alice.out.String(), "hello everyone")

	// The message lands in the history, visible through the monitor.
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + srv.MonitorAddr().String() + "/history")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		return err == nil && strings.Contains(string(body), "hello everyone")
	}, dtest.ScheduleJitter, 20*time.Millisecond)

	cancel()
	require.NoError(t, dtest.ReceiveSoon(t, srvDone))

	store, err := history.Open(scfg.History)
	require.NoError(t, err)
	defer store.Close()
	entries, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, alice.c.Addr().String(), entries[0].Origin)
}

func TestClient_exitsOnInputEOF(t *testing.T) {
	t.Parallel()

	cfg := fastConfig(config.RoleClient)
	cfg.Remote = "127.0.0.1:9"

	c, err := app.StartClient(context.Background(), dtest.NewLogger(t), cfg, io.Discard)
	require.NoError(t, err)
	defer c.Close()

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), strings.NewReader("one line\n")) }()
	require.NoError(t, dtest.ReceiveSoon(t, done))
}

func TestStartServer_bindFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	first, err := app.StartServer(ctx, dtest.NewLogger(t), fastConfig(config.RoleServer))
	require.NoError(t, err)
	defer first.Close()

	cfg := fastConfig(config.RoleServer)
	cfg.Bind = first.Addr().String()
	_, err = app.StartServer(ctx, dtest.NewLogger(t), cfg)
	require.ErrorContains(t, err, "failed to bind")
}

func TestStartClient_badRemote(t *testing.T) {
	t.Parallel()

	cfg := fastConfig(config.RoleClient)
	cfg.Remote = "nowhere"

	_, err := app.StartClient(context.Background(), dtest.NewLogger(t), cfg, io.Discard)
	require.ErrorContains(t, err, "invalid server address")
}
