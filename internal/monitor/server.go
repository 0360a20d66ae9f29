package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acmcarther/funandgames/internal/history"
)

const (
	writeTimeout       = 5 * time.Second
	defaultHistorySize = 50
	maxHistorySize     = 1000
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// PeerLister reports the live peers.
type PeerLister interface {
	KnownPeers(ctx context.Context) ([]netip.AddrPort, error)
}

// HistoryReader reads the message log.
type HistoryReader interface {
	Recent(ctx context.Context, n int) ([]history.Entry, error)
}

// Server is the monitor HTTP server.
type Server struct {
	log      *slog.Logger
	peers    PeerLister
	history  HistoryReader
	hub      *hub
	listener net.Listener
	http     *http.Server
}

// NewServer creates a monitor server. hist may be nil,
// in which case /history answers 404.
func NewServer(log *slog.Logger, peers PeerLister, hist HistoryReader) *Server {
	return &Server{
		log:     log,
		peers:   peers,
		history: hist,
		hub:     newHub(),
	}
}

// Start begins listening on addr ("host:port"; port 0 picks one).
// Returns the bound address.
func (s *Server) Start(addr string) (netip.AddrPort, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("failed to start monitor server: %w", err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/peers", s.handlePeers)
	mux.HandleFunc("/history", s.handleHistory)

	s.http = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		_ = s.http.Serve(listener)
	}()

	bound := listener.Addr().(*net.TCPAddr).AddrPort()
	s.log.Info("Monitor listening", "addr", bound)
	return bound, nil
}

// Publish sends e to every connected watcher.
func (s *Server) Publish(e Event) {
	s.hub.publish(e)
}

// Watchers reports the number of connected websocket watchers.
func (s *Server) Watchers() int {
	return s.hub.len()
}

// Close disconnects every watcher and shuts down the listener.
func (s *Server) Close() error {
	s.hub.close()
	if s.http == nil {
		return nil
	}
	return s.http.Close()
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub, ok := s.hub.subscribe()
	if !ok {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		return
	}
	defer s.hub.unsubscribe(sub)

	// Watchers never send; reading only notices when they go away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return

		case e, ok := <-sub.ch:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "dropped"),
					time.Now().Add(writeTimeout))
				return
			}

			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(e); err != nil {
				s.log.Debug("Dropping watcher", "remote", r.RemoteAddr, "err", err)
				return
			}
		}
	}
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	peers, err := s.peers.KnownPeers(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	out := make([]string, len(peers))
	for i, p := range peers {
		out[i] = p.String()
	}
	writeJSON(w, map[string][]string{"peers": out})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}

	n := defaultHistorySize
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid n", http.StatusBadRequest)
			return
		}
		n = min(parsed, maxHistorySize)
	}

	entries, err := s.history.Recent(r.Context(), n)
	if err != nil {
		s.log.Warn("Failed to read history", "err", err)
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, entries)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
