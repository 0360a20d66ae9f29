// Package util provides process-wide logging and traffic statistics.
package util

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Prometheus collectors
// ──────────────────────────────────────────────────────────────────────────────

var (
	registerOnce sync.Once

	framesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "funandgames",
		Subsystem: "transport",
		Name:      "frames_sent_total",
		Help:      "Frames written to the socket.",
	})
	framesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "funandgames",
		Subsystem: "transport",
		Name:      "frames_received_total",
		Help:      "Protocol frames read from the socket.",
	})
	framesDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "funandgames",
		Subsystem: "transport",
		Name:      "frames_discarded_total",
		Help:      "Datagrams dropped for a missing marker or short header.",
	})
	retransmits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "funandgames",
		Subsystem: "transport",
		Name:      "retransmits_total",
		Help:      "Unacknowledged sends resubmitted after the drop timeout.",
	})
	acked = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "funandgames",
		Subsystem: "transport",
		Name:      "acked_total",
		Help:      "Pending sends cleared by an acknowledgment.",
	})
	sendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "funandgames",
		Subsystem: "transport",
		Name:      "send_errors_total",
		Help:      "Socket write failures.",
	})
	peersCulled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "funandgames",
		Subsystem: "peers",
		Name:      "culled_total",
		Help:      "Peers removed after going silent.",
	})
	peersLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "funandgames",
		Subsystem: "peers",
		Name:      "live",
		Help:      "Peers currently in the connection table.",
	})
	relayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "funandgames",
		Subsystem: "relay",
		Name:      "payloads_total",
		Help:      "Inbound payloads handled by the dispatcher, by kind.",
	}, []string{"kind"})
)

// RegisterMetrics registers the collectors with the default registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesSent, framesReceived, framesDiscarded,
			retransmits, acked, sendErrors,
			peersCulled, peersLive, relayed,
		)
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide traffic counter.
var Stats = &stats{}

type stats struct {
	BytesSent atomic.Int64 // cumulative bytes written to the socket
	BytesRecv atomic.Int64 // cumulative bytes of protocol frames read
	Retrans   atomic.Int64 // cumulative retransmissions
	Culled    atomic.Int64 // cumulative culled peers
}

func (s *stats) AddSent(n int) {
	s.BytesSent.Add(int64(n))
	framesSent.Inc()
}

func (s *stats) AddRecv(n int) {
	s.BytesRecv.Add(int64(n))
	framesReceived.Inc()
}

func (s *stats) AddDiscarded() { framesDiscarded.Inc() }
func (s *stats) AddSendError() { sendErrors.Inc() }
func (s *stats) AddAcked(n int) { acked.Add(float64(n)) }
func (s *stats) SetLive(n int)  { peersLive.Set(float64(n)) }

func (s *stats) AddRetransmits(n int) {
	s.Retrans.Add(int64(n))
	retransmits.Add(float64(n))
}

func (s *stats) AddCulled(n int) {
	s.Culled.Add(int64(n))
	peersCulled.Add(float64(n))
}

func (s *stats) AddPayload(kind string) { relayed.WithLabelValues(kind).Inc() }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs traffic statistics
// every 10 seconds. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevSent, prevRecv, prevRetrans, prevCulled int64
		for {
			select {
			case <-ticker.C:
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()
				retrans := Stats.Retrans.Load()
				culled := Stats.Culled.Load()

				outS := float64(sent-prevSent) / 10.0
				inS := float64(recv-prevRecv) / 10.0
				re := retrans - prevRetrans
				cu := culled - prevCulled

				if re > 0 || cu > 0 || inS > 10 || outS > 10 {
					pterm.DefaultLogger.Info(formatStats(inS, outS, re, cu))
				}

				prevSent = sent
				prevRecv = recv
				prevRetrans = retrans
				prevCulled = culled

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(inS, outS float64, retrans, culled int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Retrans: %3d | Culled: %2d",
		formatBytes(inS),
		formatBytes(outS),
		retrans,
		culled,
	)
}
