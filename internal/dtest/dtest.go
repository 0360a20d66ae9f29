// Package dtest contains helpers shared by tests across the module.
package dtest

import (
	"crypto/sha256"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
)

// ScheduleJitter is how long the "soon" helpers wait
// before failing the test.
const ScheduleJitter = 2 * time.Second

// NewLogger returns a logger that writes through t.Log.
func NewLogger(t testing.TB) *slog.Logger {
	return slogt.New(t, slogt.Text())
}

// ReceiveSoon returns the next value from ch,
// failing the test if none arrives within ScheduleJitter.
func ReceiveSoon[T any](t testing.TB, ch <-chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(ScheduleJitter):
		t.Fatalf("no value received within %s", ScheduleJitter)
		var zero T
		return zero
	}
}

// NotSending fails the test if ch has a value ready.
func NotSending[T any](t testing.TB, ch <-chan T) {
	t.Helper()

	select {
	case v := <-ch:
		t.Fatalf("expected no value ready, got %v", v)
	default:
	}
}

// RandomDataForTest returns a byte slice of size sz
// containing pseudorandom data, derived from a seed based on the test name.
func RandomDataForTest(t testing.TB, sz int) []byte {
	seed := sha256.Sum256([]byte(t.Name()))
	chacha := rand.NewChaCha8(seed)

	out := make([]byte, sz)
	if _, err := chacha.Read(out); err != nil {
		panic(err)
	}
	return out
}
