package reliable_test

import (
	"math/rand/v2"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acmcarther/funandgames/internal/reliable"
)

func TestObserve_literals(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		in   reliable.AckState
		seq  uint16
		want reliable.AckState
	}{
		{
			name: "newer within window",
			in:   reliable.AckState{AckNum: 5, AckField: 0b101},
			seq:  10,
			want: reliable.AckState{AckNum: 10, AckField: 0b10110000},
		},
		{
			name: "newer beyond window",
			in:   reliable.AckState{AckNum: 5, AckField: 0b101},
			seq:  40,
			want: reliable.AckState{AckNum: 40, AckField: 0},
		},
		{
			name: "wraparound newer",
			in:   reliable.AckState{AckNum: 65535, AckField: 0b101},
			seq:  4,
			want: reliable.AckState{AckNum: 4, AckField: 0b10110000},
		},
		{
			name: "older within window",
			in:   reliable.AckState{AckNum: 20, AckField: 0b101},
			seq:  15,
			want: reliable.AckState{AckNum: 20, AckField: 0b10101},
		},
		{
			name: "wraparound older",
			in:   reliable.AckState{AckNum: 5, AckField: 0b101},
			seq:  65535,
			want: reliable.AckState{AckNum: 5, AckField: 0b100101},
		},
		{
			name: "duplicate",
			in:   reliable.AckState{AckNum: 5, AckField: 0b101},
			seq:  5,
			want: reliable.AckState{AckNum: 5, AckField: 0b101},
		},
		{
			name: "older beyond window",
			in:   reliable.AckState{AckNum: 100, AckField: 0b101},
			seq:  68,
			want: reliable.AckState{AckNum: 100, AckField: 0b101},
		},
		{
			name: "oldest representable",
			in:   reliable.AckState{AckNum: 100},
			seq:  69,
			want: reliable.AckState{AckNum: 100, AckField: 1 << 30},
		},
		{
			name: "newest shift keeps top bit",
			in:   reliable.AckState{AckNum: 100, AckField: 1},
			seq:  131,
			want: reliable.AckState{AckNum: 131, AckField: 1<<31 | 1<<30},
		},
		{
			name: "exactly half the sequence space is older",
			in:   reliable.AckState{AckNum: 0, AckField: 0b11},
			seq:  32768,
			want: reliable.AckState{AckNum: 0, AckField: 0b11},
		},
		{
			name: "first receipt from zero state",
			in:   reliable.AckState{},
			seq:  1,
			want: reliable.AckState{AckNum: 1, AckField: 1},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, reliable.Observe(tc.in, tc.seq))
		})
	}
}

// TestObserve_properties checks the closed-form rules for arbitrary inputs.
func TestObserve_properties(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(5, 10))

	for range 100_000 {
		in := reliable.AckState{
			AckNum:   uint16(rng.UintN(1 << 16)),
			AckField: rng.Uint32(),
		}
		seq := uint16(rng.UintN(1 << 16))
		if rng.IntN(4) == 0 {
			// Bias towards the interesting region near AckNum.
			seq = in.AckNum + uint16(rng.IntN(80)) - 40
		}

		got := reliable.Observe(in, seq)

		fwd := seq - in.AckNum
		back := in.AckNum - seq
		switch {
		case fwd == 0:
			require.Equal(t, in, got)
		case fwd < 32:
			require.Equal(t, reliable.AckState{
				AckNum:   seq,
				AckField: ((in.AckField << 1) | 1) << (fwd - 1),
			}, got)
		case fwd < 1<<15:
			require.Equal(t, reliable.AckState{AckNum: seq}, got)
		case back < 32:
			require.Equal(t, in.AckNum, got.AckNum)
			require.Equal(t, in.AckField|1<<(back-1), got.AckField)
		default:
			require.Equal(t, in, got)
		}

		// Deterministic.
		require.Equal(t, got, reliable.Observe(in, seq))
	}
}

// TestObserve_model feeds a lossy, reordering, duplicating stream
// across the wrap boundary and checks every bit against the set of
// sequence numbers actually received.
func TestObserve_model(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(65535, 32))

	start := uint16(65000)
	received := map[uint16]bool{start: true}
	state := reliable.AckState{AckNum: start}
	highest := start

	for range 20_000 {
		// Mostly forward, sometimes back, small steps.
		seq := highest + uint16(rng.IntN(48)) - 16
		received[seq] = true
		if d := seq - highest; d != 0 && d < 1<<15 {
			highest = seq
		}

		// Forget what fell out of the window so that numbers received on
		// an earlier lap are not mistaken for this lap's.
		for s := range received {
			if d := highest - s; d > reliable.AckWindow && d < 1<<15 {
				delete(received, s)
			}
		}

		state = reliable.Observe(state, seq)
		require.Equal(t, highest, state.AckNum)

		for i := range uint16(reliable.AckWindow) {
			want := received[state.AckNum-(i+1)]
			got := state.AckField&(1<<i) != 0
			require.Equalf(t, want, got, "bit %d (seq %d) after receiving %d", i, state.AckNum-(i+1), seq)
		}
	}
}

func TestAckTracker(t *testing.T) {
	t.Parallel()

	a := netip.MustParseAddrPort("127.0.0.1:4444")
	b := netip.MustParseAddrPort("127.0.0.1:4445")

	tr := reliable.NewAckTracker()
	require.Equal(t, reliable.AckState{}, tr.StampFor(a))

	tr.Observe(a, 1)
	tr.Observe(a, 2)
	tr.Observe(a, 4)
	require.Equal(t, reliable.AckState{AckNum: 4, AckField: 0b1110}, tr.StampFor(a))

	// Peers are independent.
	require.Equal(t, reliable.AckState{}, tr.StampFor(b))
	require.Equal(t, reliable.AckState{AckNum: 9, AckField: 1 << 8}, tr.Observe(b, 9))
	require.Equal(t, 2, tr.Len())

	tr.Forget(a)
	require.Equal(t, reliable.AckState{}, tr.StampFor(a))
	require.Equal(t, 1, tr.Len())
}

func TestSequencer(t *testing.T) {
	t.Parallel()

	a := netip.MustParseAddrPort("127.0.0.1:4444")
	b := netip.MustParseAddrPort("[::1]:4444")

	s := reliable.NewSequencer()
	require.Equal(t, uint16(1), s.Next(a))
	require.Equal(t, uint16(2), s.Next(a))
	require.Equal(t, uint16(1), s.Next(b))
	require.Equal(t, uint16(3), s.Next(a))

	// Wraps without gaps.
	var last uint16
	for range 65535 - 3 {
		last = s.Next(a)
	}
	require.Equal(t, uint16(65535), last)
	require.Equal(t, uint16(0), s.Next(a))
	require.Equal(t, uint16(1), s.Next(a))
}
