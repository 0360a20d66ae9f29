package transport

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acmcarther/funandgames/internal/dtest"
)

func TestQueue_drainsInOrder(t *testing.T) {
	t.Parallel()

	q := newQueue[int]()
	dtest.NotSending(t, q.ready())
	require.Empty(t, q.drain())

	q.push(1, 2)
	q.push(3)
	q.push()

	dtest.ReceiveSoon(t, q.ready())
	require.Equal(t, []int{1, 2, 3}, q.drain())
	require.Empty(t, q.drain())

	// The wake was consumed above, even though there were several pushes.
	dtest.NotSending(t, q.ready())
}

func TestQueue_concurrentPushers(t *testing.T) {
	t.Parallel()

	q := newQueue[int]()

	const pushers, each = 8, 1000
	var wg sync.WaitGroup
	for p := range pushers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range each {
				q.push(p*each + i)
			}
		}()
	}
	wg.Wait()

	got := q.drain()
	require.Len(t, got, pushers*each)

	// Each pusher's values stay in its own order.
	last := make(map[int]int)
	for _, v := range got {
		p := v / each
		if prev, ok := last[p]; ok {
			require.Less(t, prev, v)
		}
		last[p] = v
	}
}
