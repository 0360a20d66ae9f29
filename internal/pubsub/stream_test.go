package pubsub_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acmcarther/funandgames/internal/pubsub"
)

func TestStream_Publish_panicsOnCalledTwice(t *testing.T) {
	t.Parallel()

	s := pubsub.NewStream[int]()
	s.Publish(1)

	require.Panics(t, func() {
		s.Publish(1)
	})
}

func TestCursor_readsInOrder(t *testing.T) {
	t.Parallel()

	p, head := pubsub.NewPublisher[int]()
	c := pubsub.NewCursor(head)

	_, ok := c.TryNext()
	require.False(t, ok)

	for i := range 5 {
		p.Publish(i)
	}

	ctx := context.Background()
	for i := range 5 {
		v, err := c.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, i, v)
	}

	_, ok = c.TryNext()
	require.False(t, ok)
}

func TestCursor_independentReaders(t *testing.T) {
	t.Parallel()

	p, head := pubsub.NewPublisher[string]()
	c1 := pubsub.NewCursor(head)
	c2 := pubsub.NewCursor(head)

	p.Publish("a")
	p.Publish("b")

	v, ok := c1.TryNext()
	require.True(t, ok)
	require.Equal(t, "a", v)

	v, ok = c2.TryNext()
	require.True(t, ok)
	require.Equal(t, "a", v)

	v, ok = c1.TryNext()
	require.True(t, ok)
	require.Equal(t, "b", v)
}

func TestCursor_Next_blocksUntilPublish(t *testing.T) {
	t.Parallel()

	p, head := pubsub.NewPublisher[int]()
	c := pubsub.NewCursor(head)

	got := make(chan int, 1)
	go func() {
		v, err := c.Next(context.Background())
		if err == nil {
			got <- v
		}
	}()

	select {
	case <-got:
		t.Fatal("Next returned before anything was published")
	case <-time.After(20 * time.Millisecond):
	}

	p.Publish(42)

	select {
	case v := <-got:
		require.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after publish")
	}
}

func TestCursor_Next_contextCancelled(t *testing.T) {
	t.Parallel()

	_, head := pubsub.NewPublisher[int]()
	c := pubsub.NewCursor(head)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPublisher_Tail_skipsEarlierValues(t *testing.T) {
	t.Parallel()

	p, _ := pubsub.NewPublisher[int]()
	p.Publish(1)

	c := pubsub.NewCursor(p.Tail())
	_, ok := c.TryNext()
	require.False(t, ok)

	p.Publish(2)
	v, ok := c.TryNext()
	require.True(t, ok)
	require.Equal(t, 2, v)
}
