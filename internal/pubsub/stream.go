// Package pubsub is an unbounded feed with one writer and many readers.
//
// The transport publishes inbound payloads and peer events to a [Stream];
// consumers walk it with a [Cursor] at their own pace.
package pubsub

import "context"

// Stream is one node of the feed. Ready is closed once Val and Next
// are set; until then the node is the feed's unfilled end.
//
// Every node after the slowest cursor stays reachable, so a cursor
// that is abandoned without being dropped pins the feed in memory.
type Stream[T any] struct {
	Ready chan struct{}
	Next  *Stream[T]
	Val   T
}

// NewStream returns an unfilled node.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{
		Ready: make(chan struct{}),
	}
}

// Publish fills s with t and links a fresh unfilled node after it.
// A node can be filled only once; a second call panics.
func (s *Stream[T]) Publish(t T) {
	s.Val = t
	s.Next = NewStream[T]()
	close(s.Ready)
}

// Publisher appends to the tail of a stream.
// It must only be used from one goroutine.
type Publisher[T any] struct {
	tail *Stream[T]
}

// NewPublisher returns a publisher and the head of its stream.
func NewPublisher[T any]() (*Publisher[T], *Stream[T]) {
	s := NewStream[T]()
	return &Publisher[T]{tail: s}, s
}

// Publish appends t.
func (p *Publisher[T]) Publish(t T) {
	p.tail.Publish(t)
	p.tail = p.tail.Next
}

// Tail returns the unpublished node that the next Publish fills.
// A cursor started there sees only values published afterwards.
func (p *Publisher[T]) Tail() *Stream[T] {
	return p.tail
}

// Cursor reads a stream from a fixed starting point.
// A Cursor is not safe for concurrent use.
type Cursor[T any] struct {
	s *Stream[T]
}

// NewCursor returns a cursor positioned at s.
func NewCursor[T any](s *Stream[T]) *Cursor[T] {
	return &Cursor[T]{s: s}
}

// Next blocks until the next value is published or ctx is done.
func (c *Cursor[T]) Next(ctx context.Context) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, context.Cause(ctx)
	case <-c.s.Ready:
		v := c.s.Val
		c.s = c.s.Next
		return v, nil
	}
}

// TryNext returns the next value if one is already published.
func (c *Cursor[T]) TryNext() (T, bool) {
	select {
	case <-c.s.Ready:
		v := c.s.Val
		c.s = c.s.Next
		return v, true
	default:
		var zero T
		return zero, false
	}
}
