package transport

import "sync"

// queue is an unbounded, ordered, single-direction handoff between the
// transport loops. Pushes never block; the consumer waits on ready and
// then drains everything queued so far.
type queue[T any] struct {
	mu    sync.Mutex
	items []T
	wake  chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{wake: make(chan struct{}, 1)}
}

// push appends vs and wakes the consumer.
func (q *queue[T]) push(vs ...T) {
	if len(vs) == 0 {
		return
	}

	q.mu.Lock()
	q.items = append(q.items, vs...)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// ready returns a channel that has a value after at least one push
// since the last receive from it. A wake may find the queue already drained.
func (q *queue[T]) ready() <-chan struct{} {
	return q.wake
}

// drain removes and returns every queued value in push order.
func (q *queue[T]) drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}
