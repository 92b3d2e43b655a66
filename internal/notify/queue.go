package notify

import "sync"

// queue is a thread-safe unbounded FIFO of notifications.
//
// It is unbounded so that a burst of rank changes on a large challenge never
// blocks the committing goroutine. The signal channel enables context-aware
// waiting in the dispatcher loop.
type queue struct {
	mu     sync.Mutex
	items  []Notification
	closed bool
	signal chan struct{} // buffered, size 1
}

func newQueue() *queue {
	return &queue{
		items:  make([]Notification, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds n to the back of the queue.
// Returns false if the queue is closed.
func (q *queue) Enqueue(n Notification) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, n)

	// Non-blocking; the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front item without blocking.
func (q *queue) TryDequeue() (Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Notification{}, false
	}

	n := q.items[0]
	q.items[0] = Notification{}

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return n, true
}

// Wait returns a channel that signals when items may be available.
// The channel is closed once the queue is closed.
func (q *queue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops further enqueues and wakes waiters.
func (q *queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
