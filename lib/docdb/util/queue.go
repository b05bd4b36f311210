package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node is a single element of the queue
type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// Queue is an unbounded multi-producer single-consumer queue.
// Producers append with Push and never block on the consumer, the values are
// handed to the consumer through the channel returned by Recv.
//
// Values pushed by one goroutine, or by pushes serialized by the caller, are
// received in push order. Concurrent pushes are ordered by which producer
// completes first.
type Queue[T any] struct {
	head   atomic.Pointer[node[T]]
	tail   atomic.Pointer[node[T]]
	out    chan T
	closed atomic.Bool

	// wakes the consumer goroutine, signals happen while holding mu so none is lost
	mu   sync.Mutex
	cond *sync.Cond
}

// NewQueue creates an empty queue and starts its consumer goroutine.
// The goroutine ends after Close once every pushed value was received.
func NewQueue[T any]() *Queue[T] {
	sentinel := &node[T]{}

	q := &Queue[T]{
		out: make(chan T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.consume()
	return q
}

// Push appends a value to the queue.
// It returns false if the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *Queue[T]) Push(value T) bool {
	if q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}
	var backoff uint8 = 0

	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// another producer may already have moved the tail, that's fine
				q.tail.CompareAndSwap(tailNode, newNode)
				q.signal()
				return true
			}
		} else {
			// help a producer that appended but did not move the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// exponential backoff under contention
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

func (q *Queue[T]) signal() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// consume moves the values from the linked list to the output channel
func (q *Queue[T]) consume() {
	defer close(q.out)

	var zero T
	for {
		hasItems := false
		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			hasItems = true

			value := next.value
			q.head.Store(next)
			q.out <- value

			// the node is the new sentinel, drop its value for the gc
			next.value = zero
		}

		if !hasItems && q.closed.Load() {
			return
		}

		if !hasItems {
			q.mu.Lock()
			if q.head.Load().next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the channel the consumer receives the values from.
// The channel is closed after Close once every pushed value was received.
func (q *Queue[T]) Recv() <-chan T {
	return q.out
}

// Close prevents further pushes. Values already in the queue are still delivered.
func (q *Queue[T]) Close() {
	q.closed.Store(true)
	q.signal()
}

// Closed returns true if the queue is closed.
func (q *Queue[T]) Closed() bool {
	return q.closed.Load()
}

// Len returns an approximate count of the values in the queue.
// This is O(n) and should only be used for debugging.
func (q *Queue[T]) Len() int {
	count := 0
	current := q.head.Load()
	for {
		next := current.next.Load()
		if next == nil {
			break
		}
		count++
		current = next
	}
	return count
}
