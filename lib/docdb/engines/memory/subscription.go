package memory

import (
	"github.com/ValentinKolb/dSync/lib/docdb"
	"github.com/ValentinKolb/dSync/lib/docdb/util"
	"sync"
)

// subscription delivers queued batches to its handler from a single goroutine.
// The queue is unbounded so that writers never block on slow handlers.
type subscription struct {
	id      string
	handler docdb.ChangeHandler
	queue   *util.Queue[docdb.QuerySnapshot]

	done     chan struct{}
	stopOnce sync.Once
}

func newSubscription(id string, handler docdb.ChangeHandler) *subscription {
	return &subscription{
		id:      id,
		handler: handler,
		queue:   util.NewQueue[docdb.QuerySnapshot](),
		done:    make(chan struct{}),
	}
}

// push queues a batch for delivery. Pushes are serialized by the collection mutex.
func (s *subscription) push(batch docdb.QuerySnapshot) {
	s.queue.Push(batch)
}

// stop ends the delivery. A batch that is currently being handled runs to completion.
func (s *subscription) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.queue.Close()
	})
}

func (s *subscription) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// run is the delivery loop of the subscription. After stop it drains the
// queue without handing batches to the handler.
func (s *subscription) run() {
	for batch := range s.queue.Recv() {
		if s.stopped() {
			continue
		}
		s.handler(batch)
	}
}
