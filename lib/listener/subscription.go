package listener

import (
	"github.com/ValentinKolb/dSync/lib/docdb"
	"sync"
	"sync/atomic"
)

// Subscription is the handle of one live subscription of a listener.
// It is created by Attach and retired by Detach.
type Subscription struct {
	id    string
	query docdb.IQuery

	cancel   docdb.CancelFunc
	live     atomic.Bool
	stopOnce sync.Once
}

func newSubscription(id string, query docdb.IQuery) *Subscription {
	s := &Subscription{id: id, query: query}
	s.live.Store(true)
	return s
}

// ID returns the unique id of the subscription
func (s *Subscription) ID() string {
	return s.id
}

// Path returns the path of the query the subscription observes
func (s *Subscription) Path() string {
	return s.query.Path()
}

// Live reports whether the subscription still forwards changes
func (s *Subscription) Live() bool {
	return s.live.Load()
}

// stop retires the subscription. Batches delivered afterwards are dropped.
func (s *Subscription) stop() {
	s.stopOnce.Do(func() {
		s.live.Store(false)
		if s.cancel != nil {
			s.cancel()
		}
	})
}
