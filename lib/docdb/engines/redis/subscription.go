package redis

import (
	"github.com/ValentinKolb/dSync/lib/docdb"
	"github.com/go-redis/redis/v8"
	"sync"
)

// subscription forwards the messages of one pub/sub connection to a handler.
// All batches are handled by the goroutine started in run.
type subscription struct {
	id      string
	col     *collectionRef
	pubsub  *redis.PubSub
	ch      <-chan *redis.Message
	handler docdb.ChangeHandler

	done     chan struct{}
	stopOnce sync.Once
}

func newSubscription(id string, col *collectionRef, pubsub *redis.PubSub, handler docdb.ChangeHandler) *subscription {
	return &subscription{
		id:      id,
		col:     col,
		pubsub:  pubsub,
		ch:      pubsub.Channel(),
		handler: handler,
		done:    make(chan struct{}),
	}
}

// stop closes the pub/sub connection. A batch that is currently being handled runs to completion.
func (s *subscription) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		_ = s.pubsub.Close()
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

// run delivers the initial documents as one Added batch and then every
// received change as a batch of its own.
func (s *subscription) run(initial []docdb.DocumentSnapshot) {
	if len(initial) > 0 && !s.stopped() {
		changes := make([]docdb.Change, 0, len(initial))
		for _, doc := range initial {
			changes = append(changes, docdb.Change{Kind: docdb.ChangeAdded, Doc: doc})
		}
		s.handler(docdb.QuerySnapshot{Docs: initial, Changes: changes})
	}

	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-s.ch:
			if !ok {
				return
			}
			change, err := s.col.db.decodeChange(s.col.path, []byte(msg.Payload))
			if err != nil || s.stopped() {
				// undecodable messages are not part of the feed
				continue
			}
			s.handler(docdb.QuerySnapshot{Changes: []docdb.Change{change}})
		}
	}
}
