// Package redis implements the docdb.IDatabase interface on top of a redis
// server, so that several processes can share documents and observe each
// other's changes.
//
// Data Layout:
//
//   - Documents: Each collection is stored in one hash named
//     "<prefix>:doc:<collection path>". The hash field is the document id and
//     the value is the payload encoded by the configured serializer.
//
//   - Change Feed: Every write publishes a message on the channel
//     "<prefix>:changes:<collection path>". A message is an encoded envelope
//     with the fields kind, id and data. Removed messages carry the last data
//     of the document.
//
// Consistency:
//
//   - OnChange subscribes to the channel before it reads the initial state.
//     A write that races with the subscription can therefore be reported
//     twice (once in the initial batch and once as its own message), but it is
//     never lost.
//
//   - Only the initial batch of a subscription fills QuerySnapshot.Docs.
//     Later batches carry exactly one change and no documents.
//
//   - Batches are applied in one MULTI/EXEC transaction. Their changes are
//     published afterwards, one message per change.
//
// Usage Example:
//
//	db := redis.NewRedisDB(redis.Options{Addr: "localhost:6379"})
//	defer db.Close()
//	snap, err := db.Doc("todos/a").Get(ctx)
package redis
