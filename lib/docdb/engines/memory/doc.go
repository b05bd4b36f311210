// Package memory implements an in-process document store based on the
// docdb.IDatabase interface. Documents live in memory only and are lost when
// the process exits.
//
// Implementation Details:
//
//   - Collections: A concurrent registry (xsync.MapOf) maps collection paths to
//     collection states. Each collection guards its documents and subscribers
//     with its own mutex, so writes to different collections never contend.
//
//   - Change Feed: A write and the publishing of its change happen under the
//     collection mutex, therefore every subscriber observes changes in write
//     order. Each subscription owns an unbounded lock-free queue (util.Queue)
//     drained by one goroutine, which guarantees that batches of one subscription are never handled
//     concurrently and that slow handlers never block writers.
//
//   - Isolation: Payloads are copied when they enter and when they leave the
//     engine. Callers may modify the maps they pass in or receive.
//
//   - Batches: All staged writes of a batch are applied while holding the locks
//     of every involved collection and are published as one change batch per
//     collection.
//
// Usage Example:
//
//	db := memory.NewMemoryDB(nil)
//	todos := db.Collection("todos")
//	ref, err := todos.Add(ctx, docdb.Payload{"title": "buy milk"})
//	cancel, err := todos.OnChange(ctx, func(s docdb.QuerySnapshot) { ... })
//	defer cancel()
package memory
