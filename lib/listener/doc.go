// Package listener keeps a local mirror in sync with a query of a docdb.IDatabase.
//
// A listener owns at most one live subscription. Attach empties the mirror
// through the commit functions and subscribes to the query, every delivered
// change is then forwarded to the commit functions in delivery order:
//
//	Added    -> Add(record)
//	Modified -> Update(record)
//	Removed  -> Remove(record)
//
// Records carry the identity metadata of the changed document (see package identity).
// Changes are never coalesced, three events for one document mean three calls.
//
// Lifecycle:
//
//	Idle --Attach--> Attaching --subscribed--> Active --Detach--> Idle
//	                     |
//	                     +--subscribe failed--> Idle
//
// A failed subscription is logged and Attach returns a nil subscription
// without an error, so callers can treat "no live updates" as a condition they
// can poll. Only configuration errors (no commit functions, no query) are
// returned as errors. Nothing is retried.
//
// If a listener tracks more than one subscription (for example after racing
// Attach calls), the next Attach detaches all of them and starts over with
// exactly one. Detach is terminal for the detached subscriptions: batches the
// document store still delivers afterwards are dropped and counted.
//
// Metrics:
//
//	dsync_listener_attach_total{listener}
//	dsync_listener_attach_errors_total{listener}
//	dsync_listener_events_total{listener,kind}
//	dsync_listener_stale_batches_total{listener}
//
// Usage Example:
//
//	todos := map[string]identity.Record{}
//	l := listener.NewListener(db.Collection("todos"), commit.NewMapCommitter(todos), listener.Options{Name: "todos"})
//	sub, err := l.Attach(ctx, nil, false)
//	defer l.Detach()
package listener
