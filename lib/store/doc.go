// Package store provides identity normalizing CRUD operations on top of the
// references of a docdb.IDatabase.
//
// Every record returned by a read or a successful write carries the identity
// metadata of its document (the fields "id" and "path", see package identity).
// Every payload handed to a write is stripped of these fields first, so stale
// identity metadata is never written back. The identity of a returned record is
// always taken from the reference, never from the caller's input.
//
// Key Components:
//
//   - Free Functions: ReadDoc, Read, ReadMap, Create, Write, Remove, Rekey and
//     RekeyAtomic operate on a reference or query passed in by the caller. The
//     Options WithName and WithLogger label and log failures.
//
//   - IStore Interface: Binds the free functions to one collection, a name and
//     a logger. All methods are plain delegations.
//
//   - Error System: Every failure is returned as a *Error carrying a RetCode,
//     the operation and the name of the store. The underlying error of the
//     document store is available through errors.Unwrap. No operation retries.
//
//   - Metrics: The counters dsync_store_ops_total{op} and
//     dsync_store_errors_total{op} of the VictoriaMetrics default set count
//     the calls and failures of each operation.
//
// Batches:
//
//	Write accepts an optional docdb.IWriteBatch. If given, the write is only
//	staged and the returned record is optimistic. Callers must not treat it as
//	proof that the write was committed.
//
// Rekey:
//
//	Rekey is a convenience operation, use at your own risk. It reads, writes
//	and deletes in three steps. If the delete fails, both documents exist and
//	a RetCPartialFailure error is returned.
package store
