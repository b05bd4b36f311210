// Package identity merges the identity metadata of a document (its id and
// its path) into a plain payload and strips it out again.
//
// Every read and every successful write in dSync returns a Record, the
// payload of the document with "id" and "path" attached. Every write strips
// those two fields before the payload reaches the store, so stale identity
// fields a caller passes in are never persisted. The id and path attached to
// a record always come from the reference that was read or written, never
// from the caller's input.
//
// Both operations are shallow: nested maps and slices are shared between the
// input and the result.
package identity
