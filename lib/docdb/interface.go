package docdb

import (
	"context"
	"strings"
)

// --------------------------------------------------------------------------
// Data Types
// --------------------------------------------------------------------------

// Payload is the data of a single document, a mapping from field name to value.
type Payload map[string]any

// Clone returns a shallow copy of the payload. A nil payload is cloned into an empty one.
func (p Payload) Clone() Payload {
	c := make(Payload, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// ChangeKind classifies a change event delivered by a subscription.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// DocumentSnapshot is a point-in-time read of a single document.
// Exists is false if the document was not found, Data is nil in that case.
type DocumentSnapshot struct {
	ID     string
	Path   string
	Exists bool
	Data   Payload
}

// Change is a single Added, Modified or Removed notification.
type Change struct {
	Kind ChangeKind
	Doc  DocumentSnapshot
}

// QuerySnapshot is a point-in-time read of a query scope.
// Docs is ordered by document id. Changes is only filled in for snapshots
// delivered to a ChangeHandler and lists the changes since the previous delivery.
type QuerySnapshot struct {
	Docs    []DocumentSnapshot
	Changes []Change
}

// ChangeHandler receives one batch of changes. Batches of one subscription
// are never delivered concurrently.
type ChangeHandler func(snapshot QuerySnapshot)

// CancelFunc ends a subscription. It is safe to call more than once.
type CancelFunc func()

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IQuery is an addressable scope of zero or more documents that can be read
// and subscribed to.
type IQuery interface {
	// Path returns the fully-qualified path of the scope.
	Path() string
	// Get reads all documents of the scope, ordered by id.
	Get(ctx context.Context) (snapshot QuerySnapshot, err error)
	// OnChange subscribes to the scope. The first batch contains every existing
	// document as ChangeAdded, later batches contain the changes caused by writes.
	// The returned error is non-nil if the subscription could not be established.
	OnChange(ctx context.Context, handler ChangeHandler) (cancel CancelFunc, err error)
}

// ICollectionRef is a reference to a collection of documents.
type ICollectionRef interface {
	IQuery
	// ID returns the last segment of the collection path.
	ID() string
	// Doc returns a reference to the document with the given id inside this collection.
	Doc(id string) IDocumentRef
	// Add inserts a new document with a store assigned id.
	Add(ctx context.Context, data Payload) (ref IDocumentRef, err error)
}

// IDocumentRef is a reference to exactly one document location.
// The document does not need to exist.
type IDocumentRef interface {
	// ID returns the key of the document within its parent collection.
	ID() string
	// Path returns the fully-qualified path of the document.
	Path() string
	// Parent returns the collection containing the document.
	Parent() ICollectionRef
	// Collection returns a reference to a sub collection of the document.
	Collection(id string) ICollectionRef
	// Get reads the document. A missing document is not an error, Exists is false instead.
	Get(ctx context.Context) (snapshot DocumentSnapshot, err error)
	// Set creates or fully replaces the document.
	Set(ctx context.Context, data Payload) (err error)
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context) (err error)
}

// IWriteBatch stages writes that are applied together by Commit.
type IWriteBatch interface {
	// Set stages a create-or-replace of the document.
	Set(ref IDocumentRef, data Payload)
	// Delete stages the removal of the document.
	Delete(ref IDocumentRef)
	// Commit applies all staged writes.
	Commit(ctx context.Context) (err error)
}

// IDatabase is the entry point of a document store engine.
type IDatabase interface {
	// Collection returns a reference to the collection at path.
	Collection(path string) ICollectionRef
	// Doc returns a reference to the document at path.
	Doc(path string) IDocumentRef
	// Batch creates a new, empty write batch.
	Batch() IWriteBatch
	// Close releases all resources held by the engine and ends all subscriptions.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Path Helpers
// --------------------------------------------------------------------------

// PathSeparator separates the segments of collection and document paths.
const PathSeparator = "/"

// JoinPath joins path segments, ignoring empty ones.
func JoinPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, PathSeparator)
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, PathSeparator)
}

// segmentCount returns the number of segments of path or -1 if a segment is empty.
func segmentCount(path string) int {
	if path == "" {
		return 0
	}
	parts := strings.Split(path, PathSeparator)
	for _, p := range parts {
		if p == "" {
			return -1
		}
	}
	return len(parts)
}

// IsCollectionPath reports whether path addresses a collection (odd number of segments).
func IsCollectionPath(path string) bool {
	n := segmentCount(path)
	return n > 0 && n%2 == 1
}

// IsDocumentPath reports whether path addresses a document (even number of segments).
func IsDocumentPath(path string) bool {
	n := segmentCount(path)
	return n > 0 && n%2 == 0
}

// SplitPath splits a path into its parent path and its last segment.
func SplitPath(path string) (parent, id string) {
	path = strings.Trim(path, PathSeparator)
	idx := strings.LastIndex(path, PathSeparator)
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}
