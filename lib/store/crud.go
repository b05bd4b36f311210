package store

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/common"
	"github.com/ValentinKolb/dSync/lib/docdb"
	"github.com/ValentinKolb/dSync/lib/identity"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"io"
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// opConfig labels and logs the failures of one call
type opConfig struct {
	name   string
	logger logger.ILogger
}

// Option configures a single call of a CRUD function
type Option func(*opConfig)

// WithName labels the errors and log messages of the call
func WithName(name string) Option {
	return func(c *opConfig) {
		c.name = name
	}
}

// WithLogger sets the logger failures of the call are reported to at error level.
// Without this option a default "store" logger is used. Pass a logger at
// common.LevelSilent to only return failures.
func WithLogger(l logger.ILogger) Option {
	return func(c *opConfig) {
		c.logger = l
	}
}

func newOpConfig(opts []Option) opConfig {
	var c opConfig
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = common.NewLogger("store", logger.ERROR, defaultLogOutput)
	}
	return c
}

// defaultLogOutput receives the failures of calls without WithLogger (nil is stdout)
var defaultLogOutput io.Writer

// fail builds the error of a failed operation, counts and logs it
func (c opConfig) fail(code RetCode, op, msg string, err error) *Error {
	e := NewError(code, op, msg, err)
	e.Name = c.name
	metrics.GetOrCreateCounter(fmt.Sprintf(`dsync_store_errors_total{op=%q}`, op)).Inc()
	c.logger.Errorf("%s", e.Error())
	return e
}

func countOp(op string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dsync_store_ops_total{op=%q}`, op)).Inc()
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// ReadDoc reads a single document. It returns nil if the document does not exist.
func ReadDoc(ctx context.Context, ref docdb.IDocumentRef, opts ...Option) (identity.Record, error) {
	countOp("get")
	c := newOpConfig(opts)
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, c.fail(RetCStoreError, "get", fmt.Sprintf("reading %s failed", ref.Path()), err)
	}
	return identity.FromSnapshot(snap), nil
}

// Read reads every document addressed by a query, ordered by id.
// A query addressing no documents yields an empty, non-nil slice.
func Read(ctx context.Context, q docdb.IQuery, opts ...Option) ([]identity.Record, error) {
	countOp("getAll")
	c := newOpConfig(opts)
	snap, err := q.Get(ctx)
	if err != nil {
		return nil, c.fail(RetCStoreError, "getAll", fmt.Sprintf("reading %s failed", q.Path()), err)
	}
	records := make([]identity.Record, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		if r := identity.FromSnapshot(doc); r != nil {
			records = append(records, r)
		}
	}
	return records, nil
}

// ReadMap reads every document addressed by a query, keyed by id.
// A query addressing no documents yields an empty, non-nil map.
func ReadMap(ctx context.Context, q docdb.IQuery, opts ...Option) (map[string]identity.Record, error) {
	countOp("getAll")
	c := newOpConfig(opts)
	snap, err := q.Get(ctx)
	if err != nil {
		return nil, c.fail(RetCStoreError, "getAll", fmt.Sprintf("reading %s failed", q.Path()), err)
	}
	records := make(map[string]identity.Record, len(snap.Docs))
	for _, doc := range snap.Docs {
		if r := identity.FromSnapshot(doc); r != nil {
			records[doc.ID] = r
		}
	}
	return records, nil
}

// --------------------------------------------------------------------------
// Writes
// --------------------------------------------------------------------------

// Create adds a document with a store assigned id to a collection.
// The identity metadata of p is ignored, the returned record carries the assigned id and path.
func Create(ctx context.Context, col docdb.ICollectionRef, p map[string]any, opts ...Option) (identity.Record, error) {
	countOp("add")
	c := newOpConfig(opts)
	payload := identity.Strip(p)
	ref, err := col.Add(ctx, payload)
	if err != nil {
		return nil, c.fail(RetCStoreError, "add", fmt.Sprintf("adding to %s failed", col.Path()), err)
	}
	return identity.Attach(payload.Clone(), ref.ID(), ref.Path()), nil
}

// Write creates or replaces the document of ref with p.
// The identity metadata of p is ignored, the returned record carries the id and path of ref.
//
// If batch is not nil the write is only staged in the batch. The returned record
// is then optimistic: it does not prove that the write was committed.
func Write(ctx context.Context, ref docdb.IDocumentRef, p map[string]any, batch docdb.IWriteBatch, opts ...Option) (identity.Record, error) {
	countOp("set")
	c := newOpConfig(opts)
	payload := identity.Strip(p)
	if batch != nil {
		batch.Set(ref, payload)
	} else if err := ref.Set(ctx, payload); err != nil {
		return nil, c.fail(RetCStoreError, "set", fmt.Sprintf("writing %s failed", ref.Path()), err)
	}
	return identity.Attach(payload.Clone(), ref.ID(), ref.Path()), nil
}

// Remove deletes the document of ref. Removing a missing document is not an error.
func Remove(ctx context.Context, ref docdb.IDocumentRef, opts ...Option) error {
	countOp("delete")
	c := newOpConfig(opts)
	if err := ref.Delete(ctx); err != nil {
		return c.fail(RetCStoreError, "delete", fmt.Sprintf("deleting %s failed", ref.Path()), err)
	}
	return nil
}

// Rekey moves the document of ref to the sibling document newID and returns the new record.
//
// Use at your own risk: the move reads the document, writes the copy and deletes
// the original in three independent steps. If the delete fails after the copy
// was written, both documents exist and an error with code RetCPartialFailure is
// returned. Nothing is rolled back. See RekeyAtomic for a variant that commits
// the write and the delete in one batch.
func Rekey(ctx context.Context, ref docdb.IDocumentRef, newID string, opts ...Option) (identity.Record, error) {
	countOp("rekey")
	c := newOpConfig(opts)
	record, target, err := prepareRekey(ctx, c, ref, newID, opts)
	if err != nil || target == nil {
		return record, err
	}

	created, err := Write(ctx, target, record, nil, opts...)
	if err != nil {
		return nil, err
	}
	if err := ref.Delete(ctx); err != nil {
		return nil, c.fail(RetCPartialFailure, "rekey",
			fmt.Sprintf("%s was copied to %s but could not be deleted, both documents exist", ref.Path(), target.Path()), err)
	}
	return created, nil
}

// RekeyAtomic moves the document of ref to the sibling document newID like Rekey,
// but stages the write and the delete in batch and commits it. The move is
// atomic if the engine commits batches atomically.
func RekeyAtomic(ctx context.Context, ref docdb.IDocumentRef, newID string, batch docdb.IWriteBatch, opts ...Option) (identity.Record, error) {
	countOp("rekey")
	c := newOpConfig(opts)
	if batch == nil {
		return nil, c.fail(RetCConfigurationError, "rekey", "no batch given", nil)
	}
	record, target, err := prepareRekey(ctx, c, ref, newID, opts)
	if err != nil || target == nil {
		return record, err
	}

	created, err := Write(ctx, target, record, batch, opts...)
	if err != nil {
		return nil, err
	}
	batch.Delete(ref)
	if err := batch.Commit(ctx); err != nil {
		return nil, c.fail(RetCStoreError, "rekey", fmt.Sprintf("moving %s to %s failed", ref.Path(), target.Path()), err)
	}
	return created, nil
}

// prepareRekey validates newID and reads the document to move.
// A nil target with a nil error means there is nothing to move.
func prepareRekey(ctx context.Context, c opConfig, ref docdb.IDocumentRef, newID string, opts []Option) (identity.Record, docdb.IDocumentRef, error) {
	if newID == "" {
		return nil, nil, c.fail(RetCConfigurationError, "rekey", "new id must not be empty", nil)
	}
	record, err := ReadDoc(ctx, ref, opts...)
	if err != nil {
		return nil, nil, err
	}
	if record == nil {
		return nil, nil, c.fail(RetCNotFound, "rekey", fmt.Sprintf("%s does not exist", ref.Path()), nil)
	}
	if newID == ref.ID() {
		return record, nil, nil
	}
	return record, ref.Parent().Doc(newID), nil
}
