package commit

import (
	"github.com/ValentinKolb/dSync/lib/identity"
)

// ICommitFunctions mutates a local mirror of a remote collection.
// A listener drives it with the changes of its subscription.
//
// Implementations are not required to be goroutine-safe: a listener calls
// them from one goroutine at a time. Every operation must be idempotent by
// the id of the record, since stale batches may still be delivered around a
// reset of the mirror.
type ICommitFunctions interface {
	// Add inserts a record into the mirror
	Add(record identity.Record)
	// Update replaces the record with the same id
	Update(record identity.Record)
	// Remove removes the record with the same id
	Remove(record identity.Record)
	// RemoveAll empties the mirror
	RemoveAll()
}

// Funcs builds a ICommitFunctions from plain functions. Nil fields are no-ops.
type Funcs struct {
	AddFn       func(record identity.Record)
	UpdateFn    func(record identity.Record)
	RemoveFn    func(record identity.Record)
	RemoveAllFn func()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see commit.ICommitFunctions)
// --------------------------------------------------------------------------

func (f Funcs) Add(record identity.Record) {
	if f.AddFn != nil {
		f.AddFn(record)
	}
}

func (f Funcs) Update(record identity.Record) {
	if f.UpdateFn != nil {
		f.UpdateFn(record)
	}
}

func (f Funcs) Remove(record identity.Record) {
	if f.RemoveFn != nil {
		f.RemoveFn(record)
	}
}

func (f Funcs) RemoveAll() {
	if f.RemoveAllFn != nil {
		f.RemoveAllFn()
	}
}
