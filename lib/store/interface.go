package store

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/docdb"
	"github.com/ValentinKolb/dSync/lib/identity"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore binds the CRUD functions of this package to one collection and a name.
// Every method delegates to the free function of the same concern.
// Records returned by reads and writes always carry their identity metadata,
// payloads handed to writes are always stripped of it.
// All methods return a *Error on failure, after logging it.
type IStore interface {
	// Name returns the name used to label log messages and errors
	Name() string
	// Collection returns the collection the store is bound to
	Collection() docdb.ICollectionRef
	// GetAll returns every document of the collection ordered by id.
	// An empty collection yields an empty, non-nil slice.
	GetAll(ctx context.Context) ([]identity.Record, error)
	// GetAllMap returns every document of the collection keyed by id.
	// An empty collection yields an empty, non-nil map.
	GetAllMap(ctx context.Context) (map[string]identity.Record, error)
	// Get returns the document with the given id or nil if it does not exist.
	Get(ctx context.Context, id string) (identity.Record, error)
	// Add creates a document with a store assigned id.
	Add(ctx context.Context, p map[string]any) (identity.Record, error)
	// Set creates or replaces the document with the given id.
	Set(ctx context.Context, p map[string]any, id string) (identity.Record, error)
	// Delete removes the document with the given id. Deleting a missing document is not an error.
	Delete(ctx context.Context, id string) error
	// Rekey moves a document to a new id. Use at your own risk: the move is not atomic (see Rekey).
	Rekey(ctx context.Context, id, newID string) (identity.Record, error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// the failed operation and the underlying error of the document store.
type Error struct {
	Code RetCode // The return code
	Op   string  // The failed operation (e.g. get, set)
	Name string  // The name of the store instance, may be empty
	Msg  string  // The error message.
	Err  error   // The underlying error, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	label := e.Op
	if e.Name != "" {
		label = fmt.Sprintf("%s[%s]", e.Op, e.Name)
	}
	if e.Err != nil {
		return fmt.Sprintf("StoreError (code %s) %s: %s: %v", e.Code, label, e.Msg, e.Err)
	}
	return fmt.Sprintf("StoreError (code %s) %s: %s", e.Code, label, e.Msg)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new StoreError with the given code and message.
func NewError(code RetCode, op, msg string, err error) *Error {
	return &Error{
		Code: code,
		Op:   op,
		Msg:  msg,
		Err:  err,
	}
}

// IsCode reports whether err is (or wraps) a *Error with the given code
func IsCode(err error, code RetCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCStoreError         RetCode = iota // 0: The document store failed to read, write or delete.
	RetCNotFound                          // 1: The document required by the operation does not exist.
	RetCPartialFailure                    // 2: The operation was applied only partially (see Rekey).
	RetCConfigurationError                // 3: The operation was called with an invalid configuration.
)

func (c RetCode) String() string {
	switch c {
	case RetCStoreError:
		return "RetCStoreError"
	case RetCNotFound:
		return "RetCNotFound"
	case RetCPartialFailure:
		return "RetCPartialFailure"
	case RetCConfigurationError:
		return "RetCConfigurationError"
	default:
		return "Unknown"
	}
}
