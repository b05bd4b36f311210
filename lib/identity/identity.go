package identity

import (
	"github.com/ValentinKolb/dSync/lib/docdb"
)

// Reserved field names carrying the identity metadata of a document.
const (
	FieldID   = "id"
	FieldPath = "path"
)

// Record is a document payload plus its identity metadata (the FieldID and FieldPath fields).
// Records are produced by every read and successful write and are never written back as they are.
type Record map[string]any

// ID returns the id of the record or "" if it is not set.
func (r Record) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

// Path returns the path of the record or "" if it is not set.
func (r Record) Path() string {
	path, _ := r[FieldPath].(string)
	return path
}

// Payload returns the record without its identity metadata (see Strip).
func (r Record) Payload() docdb.Payload {
	return Strip(r)
}

// Strip returns a shallow copy of m without the FieldID and FieldPath fields.
// The input is never modified. Nested values are shared with the input.
func Strip(m map[string]any) docdb.Payload {
	clone := make(docdb.Payload, len(m))
	for k, v := range m {
		if k == FieldID || k == FieldPath {
			continue
		}
		clone[k] = v
	}
	return clone
}

// Attach sets id and path on m, overwriting any existing values, and returns m as a Record.
// Unlike Strip, Attach works in place. A nil map is replaced by a new one.
func Attach(m map[string]any, id, path string) Record {
	if m == nil {
		m = make(map[string]any, 2)
	}
	m[FieldID] = id
	m[FieldPath] = path
	return m
}

// FromSnapshot builds the record of a document snapshot.
// It returns nil if the document does not exist.
func FromSnapshot(snapshot docdb.DocumentSnapshot) Record {
	if !snapshot.Exists {
		return nil
	}
	return Attach(snapshot.Data.Clone(), snapshot.ID, snapshot.Path)
}
