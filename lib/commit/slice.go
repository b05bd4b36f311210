package commit

import (
	"github.com/ValentinKolb/dSync/lib/identity"
)

// sliceCommitter mirrors records into a caller owned slice
type sliceCommitter struct {
	s *[]identity.Record
}

// NewSliceCommitter mirrors records into the slice s points to.
// Records are looked up by id: Add and Update replace a known record in place
// and append an unknown one, Remove deletes it. The slice stays
// owned by the caller: every change, including RemoveAll, is applied through
// the pointer, so the caller always sees the current mirror.
func NewSliceCommitter(s *[]identity.Record) ICommitFunctions {
	return &sliceCommitter{s: s}
}

// index returns the position of the record with the given id or -1
func (c *sliceCommitter) index(id string) int {
	for i, r := range *c.s {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

// --------------------------------------------------------------------------
// Interface Methods (docu see commit.ICommitFunctions)
// --------------------------------------------------------------------------

func (c *sliceCommitter) Add(record identity.Record) {
	c.put(record)
}

func (c *sliceCommitter) Update(record identity.Record) {
	c.put(record)
}

// put replaces the record with the same id. An unknown record is appended.
func (c *sliceCommitter) put(record identity.Record) {
	if i := c.index(record.ID()); i >= 0 {
		(*c.s)[i] = record
		return
	}
	*c.s = append(*c.s, record)
}

// Remove deletes the record with the same id and keeps the order of the others.
func (c *sliceCommitter) Remove(record identity.Record) {
	i := c.index(record.ID())
	if i < 0 {
		return
	}
	s := *c.s
	copy(s[i:], s[i+1:])
	s[len(s)-1] = nil
	*c.s = s[:len(s)-1]
}

func (c *sliceCommitter) RemoveAll() {
	clear(*c.s)
	*c.s = (*c.s)[:0]
}
