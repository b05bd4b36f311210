package commit

import (
	"github.com/ValentinKolb/dSync/lib/identity"
)

// mapCommitter mirrors records into a map keyed by id
type mapCommitter struct {
	m map[string]identity.Record
}

// NewMapCommitter mirrors records into m, keyed by their id.
// The map stays owned by the caller and must not be nil.
func NewMapCommitter(m map[string]identity.Record) ICommitFunctions {
	return &mapCommitter{m: m}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see commit.ICommitFunctions)
// --------------------------------------------------------------------------

func (c *mapCommitter) Add(record identity.Record) {
	c.m[record.ID()] = record
}

func (c *mapCommitter) Update(record identity.Record) {
	c.m[record.ID()] = record
}

func (c *mapCommitter) Remove(record identity.Record) {
	delete(c.m, record.ID())
}

func (c *mapCommitter) RemoveAll() {
	clear(c.m)
}
