package commit

import (
	"github.com/ValentinKolb/dSync/lib/identity"
	"github.com/patrickmn/go-cache"
)

// cacheCommitter mirrors records into a go-cache instance
type cacheCommitter struct {
	c *cache.Cache
}

// NewCacheCommitter mirrors records into c, keyed by their id.
// Mirrored records never expire, they only leave the cache through Remove or RemoveAll.
// Unlike the map and slice committers the cache may be read concurrently with the listener.
func NewCacheCommitter(c *cache.Cache) ICommitFunctions {
	return &cacheCommitter{c: c}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see commit.ICommitFunctions)
// --------------------------------------------------------------------------

func (c *cacheCommitter) Add(record identity.Record) {
	c.c.Set(record.ID(), record, cache.NoExpiration)
}

func (c *cacheCommitter) Update(record identity.Record) {
	c.c.Set(record.ID(), record, cache.NoExpiration)
}

func (c *cacheCommitter) Remove(record identity.Record) {
	c.c.Delete(record.ID())
}

func (c *cacheCommitter) RemoveAll() {
	c.c.Flush()
}
