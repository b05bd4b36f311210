package commit

import (
	"github.com/ValentinKolb/dSync/lib/common"
	"github.com/ValentinKolb/dSync/lib/identity"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// Default verbs of the mutations issued by a mutation committer
const (
	DefaultAddVerb       = "ADD"
	DefaultUpdateVerb    = "UPDATE"
	DefaultRemoveVerb    = "REMOVE"
	DefaultRemoveAllVerb = "REMOVE_ALL"
)

// IMutationStore is an external state container that is changed through named mutations.
type IMutationStore interface {
	// Commit applies the mutation with the given name. The record is nil for
	// mutations that take no argument.
	Commit(mutation string, record identity.Record)
}

// --------------------------------------------------------------------------
// Mutation Committer
// --------------------------------------------------------------------------

// MutationOption overrides a verb of a mutation committer
type MutationOption func(*mutationCommitter)

// WithAddVerb overrides the verb of the mutation issued by Add
func WithAddVerb(verb string) MutationOption {
	return func(c *mutationCommitter) { c.addVerb = verb }
}

// WithUpdateVerb overrides the verb of the mutation issued by Update
func WithUpdateVerb(verb string) MutationOption {
	return func(c *mutationCommitter) { c.updateVerb = verb }
}

// WithRemoveVerb overrides the verb of the mutation issued by Remove
func WithRemoveVerb(verb string) MutationOption {
	return func(c *mutationCommitter) { c.removeVerb = verb }
}

// WithRemoveAllVerb overrides the verb of the mutation issued by RemoveAll
func WithRemoveAllVerb(verb string) MutationOption {
	return func(c *mutationCommitter) { c.removeAllVerb = verb }
}

type mutationCommitter struct {
	storeFn   func() IMutationStore
	partition string

	addVerb       string
	updateVerb    string
	removeVerb    string
	removeAllVerb string
}

// NewMutationCommitter mirrors records into an external store by issuing the
// mutations "<partition>/<verb>". The store is resolved through storeFn on
// every call, so the committer can be created before the store exists.
func NewMutationCommitter(storeFn func() IMutationStore, partition string, opts ...MutationOption) ICommitFunctions {
	c := &mutationCommitter{
		storeFn:       storeFn,
		partition:     partition,
		addVerb:       DefaultAddVerb,
		updateVerb:    DefaultUpdateVerb,
		removeVerb:    DefaultRemoveVerb,
		removeAllVerb: DefaultRemoveAllVerb,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// mutation returns the full name of the mutation for a verb
func (c *mutationCommitter) mutation(verb string) string {
	if c.partition == "" {
		return verb
	}
	return c.partition + "/" + verb
}

// --------------------------------------------------------------------------
// Interface Methods (docu see commit.ICommitFunctions)
// --------------------------------------------------------------------------

func (c *mutationCommitter) Add(record identity.Record) {
	c.storeFn().Commit(c.mutation(c.addVerb), record)
}

func (c *mutationCommitter) Update(record identity.Record) {
	c.storeFn().Commit(c.mutation(c.updateVerb), record)
}

func (c *mutationCommitter) Remove(record identity.Record) {
	c.storeFn().Commit(c.mutation(c.removeVerb), record)
}

func (c *mutationCommitter) RemoveAll() {
	c.storeFn().Commit(c.mutation(c.removeAllVerb), nil)
}

// --------------------------------------------------------------------------
// Mutation Registry
// --------------------------------------------------------------------------

// MutationRegistry is a IMutationStore that dispatches mutations to registered handlers.
// It is safe for concurrent use.
type MutationRegistry struct {
	handlers *xsync.MapOf[string, func(identity.Record)]
	logger   logger.ILogger
}

// NewMutationRegistry creates an empty registry. Unknown mutations are logged
// with the given logger, a nil logger selects a default one.
func NewMutationRegistry(l logger.ILogger) *MutationRegistry {
	if l == nil {
		l = common.NewLogger("mutations", logger.ERROR, nil)
	}
	return &MutationRegistry{
		handlers: xsync.NewMapOf[string, func(identity.Record)](),
		logger:   l,
	}
}

// Register sets the handler of a mutation, replacing any previous one
func (r *MutationRegistry) Register(mutation string, handler func(record identity.Record)) {
	r.handlers.Store(mutation, handler)
}

// RegisterCommitter registers the four mutations of a partition so that they
// are forwarded to target, using the default verbs.
func (r *MutationRegistry) RegisterCommitter(partition string, target ICommitFunctions) {
	prefix := partition + "/"
	if partition == "" {
		prefix = ""
	}
	r.Register(prefix+DefaultAddVerb, target.Add)
	r.Register(prefix+DefaultUpdateVerb, target.Update)
	r.Register(prefix+DefaultRemoveVerb, target.Remove)
	r.Register(prefix+DefaultRemoveAllVerb, func(identity.Record) { target.RemoveAll() })
}

// Commit implements IMutationStore
func (r *MutationRegistry) Commit(mutation string, record identity.Record) {
	handler, ok := r.handlers.Load(mutation)
	if !ok {
		r.logger.Errorf("unknown mutation %s", mutation)
		return
	}
	handler(record)
}
