package store

import (
	"context"
	"github.com/ValentinKolb/dSync/lib/common"
	"github.com/ValentinKolb/dSync/lib/docdb"
	"github.com/ValentinKolb/dSync/lib/identity"
	"github.com/lni/dragonboat/v4/logger"
)

// Options configures a store created by NewStore
type Options struct {
	// Name labels log messages and errors (default: the collection path)
	Name string
	// LogLevel of the logger created for the store, ignored if Logger is set.
	// The zero value logs errors only.
	LogLevel logger.LogLevel
	// Logger replaces the logger created for the store
	Logger logger.ILogger
}

type storeImpl struct {
	col    docdb.ICollectionRef
	name   string
	logger logger.ILogger
}

// NewStore creates a store bound to a collection.
func NewStore(col docdb.ICollectionRef, opts Options) IStore {
	s := &storeImpl{
		col:    col,
		name:   opts.Name,
		logger: opts.Logger,
	}
	if s.name == "" {
		s.name = col.Path()
	}
	if s.logger == nil {
		s.logger = common.NewLogger("store", opts.LogLevel, nil)
	}
	return s
}

// opts returns the options every delegated call is made with
func (s *storeImpl) opts() []Option {
	return []Option{WithName(s.name), WithLogger(s.logger)}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store.IStore)
// --------------------------------------------------------------------------

func (s *storeImpl) Name() string {
	return s.name
}

func (s *storeImpl) Collection() docdb.ICollectionRef {
	return s.col
}

func (s *storeImpl) GetAll(ctx context.Context) ([]identity.Record, error) {
	return Read(ctx, s.col, s.opts()...)
}

func (s *storeImpl) GetAllMap(ctx context.Context) (map[string]identity.Record, error) {
	return ReadMap(ctx, s.col, s.opts()...)
}

func (s *storeImpl) Get(ctx context.Context, id string) (identity.Record, error) {
	return ReadDoc(ctx, s.col.Doc(id), s.opts()...)
}

func (s *storeImpl) Add(ctx context.Context, p map[string]any) (identity.Record, error) {
	return Create(ctx, s.col, p, s.opts()...)
}

func (s *storeImpl) Set(ctx context.Context, p map[string]any, id string) (identity.Record, error) {
	return Write(ctx, s.col.Doc(id), p, nil, s.opts()...)
}

func (s *storeImpl) Delete(ctx context.Context, id string) error {
	return Remove(ctx, s.col.Doc(id), s.opts()...)
}

func (s *storeImpl) Rekey(ctx context.Context, id, newID string) (identity.Record, error) {
	return Rekey(ctx, s.col.Doc(id), newID, s.opts()...)
}
