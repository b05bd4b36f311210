package memory

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/docdb"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"sort"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by every operation after the database was closed.
var ErrClosed = errors.New("memory: database is closed")

// Options configures the memory engine. A nil *Options selects the defaults.
type Options struct {
	// NewID generates the ids of documents created by Add (default: random uuid).
	NewID func() string
}

// --------------------------------------------------------------------------
// Database
// --------------------------------------------------------------------------

type dbImpl struct {
	collections *xsync.MapOf[string, *collection]
	newID       func() string
	closed      atomic.Bool
}

// NewMemoryDB creates a new, empty in-memory document store.
func NewMemoryDB(opts *Options) docdb.IDatabase {
	d := &dbImpl{
		collections: xsync.NewMapOf[string, *collection](),
		newID:       uuid.NewString,
	}
	if opts != nil && opts.NewID != nil {
		d.newID = opts.NewID
	}
	return d
}

// collection returns the collection state for path, creating it on first use.
func (d *dbImpl) collection(path string) *collection {
	c, _ := d.collections.LoadOrCompute(path, func() *collection {
		return &collection{
			path: path,
			docs: make(map[string]docdb.Payload),
			subs: make(map[string]*subscription),
		}
	})
	return c
}

// check returns an error if the database is closed or the context is done.
func (d *dbImpl) check(ctx context.Context) error {
	if d.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see docdb.IDatabase)
// --------------------------------------------------------------------------

func (d *dbImpl) Collection(path string) docdb.ICollectionRef {
	return &collectionRef{db: d, path: docdb.JoinPath(path)}
}

func (d *dbImpl) Doc(path string) docdb.IDocumentRef {
	return &documentRef{db: d, path: docdb.JoinPath(path)}
}

func (d *dbImpl) Batch() docdb.IWriteBatch {
	return &batchImpl{db: d}
}

func (d *dbImpl) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	d.collections.Range(func(_ string, c *collection) bool {
		c.mu.Lock()
		for id, s := range c.subs {
			s.stop()
			delete(c.subs, id)
		}
		c.mu.Unlock()
		return true
	})
	return nil
}

// --------------------------------------------------------------------------
// Collection state
// --------------------------------------------------------------------------

// collection holds the documents and subscribers of one collection path.
// mu serializes writes with the publishing of their changes, so every
// subscriber observes the changes in write order.
type collection struct {
	path string
	mu   sync.Mutex
	docs map[string]docdb.Payload
	subs map[string]*subscription
}

// snapshot builds a document snapshot. The caller must hold c.mu.
func (c *collection) snapshot(id string) docdb.DocumentSnapshot {
	data, ok := c.docs[id]
	snap := docdb.DocumentSnapshot{
		ID:     id,
		Path:   docdb.JoinPath(c.path, id),
		Exists: ok,
	}
	if ok {
		snap.Data = data.Clone()
	}
	return snap
}

// sortedDocs returns snapshots of all documents ordered by id. The caller must hold c.mu.
func (c *collection) sortedDocs() []docdb.DocumentSnapshot {
	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	docs := make([]docdb.DocumentSnapshot, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, c.snapshot(id))
	}
	return docs
}

// set writes a document and returns the resulting change. The caller must hold c.mu.
func (c *collection) set(id string, data docdb.Payload) docdb.Change {
	kind := docdb.ChangeModified
	if _, ok := c.docs[id]; !ok {
		kind = docdb.ChangeAdded
	}
	c.docs[id] = data.Clone()
	return docdb.Change{Kind: kind, Doc: c.snapshot(id)}
}

// delete removes a document. ok is false if the document did not exist. The caller must hold c.mu.
func (c *collection) delete(id string) (change docdb.Change, ok bool) {
	if _, exists := c.docs[id]; !exists {
		return docdb.Change{}, false
	}
	snap := c.snapshot(id)
	delete(c.docs, id)
	return docdb.Change{Kind: docdb.ChangeRemoved, Doc: snap}, true
}

// publish hands one batch of changes to every subscriber. The caller must hold c.mu.
func (c *collection) publish(changes []docdb.Change) {
	if len(changes) == 0 || len(c.subs) == 0 {
		return
	}
	docs := c.sortedDocs()
	for _, s := range c.subs {
		s.push(docdb.QuerySnapshot{Docs: docs, Changes: changes})
	}
}

// subscribe registers a new subscriber and queues the initial batch.
func (c *collection) subscribe(handler docdb.ChangeHandler) docdb.CancelFunc {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := newSubscription(uuid.NewString(), handler)
	c.subs[s.id] = s

	docs := c.sortedDocs()
	if len(docs) > 0 {
		changes := make([]docdb.Change, 0, len(docs))
		for _, doc := range docs {
			changes = append(changes, docdb.Change{Kind: docdb.ChangeAdded, Doc: doc})
		}
		s.push(docdb.QuerySnapshot{Docs: docs, Changes: changes})
	}
	go s.run()

	return func() {
		s.stop()
		c.mu.Lock()
		delete(c.subs, s.id)
		c.mu.Unlock()
	}
}

// --------------------------------------------------------------------------
// References
// --------------------------------------------------------------------------

type collectionRef struct {
	db   *dbImpl
	path string
}

func (r *collectionRef) Path() string {
	return r.path
}

func (r *collectionRef) ID() string {
	_, id := docdb.SplitPath(r.path)
	return id
}

func (r *collectionRef) Doc(id string) docdb.IDocumentRef {
	return &documentRef{db: r.db, path: docdb.JoinPath(r.path, id)}
}

func (r *collectionRef) validate(ctx context.Context) error {
	if err := r.db.check(ctx); err != nil {
		return err
	}
	if !docdb.IsCollectionPath(r.path) {
		return fmt.Errorf("memory: invalid collection path %q", r.path)
	}
	return nil
}

func (r *collectionRef) Get(ctx context.Context) (docdb.QuerySnapshot, error) {
	if err := r.validate(ctx); err != nil {
		return docdb.QuerySnapshot{}, err
	}
	c := r.db.collection(r.path)
	c.mu.Lock()
	defer c.mu.Unlock()
	return docdb.QuerySnapshot{Docs: c.sortedDocs()}, nil
}

func (r *collectionRef) OnChange(ctx context.Context, handler docdb.ChangeHandler) (docdb.CancelFunc, error) {
	if err := r.validate(ctx); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, errors.New("memory: handler is nil")
	}
	return r.db.collection(r.path).subscribe(handler), nil
}

func (r *collectionRef) Add(ctx context.Context, data docdb.Payload) (docdb.IDocumentRef, error) {
	if err := r.validate(ctx); err != nil {
		return nil, err
	}
	ref := r.Doc(r.db.newID())
	if err := ref.Set(ctx, data); err != nil {
		return nil, err
	}
	return ref, nil
}

type documentRef struct {
	db   *dbImpl
	path string
}

func (r *documentRef) ID() string {
	_, id := docdb.SplitPath(r.path)
	return id
}

func (r *documentRef) Path() string {
	return r.path
}

func (r *documentRef) Parent() docdb.ICollectionRef {
	parent, _ := docdb.SplitPath(r.path)
	return &collectionRef{db: r.db, path: parent}
}

func (r *documentRef) Collection(id string) docdb.ICollectionRef {
	return &collectionRef{db: r.db, path: docdb.JoinPath(r.path, id)}
}

func (r *documentRef) validate(ctx context.Context) error {
	if err := r.db.check(ctx); err != nil {
		return err
	}
	if !docdb.IsDocumentPath(r.path) {
		return fmt.Errorf("memory: invalid document path %q", r.path)
	}
	return nil
}

// state returns the collection of the document and the document id.
func (r *documentRef) state() (*collection, string) {
	parent, id := docdb.SplitPath(r.path)
	return r.db.collection(parent), id
}

func (r *documentRef) Get(ctx context.Context) (docdb.DocumentSnapshot, error) {
	if err := r.validate(ctx); err != nil {
		return docdb.DocumentSnapshot{}, err
	}
	c, id := r.state()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot(id), nil
}

func (r *documentRef) Set(ctx context.Context, data docdb.Payload) error {
	if err := r.validate(ctx); err != nil {
		return err
	}
	c, id := r.state()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publish([]docdb.Change{c.set(id, data)})
	return nil
}

func (r *documentRef) Delete(ctx context.Context) error {
	if err := r.validate(ctx); err != nil {
		return err
	}
	c, id := r.state()
	c.mu.Lock()
	defer c.mu.Unlock()
	if change, ok := c.delete(id); ok {
		c.publish([]docdb.Change{change})
	}
	return nil
}

// --------------------------------------------------------------------------
// Write Batch
// --------------------------------------------------------------------------

type batchOp struct {
	ref    *documentRef
	delete bool
	data   docdb.Payload
}

// batchImpl stages writes and applies them on Commit. All staged writes to
// one collection are published to its subscribers as a single batch.
type batchImpl struct {
	db  *dbImpl
	ops []batchOp
	err error
}

func (b *batchImpl) stage(ref docdb.IDocumentRef, del bool, data docdb.Payload) {
	r, ok := ref.(*documentRef)
	if !ok || r.db != b.db {
		if b.err == nil {
			b.err = fmt.Errorf("memory: batch received a reference of another database: %T", ref)
		}
		return
	}
	b.ops = append(b.ops, batchOp{ref: r, delete: del, data: data.Clone()})
}

func (b *batchImpl) Set(ref docdb.IDocumentRef, data docdb.Payload) {
	b.stage(ref, false, data)
}

func (b *batchImpl) Delete(ref docdb.IDocumentRef) {
	b.stage(ref, true, nil)
}

func (b *batchImpl) Commit(ctx context.Context) error {
	if err := b.db.check(ctx); err != nil {
		return err
	}
	if b.err != nil {
		return b.err
	}
	for _, op := range b.ops {
		if err := op.ref.validate(ctx); err != nil {
			return err
		}
	}

	// lock every involved collection in path order to avoid deadlocks with concurrent batches
	byPath := map[string]*collection{}
	for _, op := range b.ops {
		c, _ := op.ref.state()
		byPath[c.path] = c
	}
	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		byPath[p].mu.Lock()
	}
	defer func() {
		for _, p := range paths {
			byPath[p].mu.Unlock()
		}
	}()

	changes := map[string][]docdb.Change{}
	for _, op := range b.ops {
		c, id := op.ref.state()
		if op.delete {
			if change, ok := c.delete(id); ok {
				changes[c.path] = append(changes[c.path], change)
			}
			continue
		}
		changes[c.path] = append(changes[c.path], c.set(id, op.data))
	}
	for _, p := range paths {
		byPath[p].publish(changes[p])
	}
	b.ops = nil
	return nil
}
