package redis

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/docdb"
	"github.com/ValentinKolb/dSync/lib/serializer"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"sort"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by every operation after the database was closed.
var ErrClosed = errors.New("redis: database is closed")

// DefaultPrefix is used when Options.Prefix is empty
const DefaultPrefix = "dsync"

// Options configures the redis engine
type Options struct {
	Addr     string
	DB       int
	Password string
	// Prefix is prepended to every key and channel (default: DefaultPrefix)
	Prefix string
	// Serializer encodes documents and change messages (default: json)
	Serializer serializer.IPayloadSerializer
	// NewID generates the ids of documents created by Add (default: random uuid)
	NewID func() string
}

// --------------------------------------------------------------------------
// Database
// --------------------------------------------------------------------------

type dbImpl struct {
	client     *redis.Client
	prefix     string
	serializer serializer.IPayloadSerializer
	newID      func() string
	closed     atomic.Bool

	// open subscriptions, closed together with the database
	mu   sync.Mutex
	subs map[string]*subscription
}

// NewRedisDB creates a document store backed by the redis server at opts.Addr.
// The connection is established lazily by the first operation.
func NewRedisDB(opts Options) docdb.IDatabase {
	d := &dbImpl{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		prefix:     opts.Prefix,
		serializer: opts.Serializer,
		newID:      opts.NewID,
		subs:       make(map[string]*subscription),
	}
	if d.prefix == "" {
		d.prefix = DefaultPrefix
	}
	if d.serializer == nil {
		d.serializer = serializer.NewJSONSerializer()
	}
	if d.newID == nil {
		d.newID = uuid.NewString
	}
	return d
}

// dataKey is the hash holding the documents of a collection
func (d *dbImpl) dataKey(collectionPath string) string {
	return d.prefix + ":doc:" + collectionPath
}

// changeChannel is the pub/sub channel carrying the changes of a collection
func (d *dbImpl) changeChannel(collectionPath string) string {
	return d.prefix + ":changes:" + collectionPath
}

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
	d.mu.Lock()
	subs := d.subs
	d.subs = map[string]*subscription{}
	d.mu.Unlock()
	for _, s := range subs {
		s.stop()
	}
	return d.client.Close()
}

// --------------------------------------------------------------------------
// Change messages
// --------------------------------------------------------------------------

// publish sends one change of a collection to its channel
func (d *dbImpl) publish(ctx context.Context, collectionPath string, kind docdb.ChangeKind, id string, data docdb.Payload) error {
	msg, err := d.serializer.Serialize(docdb.Payload{
		"kind": string(kind),
		"id":   id,
		"data": data.Clone(),
	})
	if err != nil {
		return fmt.Errorf("redis: encoding change of %s/%s failed: %w", collectionPath, id, err)
	}
	if err := d.client.Publish(ctx, d.changeChannel(collectionPath), msg).Err(); err != nil {
		return fmt.Errorf("redis: publishing change of %s/%s failed: %w", collectionPath, id, err)
	}
	return nil
}

// decodeChange turns a change message back into a change of the given collection
func (d *dbImpl) decodeChange(collectionPath string, msg []byte) (docdb.Change, error) {
	envelope, err := d.serializer.Deserialize(msg)
	if err != nil {
		return docdb.Change{}, err
	}
	kind, _ := envelope["kind"].(string)
	id, _ := envelope["id"].(string)
	if id == "" {
		return docdb.Change{}, fmt.Errorf("change message without id")
	}

	var data docdb.Payload
	switch v := envelope["data"].(type) {
	case docdb.Payload:
		data = v
	case map[string]any:
		data = v
	case nil:
		data = docdb.Payload{}
	default:
		return docdb.Change{}, fmt.Errorf("change message with invalid data of type %T", v)
	}

	switch docdb.ChangeKind(kind) {
	case docdb.ChangeAdded, docdb.ChangeModified, docdb.ChangeRemoved:
	default:
		return docdb.Change{}, fmt.Errorf("change message with invalid kind %q", kind)
	}

	return docdb.Change{
		Kind: docdb.ChangeKind(kind),
		Doc: docdb.DocumentSnapshot{
			ID:     id,
			Path:   docdb.JoinPath(collectionPath, id),
			Exists: true,
			Data:   data,
		},
	}, nil
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
		return fmt.Errorf("redis: invalid collection path %q", r.path)
	}
	return nil
}

// load reads every document of the collection ordered by id
func (r *collectionRef) load(ctx context.Context) ([]docdb.DocumentSnapshot, error) {
	fields, err := r.db.client.HGetAll(ctx, r.db.dataKey(r.path)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: reading collection %s failed: %w", r.path, err)
	}
	ids := make([]string, 0, len(fields))
	for id := range fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]docdb.DocumentSnapshot, 0, len(ids))
	for _, id := range ids {
		data, err := r.db.serializer.Deserialize([]byte(fields[id]))
		if err != nil {
			return nil, fmt.Errorf("redis: decoding document %s/%s failed: %w", r.path, id, err)
		}
		docs = append(docs, docdb.DocumentSnapshot{
			ID:     id,
			Path:   docdb.JoinPath(r.path, id),
			Exists: true,
			Data:   data,
		})
	}
	return docs, nil
}

func (r *collectionRef) Get(ctx context.Context) (docdb.QuerySnapshot, error) {
	if err := r.validate(ctx); err != nil {
		return docdb.QuerySnapshot{}, err
	}
	docs, err := r.load(ctx)
	if err != nil {
		return docdb.QuerySnapshot{}, err
	}
	return docdb.QuerySnapshot{Docs: docs}, nil
}

func (r *collectionRef) OnChange(ctx context.Context, handler docdb.ChangeHandler) (docdb.CancelFunc, error) {
	if err := r.validate(ctx); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, errors.New("redis: handler is nil")
	}

	// subscribe before reading the initial state so no write in between is lost
	pubsub := r.db.client.Subscribe(ctx, r.db.changeChannel(r.path))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribing to %s failed: %w", r.path, err)
	}

	docs, err := r.load(ctx)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	s := newSubscription(uuid.NewString(), r, pubsub, handler)
	r.db.mu.Lock()
	if r.db.closed.Load() {
		r.db.mu.Unlock()
		_ = pubsub.Close()
		return nil, ErrClosed
	}
	r.db.subs[s.id] = s
	r.db.mu.Unlock()

	go s.run(docs)

	return func() {
		s.stop()
		r.db.mu.Lock()
		delete(r.db.subs, s.id)
		r.db.mu.Unlock()
	}, nil
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
		return fmt.Errorf("redis: invalid document path %q", r.path)
	}
	return nil
}

func (r *documentRef) Get(ctx context.Context) (docdb.DocumentSnapshot, error) {
	if err := r.validate(ctx); err != nil {
		return docdb.DocumentSnapshot{}, err
	}
	parent, id := docdb.SplitPath(r.path)
	snap := docdb.DocumentSnapshot{ID: id, Path: r.path}

	raw, err := r.db.client.HGet(ctx, r.db.dataKey(parent), id).Bytes()
	if err == redis.Nil {
		return snap, nil
	} else if err != nil {
		return docdb.DocumentSnapshot{}, fmt.Errorf("redis: reading document %s failed: %w", r.path, err)
	}

	data, err := r.db.serializer.Deserialize(raw)
	if err != nil {
		return docdb.DocumentSnapshot{}, fmt.Errorf("redis: decoding document %s failed: %w", r.path, err)
	}
	snap.Exists = true
	snap.Data = data
	return snap, nil
}

func (r *documentRef) Set(ctx context.Context, data docdb.Payload) error {
	if err := r.validate(ctx); err != nil {
		return err
	}
	parent, id := docdb.SplitPath(r.path)

	raw, err := r.db.serializer.Serialize(data)
	if err != nil {
		return fmt.Errorf("redis: encoding document %s failed: %w", r.path, err)
	}
	created, err := r.db.client.HSet(ctx, r.db.dataKey(parent), id, raw).Result()
	if err != nil {
		return fmt.Errorf("redis: writing document %s failed: %w", r.path, err)
	}

	kind := docdb.ChangeModified
	if created > 0 {
		kind = docdb.ChangeAdded
	}
	return r.db.publish(ctx, parent, kind, id, data)
}

func (r *documentRef) Delete(ctx context.Context) error {
	if err := r.validate(ctx); err != nil {
		return err
	}
	parent, id := docdb.SplitPath(r.path)
	key := r.db.dataKey(parent)

	var getCmd *redis.StringCmd
	var delCmd *redis.IntCmd
	_, err := r.db.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		getCmd = pipe.HGet(ctx, key, id)
		delCmd = pipe.HDel(ctx, key, id)
		return nil
	})
	if err != nil && err != redis.Nil {
		return fmt.Errorf("redis: deleting document %s failed: %w", r.path, err)
	}
	if delCmd.Val() == 0 {
		return nil
	}

	last, err := r.db.serializer.Deserialize([]byte(getCmd.Val()))
	if err != nil {
		last = docdb.Payload{}
	}
	return r.db.publish(ctx, parent, docdb.ChangeRemoved, id, last)
}

// --------------------------------------------------------------------------
// Write Batch
// --------------------------------------------------------------------------

type batchOp struct {
	ref    *documentRef
	delete bool
	data   docdb.Payload
}

// batchImpl stages writes and applies them in a single MULTI/EXEC transaction.
// The changes are published after the transaction succeeded.
type batchImpl struct {
	db  *dbImpl
	ops []batchOp
	err error
}

func (b *batchImpl) stage(ref docdb.IDocumentRef, del bool, data docdb.Payload) {
	r, ok := ref.(*documentRef)
	if !ok || r.db != b.db {
		if b.err == nil {
			b.err = fmt.Errorf("redis: batch received a reference of another database: %T", ref)
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

	encoded := make([][]byte, len(b.ops))
	for i, op := range b.ops {
		if err := op.ref.validate(ctx); err != nil {
			return err
		}
		if op.delete {
			continue
		}
		raw, err := b.db.serializer.Serialize(op.data)
		if err != nil {
			return fmt.Errorf("redis: encoding document %s failed: %w", op.ref.path, err)
		}
		encoded[i] = raw
	}

	type pending struct {
		getCmd *redis.StringCmd
		intCmd *redis.IntCmd
	}
	cmds := make([]pending, len(b.ops))
	_, err := b.db.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, op := range b.ops {
			parent, id := docdb.SplitPath(op.ref.path)
			key := b.db.dataKey(parent)
			if op.delete {
				cmds[i].getCmd = pipe.HGet(ctx, key, id)
				cmds[i].intCmd = pipe.HDel(ctx, key, id)
				continue
			}
			cmds[i].intCmd = pipe.HSet(ctx, key, id, encoded[i])
		}
		return nil
	})
	if err != nil && err != redis.Nil {
		return fmt.Errorf("redis: committing batch failed: %w", err)
	}

	var errs []error
	for i, op := range b.ops {
		parent, id := docdb.SplitPath(op.ref.path)
		switch {
		case op.delete && cmds[i].intCmd.Val() == 0:
			continue
		case op.delete:
			last, err := b.db.serializer.Deserialize([]byte(cmds[i].getCmd.Val()))
			if err != nil {
				last = docdb.Payload{}
			}
			errs = append(errs, b.db.publish(ctx, parent, docdb.ChangeRemoved, id, last))
		case cmds[i].intCmd.Val() > 0:
			errs = append(errs, b.db.publish(ctx, parent, docdb.ChangeAdded, id, op.data))
		default:
			errs = append(errs, b.db.publish(ctx, parent, docdb.ChangeModified, id, op.data))
		}
	}
	b.ops = nil
	return errors.Join(errs...)
}
