package listener

import (
	"bytes"
	"context"
	"errors"
	"github.com/ValentinKolb/dSync/lib/commit"
	"github.com/ValentinKolb/dSync/lib/common"
	"github.com/ValentinKolb/dSync/lib/docdb"
	"github.com/ValentinKolb/dSync/lib/docdb/engines/memory"
	"github.com/ValentinKolb/dSync/lib/identity"
	"github.com/ValentinKolb/dSync/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// fakeQuery records subscriptions and hands out their handlers to the test
type fakeQuery struct {
	path       string
	err        error
	subscribes int
	cancels    int
	handlers   []docdb.ChangeHandler
}

func (q *fakeQuery) Path() string {
	return q.path
}

func (q *fakeQuery) Get(context.Context) (docdb.QuerySnapshot, error) {
	return docdb.QuerySnapshot{}, nil
}

func (q *fakeQuery) OnChange(_ context.Context, handler docdb.ChangeHandler) (docdb.CancelFunc, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.subscribes++
	q.handlers = append(q.handlers, handler)
	return func() { q.cancels++ }, nil
}

// deliver hands a batch to the most recent handler
func (q *fakeQuery) deliver(changes ...docdb.Change) {
	q.handlers[len(q.handlers)-1](docdb.QuerySnapshot{Changes: changes})
}

// countingCommitter mirrors into a map and counts every call
type countingCommitter struct {
	commit.ICommitFunctions
	mirror map[string]identity.Record

	adds, updates, removes, removeAlls int
}

func newCountingCommitter() *countingCommitter {
	c := &countingCommitter{mirror: map[string]identity.Record{}}
	c.ICommitFunctions = commit.NewMapCommitter(c.mirror)
	return c
}

func (c *countingCommitter) Add(r identity.Record)    { c.adds++; c.ICommitFunctions.Add(r) }
func (c *countingCommitter) Update(r identity.Record) { c.updates++; c.ICommitFunctions.Update(r) }
func (c *countingCommitter) Remove(r identity.Record) { c.removes++; c.ICommitFunctions.Remove(r) }
func (c *countingCommitter) RemoveAll()               { c.removeAlls++; c.ICommitFunctions.RemoveAll() }

func change(kind docdb.ChangeKind, id string, data docdb.Payload) docdb.Change {
	return docdb.Change{Kind: kind, Doc: docdb.DocumentSnapshot{
		ID:     id,
		Path:   "todos/" + id,
		Exists: true,
		Data:   data,
	}}
}

func newTestListener(q docdb.IQuery, c commit.ICommitFunctions, out *bytes.Buffer, opts Options) *listenerImpl {
	if opts.Logger == nil {
		opts.Logger = common.NewLogger("test", logger.DEBUG, out)
	}
	return NewListener(q, c, opts).(*listenerImpl)
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestAttachIdempotence(t *testing.T) {
	q := &fakeQuery{path: "todos"}
	c := newCountingCommitter()
	l := newTestListener(q, c, &bytes.Buffer{}, Options{Name: "idempotence"})

	first, err := l.Attach(context.Background(), nil, false)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := l.Attach(context.Background(), nil, false)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, c.removeAlls)
	assert.Equal(t, 1, q.subscribes)
	assert.Equal(t, StateActive, l.State())
	assert.True(t, l.Active())
	assert.Equal(t, "todos", first.Path())
}

func TestMultiplicitySelfHeal(t *testing.T) {
	q := &fakeQuery{path: "todos"}
	c := newCountingCommitter()
	var out bytes.Buffer
	l := newTestListener(q, c, &out, Options{Name: "multiplicity"})

	canceled := 0
	for _, id := range []string{"s1", "s2"} {
		s := newSubscription(id, q)
		s.cancel = func() { canceled++ }
		l.subs = append(l.subs, s)
	}
	seeded := l.subs

	sub, err := l.Attach(context.Background(), nil, false)
	require.NoError(t, err)
	require.NotNil(t, sub)

	assert.Equal(t, 2, canceled, "both seeded subscriptions are canceled")
	assert.False(t, seeded[0].Live())
	assert.False(t, seeded[1].Live())
	assert.Len(t, l.subs, 1)
	assert.Equal(t, 1, q.subscribes, "exactly one new subscription")
	assert.Equal(t, 1, c.removeAlls)
	assert.Contains(t, out.String(), "too many listeners, all detached")
}

func TestResetIfActive(t *testing.T) {
	q := &fakeQuery{path: "todos"}
	c := newCountingCommitter()
	var out bytes.Buffer
	l := newTestListener(q, c, &out, Options{Name: "reset"})

	first, err := l.Attach(context.Background(), nil, false)
	require.NoError(t, err)
	second, err := l.Attach(context.Background(), nil, true)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.ID(), second.ID())
	assert.False(t, first.Live())
	assert.True(t, second.Live())
	assert.Equal(t, 1, q.cancels)
	assert.Equal(t, 2, q.subscribes)
	assert.Equal(t, 2, c.removeAlls, "a reset resyncs the mirror")
	assert.NotContains(t, out.String(), "too many listeners")
}

func TestDispatchFidelity(t *testing.T) {
	q := &fakeQuery{path: "todos"}
	c := newCountingCommitter()
	l := newTestListener(q, c, &bytes.Buffer{}, Options{Name: "dispatch"})

	_, err := l.Attach(context.Background(), nil, false)
	require.NoError(t, err)

	// mirror state before the batch
	c.mirror["b"] = identity.Attach(map[string]any{"v": "old"}, "b", "todos/b")
	c.mirror["c"] = identity.Attach(map[string]any{"v": "old"}, "c", "todos/c")

	q.deliver(
		change(docdb.ChangeAdded, "a", docdb.Payload{"v": "new"}),
		change(docdb.ChangeModified, "b", docdb.Payload{"v": "new"}),
		change(docdb.ChangeRemoved, "c", docdb.Payload{"v": "old"}),
	)

	assert.Equal(t, 1, c.adds)
	assert.Equal(t, 1, c.updates)
	assert.Equal(t, 1, c.removes)

	require.Len(t, c.mirror, 2)
	assert.Equal(t, identity.Record{"id": "a", "path": "todos/a", "v": "new"}, c.mirror["a"])
	assert.Equal(t, identity.Record{"id": "b", "path": "todos/b", "v": "new"}, c.mirror["b"])
	assert.NotContains(t, c.mirror, "c")
}

func TestDispatchLogsEvents(t *testing.T) {
	q := &fakeQuery{path: "todos"}
	var out bytes.Buffer
	l := newTestListener(q, newCountingCommitter(), &out, Options{Name: "logging"})

	_, err := l.Attach(context.Background(), nil, false)
	require.NoError(t, err)

	q.deliver(
		change(docdb.ChangeAdded, "a", docdb.Payload{"v": "1"}),
		change(docdb.ChangeRemoved, "a", docdb.Payload{"v": "1"}),
	)

	assert.Contains(t, out.String(), "added todos/a")
	assert.Contains(t, out.String(), "removed todos/a")
}

func TestRepeatedAddIntoSliceMirror(t *testing.T) {
	q := &fakeQuery{path: "todos"}
	var mirror []identity.Record
	l := newTestListener(q, commit.NewSliceCommitter(&mirror), &bytes.Buffer{}, Options{Name: "slice"})

	_, err := l.Attach(context.Background(), nil, false)
	require.NoError(t, err)

	// the same document announced by the initial batch and again by the feed
	q.deliver(change(docdb.ChangeAdded, "a", docdb.Payload{"x": 1}))
	q.deliver(change(docdb.ChangeAdded, "a", docdb.Payload{"x": 1}))

	require.Len(t, mirror, 1)
	assert.Equal(t, "a", mirror[0].ID())
}

func TestDispatchNoCoalescing(t *testing.T) {
	q := &fakeQuery{path: "todos"}
	c := newCountingCommitter()
	l := newTestListener(q, c, &bytes.Buffer{}, Options{Name: "coalescing"})

	_, err := l.Attach(context.Background(), nil, false)
	require.NoError(t, err)

	q.deliver(
		change(docdb.ChangeAdded, "a", docdb.Payload{"v": "1"}),
		change(docdb.ChangeModified, "a", docdb.Payload{"v": "2"}),
		change(docdb.ChangeModified, "a", docdb.Payload{"v": "3"}),
	)

	assert.Equal(t, 1, c.adds)
	assert.Equal(t, 2, c.updates)
	assert.Equal(t, "3", c.mirror["a"]["v"])
}

func TestDispatchDoesNotAliasEvents(t *testing.T) {
	q := &fakeQuery{path: "todos"}
	c := newCountingCommitter()
	l := newTestListener(q, c, &bytes.Buffer{}, Options{Name: "alias"})

	_, err := l.Attach(context.Background(), nil, false)
	require.NoError(t, err)

	data := docdb.Payload{"v": "1"}
	q.deliver(change(docdb.ChangeAdded, "a", data))
	assert.NotContains(t, data, identity.FieldID, "the event payload is not modified")
}

func TestDetachIsTerminal(t *testing.T) {
	q := &fakeQuery{path: "todos"}
	c := newCountingCommitter()
	l := newTestListener(q, c, &bytes.Buffer{}, Options{Name: "terminal"})

	sub, err := l.Attach(context.Background(), nil, false)
	require.NoError(t, err)
	q.deliver(change(docdb.ChangeAdded, "a", docdb.Payload{"v": "1"}))
	require.Len(t, c.mirror, 1)

	l.Detach()
	assert.Equal(t, 1, q.cancels)
	assert.False(t, sub.Live())
	assert.Equal(t, StateIdle, l.State())

	// the transport delivers a stale batch after the cancellation
	q.deliver(
		change(docdb.ChangeAdded, "b", docdb.Payload{"v": "1"}),
		change(docdb.ChangeRemoved, "a", docdb.Payload{"v": "1"}),
	)
	assert.Len(t, c.mirror, 1)
	assert.Contains(t, c.mirror, "a")
	assert.Equal(t, 1, c.adds)
	assert.Equal(t, 0, c.removes)

	// detaching twice is a no-op
	l.Detach()
	assert.Equal(t, 1, q.cancels)
}

func TestSubscribeFailure(t *testing.T) {
	q := &fakeQuery{path: "todos", err: errors.New("connection refused")}
	c := newCountingCommitter()
	var out bytes.Buffer
	l := newTestListener(q, c, &out, Options{Name: "failure"})

	sub, err := l.Attach(context.Background(), nil, false)
	assert.NoError(t, err, "subscribe failures are not returned")
	assert.Nil(t, sub)
	assert.Equal(t, StateIdle, l.State())
	assert.Empty(t, l.subs)
	assert.Contains(t, out.String(), "ERROR")
	assert.Contains(t, out.String(), "connection refused")

	// a later attach can succeed
	q.err = nil
	sub, err = l.Attach(context.Background(), nil, false)
	require.NoError(t, err)
	assert.NotNil(t, sub)
	assert.Equal(t, StateActive, l.State())
}

func TestConfigurationErrors(t *testing.T) {
	q := &fakeQuery{path: "todos"}
	l := newTestListener(q, nil, &bytes.Buffer{}, Options{Name: "config"})

	sub, err := l.Attach(context.Background(), nil, false)
	assert.Nil(t, sub)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoCommitFunctions)
	assert.True(t, store.IsCode(err, store.RetCConfigurationError))
	assert.Equal(t, 0, q.subscribes, "no subscription is attempted")

	c := newCountingCommitter()
	l = newTestListener(nil, c, &bytes.Buffer{}, Options{Name: "config"})
	_, err = l.Attach(context.Background(), nil, false)
	assert.ErrorIs(t, err, ErrNoReference)
	assert.Equal(t, 0, c.removeAlls)
}

func TestRefFunc(t *testing.T) {
	base := &fakeQuery{path: "users"}
	perUser := map[string]*fakeQuery{}
	refFunc := func(b docdb.IQuery, params Params) docdb.IQuery {
		user, _ := params["user"].(string)
		q := &fakeQuery{path: docdb.JoinPath(b.Path(), user, "todos")}
		perUser[user] = q
		return q
	}

	c := newCountingCommitter()
	l := newTestListener(base, c, &bytes.Buffer{}, Options{Name: "reffunc", RefFunc: refFunc})

	sub, err := l.Attach(context.Background(), Params{"user": "u1"}, false)
	require.NoError(t, err)
	assert.Equal(t, "users/u1/todos", sub.Path())
	assert.Equal(t, 1, perUser["u1"].subscribes)
	assert.Equal(t, 0, base.subscribes)

	sub, err = l.Attach(context.Background(), Params{"user": "u2"}, true)
	require.NoError(t, err)
	assert.Equal(t, "users/u2/todos", sub.Path())
	assert.Equal(t, 1, perUser["u1"].cancels)
}

func TestDefaultName(t *testing.T) {
	l := NewListener(&fakeQuery{path: "todos"}, newCountingCommitter(), Options{LogLevel: common.LevelSilent})
	assert.Equal(t, "listener", l.Name())
	assert.Equal(t, "idle", l.State().String())
}

func TestMemoryEngineIntegration(t *testing.T) {
	ctx := context.Background()
	db := memory.NewMemoryDB(nil)
	defer db.Close()

	todos := db.Collection("todos")
	_, err := store.Write(ctx, todos.Doc("a"), map[string]any{"title": "first"}, nil)
	require.NoError(t, err)

	mirror := cache.New(cache.NoExpiration, 0)
	mirror.Set("stale", identity.Record{}, cache.NoExpiration)

	l := NewListener(todos, commit.NewCacheCommitter(mirror), Options{Name: "integration", LogLevel: common.LevelSilent})
	sub, err := l.Attach(ctx, nil, false)
	require.NoError(t, err)
	require.NotNil(t, sub)
	defer l.Detach()

	has := func(id string) func() bool {
		return func() bool {
			_, ok := mirror.Get(id)
			return ok
		}
	}

	require.Eventually(t, has("a"), time.Second, 5*time.Millisecond)
	_, stale := mirror.Get("stale")
	assert.False(t, stale, "attach resets the mirror")

	_, err = store.Write(ctx, todos.Doc("b"), map[string]any{"title": "second"}, nil)
	require.NoError(t, err)
	require.Eventually(t, has("b"), time.Second, 5*time.Millisecond)

	v, _ := mirror.Get("b")
	assert.Equal(t, "todos/b", v.(identity.Record).Path())

	require.NoError(t, store.Remove(ctx, todos.Doc("a")))
	require.Eventually(t, func() bool { return !has("a")() }, time.Second, 5*time.Millisecond)
}
