package testing

import (
	"context"
	"github.com/ValentinKolb/dSync/lib/docdb"
	"github.com/stretchr/testify/require"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"
)

// DBFactory is a function that creates a new, empty instance of a docdb.IDatabase implementation
type DBFactory func(tb testing.TB) docdb.IDatabase

// waitTimeout bounds how long the suite waits for asynchronous change delivery
const waitTimeout = 2 * time.Second

// RunDocDBTests runs the conformance test suite for a docdb.IDatabase implementation.
// Payloads in the suite only use strings, booleans and float64 numbers so that
// engines which round-trip through JSON pass as well.
func RunDocDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory(t))
		})

		t.Run("GetMissing", func(t *testing.T) {
			testGetMissing(t, factory(t))
		})

		t.Run("Add", func(t *testing.T) {
			testAdd(t, factory(t))
		})

		t.Run("CollectionOrder", func(t *testing.T) {
			testCollectionOrder(t, factory(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t))
		})

		t.Run("Isolation", func(t *testing.T) {
			testIsolation(t, factory(t))
		})

		t.Run("SubCollections", func(t *testing.T) {
			testSubCollections(t, factory(t))
		})

		t.Run("OnChangeInitial", func(t *testing.T) {
			testOnChangeInitial(t, factory(t))
		})

		t.Run("OnChangeSequence", func(t *testing.T) {
			testOnChangeSequence(t, factory(t))
		})

		t.Run("OnChangeCancel", func(t *testing.T) {
			testOnChangeCancel(t, factory(t))
		})

		t.Run("Batch", func(t *testing.T) {
			testBatch(t, factory(t))
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// changeCollector records every change delivered to its handler.
type changeCollector struct {
	mu      sync.Mutex
	batches int
	changes []docdb.Change
}

func (c *changeCollector) handle(s docdb.QuerySnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches++
	c.changes = append(c.changes, s.Changes...)
}

func (c *changeCollector) snapshot() []docdb.Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]docdb.Change, len(c.changes))
	copy(out, c.changes)
	return out
}

// waitForChanges blocks until at least n changes were collected.
func (c *changeCollector) waitForChanges(t *testing.T, n int) []docdb.Change {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(c.snapshot()) >= n
	}, waitTimeout, 5*time.Millisecond, "expected at least %d changes", n)
	return c.snapshot()
}

func mustSet(t *testing.T, ref docdb.IDocumentRef, data docdb.Payload) {
	t.Helper()
	if err := ref.Set(context.Background(), data); err != nil {
		t.Fatalf("Set(%s) failed: %v", ref.Path(), err)
	}
}

func mustGet(t *testing.T, ref docdb.IDocumentRef) docdb.DocumentSnapshot {
	t.Helper()
	snap, err := ref.Get(context.Background())
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", ref.Path(), err)
	}
	return snap
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database docdb.IDatabase) {
	defer database.Close()

	ref := database.Doc("todos/a")
	mustSet(t, ref, docdb.Payload{"title": "buy milk", "done": false})

	snap := mustGet(t, ref)
	if !snap.Exists {
		t.Fatalf("Expected document %s to exist after Set", ref.Path())
	}
	if snap.ID != "a" || snap.Path != "todos/a" {
		t.Errorf("Expected id=a path=todos/a, got id=%s path=%s", snap.ID, snap.Path)
	}
	want := docdb.Payload{"title": "buy milk", "done": false}
	if !reflect.DeepEqual(snap.Data, want) {
		t.Errorf("Expected data %v, got %v", want, snap.Data)
	}

	// Set replaces the whole document
	mustSet(t, ref, docdb.Payload{"title": "buy bread"})
	snap = mustGet(t, ref)
	want = docdb.Payload{"title": "buy bread"}
	if !reflect.DeepEqual(snap.Data, want) {
		t.Errorf("Expected replaced data %v, got %v", want, snap.Data)
	}
}

func testGetMissing(t *testing.T, database docdb.IDatabase) {
	defer database.Close()

	snap := mustGet(t, database.Doc("todos/missing"))
	if snap.Exists {
		t.Errorf("Expected missing document to return Exists=false")
	}
	if snap.ID != "missing" {
		t.Errorf("Expected id of missing document to be set, got %q", snap.ID)
	}

	qs, err := database.Collection("empty").Get(context.Background())
	if err != nil {
		t.Fatalf("Get on empty collection failed: %v", err)
	}
	if len(qs.Docs) != 0 {
		t.Errorf("Expected no documents, got %d", len(qs.Docs))
	}
}

func testAdd(t *testing.T, database docdb.IDatabase) {
	defer database.Close()

	col := database.Collection("todos")
	ref, err := col.Add(context.Background(), docdb.Payload{"title": "added"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if ref.ID() == "" {
		t.Fatalf("Expected Add to assign an id")
	}
	if ref.Path() != "todos/"+ref.ID() {
		t.Errorf("Expected path todos/%s, got %s", ref.ID(), ref.Path())
	}
	if ref.Parent().Path() != "todos" {
		t.Errorf("Expected parent todos, got %s", ref.Parent().Path())
	}

	snap := mustGet(t, ref)
	if !snap.Exists || snap.Data["title"] != "added" {
		t.Errorf("Expected added document to be readable, got %+v", snap)
	}

	other, err := col.Add(context.Background(), docdb.Payload{"title": "added"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if other.ID() == ref.ID() {
		t.Errorf("Expected distinct ids, got %s twice", ref.ID())
	}
}

func testCollectionOrder(t *testing.T, database docdb.IDatabase) {
	defer database.Close()

	col := database.Collection("todos")
	for _, id := range []string{"c", "a", "b"} {
		mustSet(t, col.Doc(id), docdb.Payload{"n": id})
	}

	qs, err := col.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	var ids []string
	for _, d := range qs.Docs {
		ids = append(ids, d.ID)
		if d.Path != "todos/"+d.ID {
			t.Errorf("Expected path todos/%s, got %s", d.ID, d.Path)
		}
		if d.Data["n"] != d.ID {
			t.Errorf("Expected data of %s to be its own, got %v", d.ID, d.Data)
		}
	}
	if !reflect.DeepEqual(ids, []string{"a", "b", "c"}) {
		t.Errorf("Expected documents ordered by id, got %v", ids)
	}
}

func testDelete(t *testing.T, database docdb.IDatabase) {
	defer database.Close()

	ref := database.Doc("todos/a")
	mustSet(t, ref, docdb.Payload{"x": "1"})

	if err := ref.Delete(context.Background()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if mustGet(t, ref).Exists {
		t.Errorf("Expected document to be gone after Delete")
	}

	// deleting a missing document is not an error
	if err := ref.Delete(context.Background()); err != nil {
		t.Errorf("Delete of missing document failed: %v", err)
	}
}

func testIsolation(t *testing.T, database docdb.IDatabase) {
	defer database.Close()

	ref := database.Doc("todos/a")
	in := docdb.Payload{"title": "original"}
	mustSet(t, ref, in)
	in["title"] = "changed after set"

	snap := mustGet(t, ref)
	if snap.Data["title"] != "original" {
		t.Errorf("Set should copy the payload, stored value changed to %v", snap.Data["title"])
	}

	snap.Data["title"] = "changed after get"
	if mustGet(t, ref).Data["title"] != "original" {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}
}

func testSubCollections(t *testing.T, database docdb.IDatabase) {
	defer database.Close()

	user := database.Doc("users/u1")
	mustSet(t, user, docdb.Payload{"name": "alice"})

	todos := user.Collection("todos")
	if todos.Path() != "users/u1/todos" || todos.ID() != "todos" {
		t.Fatalf("Unexpected sub collection path=%s id=%s", todos.Path(), todos.ID())
	}
	mustSet(t, todos.Doc("t1"), docdb.Payload{"title": "nested"})

	users, err := database.Collection("users").Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(users.Docs) != 1 || users.Docs[0].ID != "u1" {
		t.Errorf("Sub collection documents must not show up in the parent collection, got %+v", users.Docs)
	}

	qs, err := todos.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(qs.Docs) != 1 || qs.Docs[0].Path != "users/u1/todos/t1" {
		t.Errorf("Expected one nested document, got %+v", qs.Docs)
	}
}

func testOnChangeInitial(t *testing.T, database docdb.IDatabase) {
	defer database.Close()

	col := database.Collection("todos")
	mustSet(t, col.Doc("b"), docdb.Payload{"n": "b"})
	mustSet(t, col.Doc("a"), docdb.Payload{"n": "a"})

	c := &changeCollector{}
	cancel, err := col.OnChange(context.Background(), c.handle)
	if err != nil {
		t.Fatalf("OnChange failed: %v", err)
	}
	defer cancel()

	changes := c.waitForChanges(t, 2)
	if len(changes) != 2 {
		t.Fatalf("Expected exactly 2 initial changes, got %d", len(changes))
	}
	for i, id := range []string{"a", "b"} {
		if changes[i].Kind != docdb.ChangeAdded || changes[i].Doc.ID != id {
			t.Errorf("Expected initial change %d to be added(%s), got %s(%s)", i, id, changes[i].Kind, changes[i].Doc.ID)
		}
		if changes[i].Doc.Path != "todos/"+id {
			t.Errorf("Expected path todos/%s, got %s", id, changes[i].Doc.Path)
		}
	}
}

func testOnChangeSequence(t *testing.T, database docdb.IDatabase) {
	defer database.Close()

	col := database.Collection("todos")
	c := &changeCollector{}
	cancel, err := col.OnChange(context.Background(), c.handle)
	if err != nil {
		t.Fatalf("OnChange failed: %v", err)
	}
	defer cancel()

	ref := col.Doc("a")
	mustSet(t, ref, docdb.Payload{"v": "1"})
	mustSet(t, ref, docdb.Payload{"v": "2"})
	if err := ref.Delete(context.Background()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	changes := c.waitForChanges(t, 3)
	wantKinds := []docdb.ChangeKind{docdb.ChangeAdded, docdb.ChangeModified, docdb.ChangeRemoved}
	wantValues := []string{"1", "2", "2"}
	for i := range wantKinds {
		if changes[i].Kind != wantKinds[i] {
			t.Errorf("Expected change %d to be %s, got %s", i, wantKinds[i], changes[i].Kind)
		}
		if changes[i].Doc.ID != "a" || changes[i].Doc.Path != "todos/a" {
			t.Errorf("Expected change %d for todos/a, got %s", i, changes[i].Doc.Path)
		}
		if changes[i].Doc.Data["v"] != wantValues[i] {
			t.Errorf("Expected change %d to carry v=%s, got %v", i, wantValues[i], changes[i].Doc.Data)
		}
	}
}

func testOnChangeCancel(t *testing.T, database docdb.IDatabase) {
	defer database.Close()

	col := database.Collection("todos")
	c := &changeCollector{}
	cancel, err := col.OnChange(context.Background(), c.handle)
	if err != nil {
		t.Fatalf("OnChange failed: %v", err)
	}

	mustSet(t, col.Doc("a"), docdb.Payload{"v": "1"})
	c.waitForChanges(t, 1)

	cancel()
	cancel() // must be safe to call twice

	mustSet(t, col.Doc("b"), docdb.Payload{"v": "2"})
	time.Sleep(100 * time.Millisecond)

	if n := len(c.snapshot()); n != 1 {
		t.Errorf("Expected no changes after cancel, got %d changes in total", n)
	}
}

func testBatch(t *testing.T, database docdb.IDatabase) {
	defer database.Close()

	col := database.Collection("todos")
	mustSet(t, col.Doc("c"), docdb.Payload{"v": "old"})

	c := &changeCollector{}
	cancel, err := col.OnChange(context.Background(), c.handle)
	if err != nil {
		t.Fatalf("OnChange failed: %v", err)
	}
	defer cancel()
	c.waitForChanges(t, 1) // initial added(c)

	batch := database.Batch()
	batch.Set(col.Doc("a"), docdb.Payload{"v": "a"})
	batch.Set(col.Doc("b"), docdb.Payload{"v": "b"})
	batch.Delete(col.Doc("c"))

	// nothing is applied before commit
	if mustGet(t, col.Doc("a")).Exists {
		t.Errorf("Expected staged write to be invisible before Commit")
	}

	if err := batch.Commit(context.Background()); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	qs, err := col.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	var ids []string
	for _, d := range qs.Docs {
		ids = append(ids, d.ID)
	}
	if !reflect.DeepEqual(ids, []string{"a", "b"}) {
		t.Errorf("Expected documents [a b] after batch, got %v", ids)
	}

	changes := c.waitForChanges(t, 4)[1:]
	var got []string
	for _, ch := range changes {
		got = append(got, string(ch.Kind)+":"+ch.Doc.ID)
	}
	sort.Strings(got)
	want := []string{"added:a", "added:b", "removed:c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected batch changes %v, got %v", want, got)
	}
}

func testClose(t *testing.T, database docdb.IDatabase) {
	ref := database.Doc("todos/a")
	mustSet(t, ref, docdb.Payload{"v": "1"})

	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := ref.Get(context.Background()); err == nil {
		t.Errorf("Expected Get to fail after Close")
	}
	if _, err := database.Collection("todos").OnChange(context.Background(), func(docdb.QuerySnapshot) {}); err == nil {
		t.Errorf("Expected OnChange to fail after Close")
	}
}
