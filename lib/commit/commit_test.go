package commit

import (
	"bytes"
	"github.com/ValentinKolb/dSync/lib/common"
	"github.com/ValentinKolb/dSync/lib/identity"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func rec(id string, fields ...any) identity.Record {
	m := map[string]any{}
	for i := 0; i+1 < len(fields); i += 2 {
		m[fields[i].(string)] = fields[i+1]
	}
	return identity.Attach(m, id, "todos/"+id)
}

func TestMapCommitter(t *testing.T) {
	m := map[string]identity.Record{}
	c := NewMapCommitter(m)

	c.Add(rec("a", "v", "1"))
	c.Add(rec("b", "v", "1"))
	c.Update(rec("a", "v", "2"))
	c.Remove(rec("b"))
	c.Remove(rec("unknown"))

	require.Len(t, m, 1)
	assert.Equal(t, "2", m["a"]["v"])

	c.RemoveAll()
	assert.Len(t, m, 0, "RemoveAll must clear the caller's map")
}

func TestSliceCommitter(t *testing.T) {
	var s []identity.Record
	c := NewSliceCommitter(&s)

	c.Add(rec("a", "v", "1"))
	c.Add(rec("b", "v", "1"))
	c.Add(rec("c", "v", "1"))
	c.Update(rec("b", "v", "2"))
	c.Remove(rec("a"))
	c.Remove(rec("unknown"))

	require.Len(t, s, 2)
	assert.Equal(t, "b", s[0].ID())
	assert.Equal(t, "2", s[0]["v"])
	assert.Equal(t, "c", s[1].ID())

	// unknown records are appended on update
	c.Update(rec("d"))
	require.Len(t, s, 3)
	assert.Equal(t, "d", s[2].ID())

	c.RemoveAll()
	assert.Len(t, s, 0, "RemoveAll must clear the caller's slice")

	c.Add(rec("e"))
	assert.Len(t, s, 1)
}

func TestCacheCommitter(t *testing.T) {
	ch := cache.New(cache.NoExpiration, 0)
	c := NewCacheCommitter(ch)

	c.Add(rec("a", "v", "1"))
	c.Update(rec("a", "v", "2"))
	c.Add(rec("b"))
	c.Remove(rec("b"))

	v, ok := ch.Get("a")
	require.True(t, ok)
	assert.Equal(t, "2", v.(identity.Record)["v"])
	_, ok = ch.Get("b")
	assert.False(t, ok)

	c.RemoveAll()
	assert.Equal(t, 0, ch.ItemCount())
}

func TestRepeatedAddKeepsOneRecord(t *testing.T) {
	m := map[string]identity.Record{}
	var s []identity.Record
	ch := cache.New(cache.NoExpiration, 0)
	viaRegistry := map[string]identity.Record{}
	registry := NewMutationRegistry(common.NewLogger("test", common.LevelSilent, nil))
	registry.RegisterCommitter("todos", NewMapCommitter(viaRegistry))

	mirrors := map[string]struct {
		committer ICommitFunctions
		size      func() int
	}{
		"map":      {NewMapCommitter(m), func() int { return len(m) }},
		"slice":    {NewSliceCommitter(&s), func() int { return len(s) }},
		"cache":    {NewCacheCommitter(ch), func() int { return ch.ItemCount() }},
		"mutation": {NewMutationCommitter(func() IMutationStore { return registry }, "todos"), func() int { return len(viaRegistry) }},
	}

	for name, mirror := range mirrors {
		t.Run(name, func(t *testing.T) {
			mirror.committer.Add(rec("a", "v", "1"))
			mirror.committer.Add(rec("a", "v", "2"))
			mirror.committer.Add(rec("b", "v", "1"))
			mirror.committer.Add(rec("a", "v", "3"))
			assert.Equal(t, 2, mirror.size(), "a repeated add must not duplicate the record")
		})
	}

	require.Len(t, s, 2)
	assert.Equal(t, "a", s[0].ID(), "a repeated add keeps the position of the record")
	assert.Equal(t, "3", s[0]["v"])
	assert.Equal(t, "3", m["a"]["v"])
}

// recordingStore records every committed mutation
type recordingStore struct {
	mutations []string
	records   []identity.Record
}

func (s *recordingStore) Commit(mutation string, record identity.Record) {
	s.mutations = append(s.mutations, mutation)
	s.records = append(s.records, record)
}

func TestMutationCommitter(t *testing.T) {
	s := &recordingStore{}
	c := NewMutationCommitter(func() IMutationStore { return s }, "todos")

	c.RemoveAll()
	c.Add(rec("a"))
	c.Update(rec("a"))
	c.Remove(rec("a"))

	assert.Equal(t, []string{"todos/REMOVE_ALL", "todos/ADD", "todos/UPDATE", "todos/REMOVE"}, s.mutations)
	assert.Nil(t, s.records[0])
	assert.Equal(t, "a", s.records[1].ID())
}

func TestMutationCommitterVerbs(t *testing.T) {
	s := &recordingStore{}
	c := NewMutationCommitter(func() IMutationStore { return s }, "list",
		WithAddVerb("insert"),
		WithUpdateVerb("patch"),
		WithRemoveVerb("drop"),
		WithRemoveAllVerb("reset"),
	)

	c.Add(rec("a"))
	c.Update(rec("a"))
	c.Remove(rec("a"))
	c.RemoveAll()

	assert.Equal(t, []string{"list/insert", "list/patch", "list/drop", "list/reset"}, s.mutations)
}

func TestMutationRegistry(t *testing.T) {
	var out bytes.Buffer
	registry := NewMutationRegistry(common.NewLogger("mutations", logger.ERROR, &out))

	m := map[string]identity.Record{}
	registry.RegisterCommitter("todos", NewMapCommitter(m))

	c := NewMutationCommitter(func() IMutationStore { return registry }, "todos")
	c.Add(rec("a", "v", "1"))
	c.Add(rec("b"))
	c.Update(rec("a", "v", "2"))
	c.Remove(rec("b"))

	require.Len(t, m, 1)
	assert.Equal(t, "2", m["a"]["v"])

	c.RemoveAll()
	assert.Len(t, m, 0)
	assert.Empty(t, out.String())

	registry.Commit("other/ADD", rec("x"))
	assert.Contains(t, out.String(), "unknown mutation other/ADD")
}

func TestFuncs(t *testing.T) {
	var added []string
	c := Funcs{AddFn: func(r identity.Record) { added = append(added, r.ID()) }}

	c.Add(rec("a"))
	// nil functions are no-ops
	c.Update(rec("a"))
	c.Remove(rec("a"))
	c.RemoveAll()

	assert.Equal(t, []string{"a"}, added)
}
