package watch

import (
	"bytes"
	"context"
	"github.com/ValentinKolb/dSync/lib/common"
	"github.com/ValentinKolb/dSync/lib/docdb"
	"github.com/ValentinKolb/dSync/lib/docdb/engines/memory"
	"github.com/ValentinKolb/dSync/lib/identity"
	"github.com/ValentinKolb/dSync/lib/listener"
	"github.com/goccy/go-json"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe for concurrent use
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPrintingMirror(t *testing.T) {
	var out bytes.Buffer
	m := newPrintingMirror(&out, "json", common.NewLogger("watch", common.LevelSilent, nil))
	c := m.commitFunctions()

	c.Add(identity.Attach(map[string]any{"v": "1"}, "a", "todos/a"))
	c.Update(identity.Attach(map[string]any{"v": "2"}, "a", "todos/a"))
	c.Add(identity.Attach(map[string]any{"v": "1"}, "b", "todos/b"))
	c.Remove(identity.Attach(map[string]any{"v": "1"}, "b", "todos/b"))

	assert.Len(t, m.mirror, 1)
	assert.Equal(t, "2", m.mirror["a"]["v"])

	dec := json.NewDecoder(strings.NewReader(out.String()))
	var verbs []string
	for dec.More() {
		var e event
		require.NoError(t, dec.Decode(&e))
		verbs = append(verbs, e.Verb)
	}
	assert.Equal(t, []string{"added", "modified", "added", "removed"}, verbs)

	c.RemoveAll()
	assert.Len(t, m.mirror, 0)
}

func TestPrintingMirrorLogsOutputFailures(t *testing.T) {
	var out, logs bytes.Buffer
	m := newPrintingMirror(&out, "xml", common.NewLogger("watch", logger.ERROR, &logs))
	c := m.commitFunctions()

	c.Add(identity.Attach(map[string]any{"v": "1"}, "a", "todos/a"))

	assert.Len(t, m.mirror, 1, "the mirror is updated even if printing fails")
	assert.Empty(t, out.String())
	assert.Contains(t, logs.String(), "printing added change of todos/a failed")
}

func TestWatchMirrorsCollection(t *testing.T) {
	ctx := context.Background()
	db := memory.NewMemoryDB(nil)
	defer db.Close()
	require.NoError(t, db.Doc("todos/a").Set(ctx, docdb.Payload{"v": "1"}))

	out := &syncBuffer{}
	m := newPrintingMirror(out, "yaml", common.NewLogger("watch", common.LevelSilent, nil))
	l := listener.NewListener(db.Collection("todos"), m.commitFunctions(), listener.Options{Name: "watch-test"})
	sub, err := l.Attach(ctx, nil, false)
	require.NoError(t, err)
	require.NotNil(t, sub)
	defer l.Detach()

	require.NoError(t, db.Doc("todos/b").Set(ctx, docdb.Payload{"v": "2"}))

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "verb: added") == 2
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, out.String(), "path: todos/b")
}

func TestMetricsServer(t *testing.T) {
	// make sure the listener counters exist
	_ = listener.NewListener(nil, nil, listener.Options{Name: "metrics-test"})

	srv := newMetricsServer("localhost:0")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `dsync_listener_attach_total{listener="metrics-test"}`)
}
