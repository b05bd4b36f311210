package document

import (
	"bytes"
	"github.com/ValentinKolb/dSync/lib/common"
	"github.com/ValentinKolb/dSync/lib/docdb/engines/memory"
	"github.com/goccy/go-json"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func setupMemory(t *testing.T) *bytes.Buffer {
	database = memory.NewMemoryDB(nil)
	config = &common.ClientConfig{Engine: common.EngineMemory, TimeoutSecond: 5, LogLevel: "silent"}
	viper.Set("output", "json")

	out := &bytes.Buffer{}
	for _, c := range DocumentCommands.Commands() {
		c.SetOut(out)
		c.SetErr(out)
	}
	t.Cleanup(func() {
		database.Close()
		database = nil
		viper.Reset()
	})
	return out
}

func TestDocumentCommands(t *testing.T) {
	out := setupMemory(t)

	require.NoError(t, setCmd.RunE(setCmd, []string{"todos", "a", `{"title":"first","id":"ignored"}`}))
	var record map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &record))
	assert.Equal(t, "a", record["id"])
	assert.Equal(t, "todos/a", record["path"])
	out.Reset()

	require.NoError(t, addCmd.RunE(addCmd, []string{"todos", `{"title":"second"}`}))
	out.Reset()

	require.NoError(t, getAllCmd.RunE(getAllCmd, []string{"todos"}))
	var list []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &list))
	assert.Len(t, list, 2)
	out.Reset()

	require.NoError(t, rekeyCmd.RunE(rekeyCmd, []string{"todos", "a", "b"}))
	out.Reset()

	require.NoError(t, getCmd.RunE(getCmd, []string{"todos", "b"}))
	require.NoError(t, json.Unmarshal(out.Bytes(), &record))
	assert.Equal(t, "first", record["title"])
	out.Reset()

	assert.Error(t, getCmd.RunE(getCmd, []string{"todos", "a"}), "the original id is gone")

	require.NoError(t, delCmd.RunE(delCmd, []string{"todos", "b"}))
	assert.Contains(t, out.String(), "deleted successfully")
}

func TestGetAllAsMap(t *testing.T) {
	out := setupMemory(t)

	require.NoError(t, setCmd.RunE(setCmd, []string{"todos", "a", `{"n":1}`}))
	out.Reset()

	require.NoError(t, getAllCmd.Flags().Set("as-map", "true"))
	t.Cleanup(func() { _ = getAllCmd.Flags().Set("as-map", "false") })
	require.NoError(t, getAllCmd.RunE(getAllCmd, []string{"todos"}))

	var m map[string]map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &m))
	assert.Equal(t, "todos/a", m["a"]["path"])
}

func TestInvalidPayload(t *testing.T) {
	setupMemory(t)
	assert.Error(t, addCmd.RunE(addCmd, []string{"todos", `not json`}))
}
