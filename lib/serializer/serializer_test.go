package serializer

import (
	"testing"

	"github.com/ValentinKolb/dSync/lib/docdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IPayloadSerializer{
	"JSON": NewJSONSerializer,
	"GOB":  NewGOBSerializer,
}

func TestSerializerRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()

			in := docdb.Payload{
				"title":  "buy milk",
				"done":   false,
				"tags":   []any{"home", "shop"},
				"nested": map[string]any{"level": "two"},
			}
			data, err := s.Serialize(in)
			require.NoError(t, err)

			out, err := s.Deserialize(data)
			require.NoError(t, err)
			assert.Equal(t, "buy milk", out["title"])
			assert.Equal(t, false, out["done"])
			assert.Equal(t, []any{"home", "shop"}, out["tags"])
			assert.Equal(t, map[string]any{"level": "two"}, out["nested"])
		})
	}
}

func TestSerializerNilPayload(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()
			data, err := s.Serialize(nil)
			require.NoError(t, err)
			out, err := s.Deserialize(data)
			require.NoError(t, err)
			assert.NotNil(t, out)
			assert.Empty(t, out)
		})
	}
}

func TestSerializerInvalidInput(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			_, err := factory().Deserialize([]byte("not a payload"))
			assert.Error(t, err)
		})
	}
}

func TestNew(t *testing.T) {
	s, err := New("gob")
	require.NoError(t, err)
	assert.Equal(t, "gob", s.Name())

	s, err = New("")
	require.NoError(t, err)
	assert.Equal(t, "json", s.Name())

	_, err = New("binary")
	assert.Error(t, err)
}
