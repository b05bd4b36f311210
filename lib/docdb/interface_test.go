package docdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaths(t *testing.T) {
	assert.Equal(t, "todos/a", JoinPath("todos", "a"))
	assert.Equal(t, "users/u1/todos", JoinPath("/users/", "", "u1", "todos/"))

	parent, id := SplitPath("users/u1/todos/a")
	assert.Equal(t, "users/u1/todos", parent)
	assert.Equal(t, "a", id)

	parent, id = SplitPath("todos")
	assert.Equal(t, "", parent)
	assert.Equal(t, "todos", id)

	assert.True(t, IsCollectionPath("todos"))
	assert.True(t, IsCollectionPath("users/u1/todos"))
	assert.False(t, IsCollectionPath("todos/a"))
	assert.False(t, IsCollectionPath(""))
	assert.False(t, IsCollectionPath("a//b"))

	assert.True(t, IsDocumentPath("todos/a"))
	assert.False(t, IsDocumentPath("todos"))
	assert.False(t, IsDocumentPath("todos/"))
}

func TestPayloadClone(t *testing.T) {
	p := Payload{"x": 1}
	c := p.Clone()
	c["x"] = 2
	assert.Equal(t, 1, p["x"])

	var nilPayload Payload
	assert.NotNil(t, nilPayload.Clone())
}
