package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEngineType(t *testing.T) {
	e, err := ParseEngineType(" Redis ")
	require.NoError(t, err)
	assert.Equal(t, EngineRedis, e)

	e, err = ParseEngineType("memory")
	require.NoError(t, err)
	assert.Equal(t, EngineMemory, e)

	_, err = ParseEngineType("cassandra")
	assert.Error(t, err)
}

func TestClientConfigString(t *testing.T) {
	c := ClientConfig{
		Engine:        EngineRedis,
		Redis:         RedisConfig{Addr: "localhost:6379", Prefix: "dsync", Password: "secret"},
		Serializer:    "json",
		TimeoutSecond: 5,
		LogLevel:      "info",
	}
	s := c.String()
	assert.Contains(t, s, "REDIS")
	assert.Contains(t, s, "localhost:6379")
	assert.NotContains(t, s, "secret")

	c.Engine = EngineMemory
	assert.NotContains(t, c.String(), "REDIS")
}
