package common

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

type EngineType string

const (
	EngineMemory EngineType = "memory"
	EngineRedis  EngineType = "redis"
)

// ParseEngineType validates the name of a document store engine
func ParseEngineType(name string) (EngineType, error) {
	switch EngineType(strings.ToLower(strings.TrimSpace(name))) {
	case EngineMemory:
		return EngineMemory, nil
	case EngineRedis:
		return EngineRedis, nil
	default:
		return "", fmt.Errorf("invalid engine %s (expected one of: memory, redis)", name)
	}
}

// RedisConfig holds the connection parameters of the redis engine
type RedisConfig struct {
	Addr     string
	DB       int
	Password string
	// Prefix is prepended to every key and channel used by the engine
	Prefix string
}

// ClientConfig holds all configuration parameters of a dSync client.
type ClientConfig struct {
	Engine     EngineType
	Redis      RedisConfig
	Serializer string

	// Timeout for single operations (0 means no timeout)
	TimeoutSecond int

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Engine", string(c.Engine))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	if c.Engine == EngineRedis {
		addSection("Redis")
		addField("Address", c.Redis.Addr)
		addField("DB", fmt.Sprintf("%d", c.Redis.DB))
		addField("Key Prefix", c.Redis.Prefix)
		addField("Serializer", c.Serializer)
		if c.Redis.Password != "" {
			addField("Password", "********")
		}
	}
	return sb.String()
}
