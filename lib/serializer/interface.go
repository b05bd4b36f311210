package serializer

import (
	"fmt"
	"github.com/ValentinKolb/dSync/lib/docdb"
	"strings"
)

// IPayloadSerializer is the interface for all payload serializers.
// Serializers are used by engines that store documents as opaque bytes.
type IPayloadSerializer interface {
	// Serialize serializes a Payload into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(p docdb.Payload) ([]byte, error)
	// Deserialize deserializes a byte array into a Payload
	// It returns the decoded Payload and an error if any
	Deserialize(b []byte) (docdb.Payload, error)
	// Name returns the name the serializer is selected by
	Name() string
}

// New creates a serializer by name (json or gob)
func New(name string) (IPayloadSerializer, error) {
	switch strings.ToLower(name) {
	case "json", "":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", name)
	}
}
