// Package serializer provides payload serialization for document store engines
// that persist documents as opaque bytes (currently the redis engine).
//
// Key Components:
//
//   - IPayloadSerializer: Core interface that all serializer implementations must satisfy.
//
//   - jsonSerializerImpl: JSON encoding based on github.com/goccy/go-json. The stored
//     documents are human-readable and can be shared with non-Go clients. Numbers are
//     decoded as float64.
//
//   - gobSerializerImpl: Go's gob encoding. Preserves Go number types but is only
//     readable by Go clients.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s, err := serializer.New("json")
//	data, err := s.Serialize(docdb.Payload{"title": "buy milk"})
//	payload, err := s.Deserialize(data)
package serializer
