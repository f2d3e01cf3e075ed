// Package codec turns cache keys and values into bytes and back.
package codec

// Serializer encodes values for the backing store. Unmarshal decodes into
// dst, which must be a non-nil pointer.
//
// A serializer must never produce an empty payload for a non-nil value:
// zero-length payloads are treated by the store as a delete.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, dst any) error
}
