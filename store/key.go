package store

import (
	"fmt"
	"time"

	"github.com/unkn0wn-root/dcache/codec"
	"github.com/unkn0wn-root/dcache/internal/wire"
	"github.com/unkn0wn-root/dcache/op"
)

// CacheKey is a key element plus everything needed to render its wire
// bytes. Field is only used for op.Hash.
type CacheKey struct {
	Element    any
	Field      any
	Kind       op.DataKind
	Prefix     []byte
	Serializer codec.Serializer
}

// Bytes renders prefix ++ serialize(Element).
func (k CacheKey) Bytes() ([]byte, error) {
	b, err := k.Serializer.Marshal(k.Element)
	if err != nil {
		return nil, fmt.Errorf("store: serialize key %v: %w", k.Element, err)
	}
	return wire.Prefixed(k.Prefix, b), nil
}

// FieldBytes renders the hash field.
func (k CacheKey) FieldBytes() ([]byte, error) {
	if k.Kind != op.Hash {
		return nil, fmt.Errorf("store: key %v is not a hash key", k.Element)
	}
	b, err := k.Serializer.Marshal(k.Field)
	if err != nil {
		return nil, fmt.Errorf("store: serialize hash key %v: %w", k.Field, err)
	}
	return b, nil
}

// Element is one write: rendered key, serialized value, TTL.
type Element struct {
	Key   []byte
	Field []byte // hash writes only
	Value []byte
	TTL   time.Duration
}

// Eternal reports a write without expiry.
func (e Element) Eternal() bool { return e.TTL <= 0 }
