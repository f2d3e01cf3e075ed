package dcache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/unkn0wn-root/dcache/codec"
)

// Loader computes a value on a miss.
type Loader func(ctx context.Context) (any, error)

// Cache is one named cache. Keys and hash fields are opaque; the
// implementation serializes them. A ttl of 0 means the cache's default.
type Cache interface {
	Name() string

	// Get returns (value, true, nil) on hit, including a stored null.
	Get(ctx context.Context, key any) (Value, bool, error)
	// GetOrCompute returns the stored value or runs load once per absent key
	// and stores its result. Errors from load are returned unchanged. When
	// load succeeded but storing its result failed, the error is a
	// *WriteError carrying the computed value.
	GetOrCompute(ctx context.Context, key any, ttl time.Duration, load Loader) (Value, error)
	// Put overwrites key. A value that serializes to zero bytes deletes it.
	Put(ctx context.Context, key, value any, ttl time.Duration) error
	// PutIfAbsent stores value only if key is absent. It returns the value
	// that ends up present and whether it was already there.
	PutIfAbsent(ctx context.Context, key, value any, ttl time.Duration) (Value, bool, error)
	Evict(ctx context.Context, key any) error
	// Clear removes every entry of the cache. It returns ErrClearSkipped
	// when the cache lock is held by someone else.
	Clear(ctx context.Context) error

	HGet(ctx context.Context, key, field any) (Value, bool, error)
	HGetOrCompute(ctx context.Context, key, field any, ttl time.Duration, load Loader) (Value, error)
	HSet(ctx context.Context, key, field, value any, ttl time.Duration) error
	HEvict(ctx context.Context, key, field any) error
}

// CacheManager looks caches up by name.
type CacheManager interface {
	// Cache returns the named cache. ok=false when the manager does not
	// know the name and does not create caches on demand.
	Cache(name string) (c Cache, ok bool)
	CacheNames() []string
}

// Value is a cached value. It holds either a live object (just computed or
// put) or the stored bytes plus the serializer that decodes them.
type Value struct {
	obj    any
	hasObj bool
	raw    []byte
	ser    codec.Serializer
	null   bool
}

// NewValue wraps a live object. A nil v yields a null value.
func NewValue(v any) Value {
	if v == nil {
		return Value{null: true}
	}
	return Value{obj: v, hasObj: true}
}

// RawValue wraps stored bytes decoded lazily with ser.
func RawValue(raw []byte, ser codec.Serializer) Value {
	return Value{raw: raw, ser: ser}
}

// NullValue is a present-but-null hit.
func NullValue() Value { return Value{null: true} }

// IsNull reports a stored null or a live nil (including typed nil pointers).
func (v Value) IsNull() bool {
	if v.null {
		return true
	}
	return v.hasObj && IsNil(v.obj)
}

// Bytes returns the stored bytes, nil for live values.
func (v Value) Bytes() []byte { return v.raw }

// Object returns the live object when there is one.
func (v Value) Object() (any, bool) { return v.obj, v.hasObj }

// Any returns the live object, or decodes the bytes into a generic value.
func (v Value) Any() (any, error) {
	if v.hasObj || v.null {
		return v.obj, nil
	}
	var out any
	if err := v.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

var errDecodeTarget = errors.New("dcache: Decode needs a non-nil pointer")

// Decode stores the value into the variable dst points to. Null values
// zero it.
func (v Value) Decode(dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errDecodeTarget
	}
	out := rv.Elem()
	if v.IsNull() {
		out.Set(reflect.Zero(out.Type()))
		return nil
	}
	if v.hasObj {
		ov := reflect.ValueOf(v.obj)
		switch {
		case ov.Type().AssignableTo(out.Type()):
			out.Set(ov)
			return nil
		case ov.Kind() == reflect.Pointer && ov.Elem().Type().AssignableTo(out.Type()):
			out.Set(ov.Elem())
			return nil
		case ov.Type().ConvertibleTo(out.Type()) && ov.Kind() == out.Kind():
			out.Set(ov.Convert(out.Type()))
			return nil
		}
		return fmt.Errorf("dcache: cannot assign %s to %s", ov.Type(), out.Type())
	}
	if v.ser == nil {
		return fmt.Errorf("dcache: no serializer to decode into %T", dst)
	}
	return v.ser.Unmarshal(v.raw, dst)
}

// IsNil reports whether v is nil or a typed nil.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
