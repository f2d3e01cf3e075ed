// Package wire holds the byte-level layout of keys and sentinel values that
// dcache writes to the backing store. Every process sharing a cache must agree
// on these, so they are kept in one place.
package wire

import (
	"bytes"
	"strings"
)

const (
	lockSuffix  = "~lock"
	indexSuffix = "~keys"
	prefixSep   = ":"
	wildcard    = "*"
)

var (
	// null: magic(4) | ver(1). Stored in place of a nil value when the cache
	// allows nulls. Serializers never emit this header for real payloads.
	nullMagic = [...]byte{'D', 'C', 'N', 'L'}
	version   byte = 1
)

// LockKey is the per-cache advisory lock key: "<name>~lock".
func LockKey(name string) []byte { return []byte(name + lockSuffix) }

// IndexKey is the known-keys sorted set: "<name>~keys".
func IndexKey(name string) []byte { return []byte(name + indexSuffix) }

// IndexPattern matches every known-keys index in the keyspace.
func IndexPattern() []byte { return []byte(wildcard + indexSuffix) }

// NameFromIndex extracts the cache name from an index key.
func NameFromIndex(key []byte) (string, bool) {
	s := string(key)
	if !strings.HasSuffix(s, indexSuffix) || len(s) == len(indexSuffix) {
		return "", false
	}
	return strings.TrimSuffix(s, indexSuffix), true
}

// DefaultPrefix is the namespace used when prefixing is on: "<name>:".
func DefaultPrefix(name string) []byte { return []byte(name + prefixSep) }

// Prefixed returns prefix ++ key in a fresh slice.
func Prefixed(prefix, key []byte) []byte {
	if len(prefix) == 0 {
		return append([]byte(nil), key...)
	}
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...)
}

// Pattern returns the escaped prefix ++ "*" for KEYS enumeration. Glob
// metacharacters in the prefix match literally. Prefixes nest: the pattern of
// "users:" also covers every key of a cache whose prefix is "users:admin:".
func Pattern(prefix []byte) []byte {
	out := make([]byte, 0, len(prefix)+1)
	for _, b := range prefix {
		switch b {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, b)
	}
	return append(out, wildcard...)
}

// Null returns a fresh copy of the null sentinel.
func Null() []byte {
	out := make([]byte, 0, len(nullMagic)+1)
	out = append(out, nullMagic[:]...)
	return append(out, version)
}

// IsNull reports whether b is exactly the null sentinel.
func IsNull(b []byte) bool {
	return len(b) == len(nullMagic)+1 && bytes.Equal(b[:4], nullMagic[:]) && b[4] == version
}
