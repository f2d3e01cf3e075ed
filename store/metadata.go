// Package store is the Redis-backed dcache.Cache and the manager that hands
// out named caches.
//
// Keys per cache "users":
//
//	users~lock  advisory lease lock (clear, write-through)
//	users~keys  known-keys sorted set, only when the cache has no prefix
//	users:<k>   entries when prefixed (default), else <k>
package store

import (
	"time"

	"github.com/unkn0wn-root/dcache/internal/wire"
)

// Metadata is fixed when a named cache is created.
type Metadata struct {
	Name     string
	Prefix   []byte // nil => no prefix; the known-keys index is used instead
	IndexKey []byte
	LockKey  []byte
	TTL      time.Duration // default entry TTL; 0 => eternal
}

// NewMetadata derives the lock and index keys from name.
func NewMetadata(name string, prefix []byte, ttl time.Duration) Metadata {
	return Metadata{
		Name:     name,
		Prefix:   prefix,
		IndexKey: wire.IndexKey(name),
		LockKey:  wire.LockKey(name),
		TTL:      ttl,
	}
}

func (m Metadata) UsesPrefix() bool { return len(m.Prefix) > 0 }
