package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/dcache"
	"github.com/unkn0wn-root/dcache/codec"
	"github.com/unkn0wn-root/dcache/internal/wire"
	"github.com/unkn0wn-root/dcache/lock"
	"github.com/unkn0wn-root/dcache/op"
	"github.com/unkn0wn-root/dcache/provider"
)

const pageSize = 128

const clearScript = `local keys = redis.call('KEYS', ARGV[1]); local n = #keys; for _, key in ipairs(keys) do redis.call('DEL', key) end; return n`

// Options configure one RedisCache.
// Metadata.Name and Provider are required.
type Options struct {
	Metadata        Metadata
	Provider        provider.Provider
	Serializer      codec.Serializer // values; nil => codec.JSON
	KeySerializer   codec.Serializer // keys and hash fields; nil => codec.Key
	AllowNullValues bool             // store nil as a sentinel instead of deleting
	Lock            lock.Config

	Logger dcache.Logger // if nil, NopLogger is used
	Hooks  dcache.Hooks  // if nil, NopHooks is used
}

// RedisCache is a named cache in a Redis keyspace.
type RedisCache struct {
	meta      Metadata
	p         provider.Provider
	locker    *lock.Locker
	ser       codec.Serializer
	keySer    codec.Serializer
	allowNull bool
	log       dcache.Logger
	hooks     dcache.Hooks

	// collapses in-process callers before they contend for the lock
	sf singleflight.Group
}

var _ dcache.Cache = (*RedisCache)(nil)

func New(opts Options) (*RedisCache, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("store: provider is required")
	}
	if opts.Metadata.Name == "" {
		return nil, fmt.Errorf("store: cache name is required")
	}
	c := &RedisCache{
		meta:      opts.Metadata,
		p:         opts.Provider,
		locker:    lock.New(opts.Provider, opts.Lock),
		ser:       opts.Serializer,
		keySer:    opts.KeySerializer,
		allowNull: opts.AllowNullValues,
		log:       opts.Logger,
		hooks:     opts.Hooks,
	}
	if c.ser == nil {
		c.ser = codec.JSON{}
	}
	if c.keySer == nil {
		c.keySer = codec.Key{}
	}
	c.log = dcache.WithFields(c.log, dcache.Fields{"cache": c.meta.Name})
	if c.hooks == nil {
		c.hooks = dcache.NopHooks{}
	}
	return c, nil
}

func (c *RedisCache) Name() string { return c.meta.Name }

func (c *RedisCache) Metadata() Metadata { return c.meta }

func (c *RedisCache) Get(ctx context.Context, key any) (dcache.Value, bool, error) {
	k, err := c.keyBytes(key)
	if err != nil {
		return dcache.Value{}, false, err
	}
	if err := c.waitLock(ctx); err != nil {
		return dcache.Value{}, false, err
	}
	raw, ok, err := c.p.Get(ctx, k)
	if err != nil || !ok {
		return dcache.Value{}, false, err
	}
	v, ok := c.value(raw)
	return v, ok, nil
}

func (c *RedisCache) HGet(ctx context.Context, key, field any) (dcache.Value, bool, error) {
	k, f, err := c.hashKeyBytes(key, field)
	if err != nil {
		return dcache.Value{}, false, err
	}
	if err := c.waitLock(ctx); err != nil {
		return dcache.Value{}, false, err
	}
	raw, ok, err := c.p.HGet(ctx, k, f)
	if err != nil || !ok {
		return dcache.Value{}, false, err
	}
	v, ok := c.value(raw)
	return v, ok, nil
}

func (c *RedisCache) Put(ctx context.Context, key, value any, ttl time.Duration) error {
	k, err := c.keyBytes(key)
	if err != nil {
		return err
	}
	b, err := c.encode(value)
	if err != nil {
		return err
	}
	if err := c.waitLock(ctx); err != nil {
		return err
	}
	el := Element{Key: k, Value: b, TTL: c.ttl(ttl)}
	return c.p.Batch(ctx, func(cmds provider.Cmds) error {
		c.write(cmds, el)
		return nil
	})
}

func (c *RedisCache) HSet(ctx context.Context, key, field, value any, ttl time.Duration) error {
	k, f, err := c.hashKeyBytes(key, field)
	if err != nil {
		return err
	}
	b, err := c.encode(value)
	if err != nil {
		return err
	}
	if err := c.waitLock(ctx); err != nil {
		return err
	}
	el := Element{Key: k, Field: f, Value: b, TTL: c.ttl(ttl)}
	return c.p.Batch(ctx, func(cmds provider.Cmds) error {
		c.writeField(cmds, el)
		return nil
	})
}

func (c *RedisCache) PutIfAbsent(ctx context.Context, key, value any, ttl time.Duration) (dcache.Value, bool, error) {
	k, err := c.keyBytes(key)
	if err != nil {
		return dcache.Value{}, false, err
	}
	b, err := c.encode(value)
	if err != nil {
		return dcache.Value{}, false, err
	}
	if err := c.waitLock(ctx); err != nil {
		return dcache.Value{}, false, err
	}
	if len(b) == 0 {
		// nothing storable; report what is there
		raw, ok, err := c.p.Get(ctx, k)
		if err != nil || !ok {
			return dcache.NullValue(), false, err
		}
		v, _ := c.value(raw)
		return v, true, nil
	}

	el := Element{Key: k, Value: b, TTL: c.ttl(ttl)}
	stored, err := c.p.SetNX(ctx, k, b, el.TTL)
	if err != nil {
		return dcache.Value{}, false, err
	}
	if !stored {
		raw, ok, err := c.p.Get(ctx, k)
		if err != nil {
			return dcache.Value{}, true, err
		}
		if !ok {
			// the winner expired in between
			return dcache.NullValue(), true, nil
		}
		v, _ := c.value(raw)
		return v, true, nil
	}
	if !c.meta.UsesPrefix() {
		err = c.p.Batch(ctx, func(cmds provider.Cmds) error {
			c.maintainKnownKeys(cmds, el)
			return nil
		})
	}
	return dcache.NewValue(value), false, err
}

func (c *RedisCache) Evict(ctx context.Context, key any) error {
	k, err := c.keyBytes(key)
	if err != nil {
		return err
	}
	if err := c.waitLock(ctx); err != nil {
		return err
	}
	return c.p.Batch(ctx, func(cmds provider.Cmds) error {
		cmds.Del(k)
		c.cleanKnownKeys(cmds, k)
		return nil
	})
}

// HEvict removes one field. The key leaves the known-keys index only once
// its last field is gone.
func (c *RedisCache) HEvict(ctx context.Context, key, field any) error {
	k, f, err := c.hashKeyBytes(key, field)
	if err != nil {
		return err
	}
	if err := c.waitLock(ctx); err != nil {
		return err
	}
	err = c.p.Batch(ctx, func(cmds provider.Cmds) error {
		cmds.HDel(k, f)
		return nil
	})
	if err != nil || c.meta.UsesPrefix() {
		return err
	}
	exists, err := c.p.Exists(ctx, k)
	if err != nil || exists {
		return err
	}
	return c.p.Batch(ctx, func(cmds provider.Cmds) error {
		c.cleanKnownKeys(cmds, k)
		return nil
	})
}

// Clear deletes every entry under the cache lock. It does not wait: if the
// lock is held it returns dcache.ErrClearSkipped.
func (c *RedisCache) Clear(ctx context.Context) (err error) {
	ls, ok, err := c.locker.TryAcquire(ctx, c.meta.LockKey)
	if err != nil {
		return err
	}
	if !ok {
		return dcache.ErrClearSkipped
	}
	defer func() {
		if rerr := ls.Release(context.WithoutCancel(ctx)); rerr != nil && err == nil {
			err = rerr
		}
	}()

	if c.meta.UsesPrefix() {
		return c.clearByPrefix(ctx)
	}
	return c.clearByIndex(ctx)
}

func (c *RedisCache) clearByPrefix(ctx context.Context) error {
	pattern := wire.Pattern(c.meta.Prefix)
	if c.p.IsCluster() {
		// no pattern scripts across slots: enumerate on the client
		keys, err := c.p.Keys(ctx, pattern)
		if err != nil {
			return err
		}
		return c.p.Del(ctx, keys...)
	}
	_, err := c.p.Eval(ctx, clearScript, nil, pattern)
	return err
}

func (c *RedisCache) clearByIndex(ctx context.Context) error {
	for page := int64(0); ; page++ {
		keys, err := c.p.ZRange(ctx, c.meta.IndexKey, page*pageSize, (page+1)*pageSize-1)
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.p.Del(ctx, keys...); err != nil {
				return err
			}
		}
		if len(keys) < pageSize {
			break
		}
	}
	return c.p.Del(ctx, c.meta.IndexKey)
}

func (c *RedisCache) GetOrCompute(ctx context.Context, key any, ttl time.Duration, load dcache.Loader) (dcache.Value, error) {
	if v, ok, err := c.Get(ctx, key); err != nil || ok {
		return v, err
	}
	k, err := c.keyBytes(key)
	if err != nil {
		return dcache.Value{}, err
	}
	return c.writeThrough(ctx, Element{Key: k, TTL: c.ttl(ttl)}, load)
}

func (c *RedisCache) HGetOrCompute(ctx context.Context, key, field any, ttl time.Duration, load dcache.Loader) (dcache.Value, error) {
	if v, ok, err := c.HGet(ctx, key, field); err != nil || ok {
		return v, err
	}
	k, f, err := c.hashKeyBytes(key, field)
	if err != nil {
		return dcache.Value{}, err
	}
	return c.writeThrough(ctx, Element{Key: k, Field: f, TTL: c.ttl(ttl)}, load)
}

// writeThrough computes el's value at most once: in-process callers share one
// flight, processes serialize on the cache lock, and the entry is re-read
// under the lock before load runs.
func (c *RedisCache) writeThrough(ctx context.Context, el Element, load dcache.Loader) (dcache.Value, error) {
	flight := string(el.Key)
	if el.Field != nil {
		flight += "\x00" + string(el.Field)
	}
	v, err, _ := c.sf.Do(flight, func() (any, error) {
		return c.lockedCompute(ctx, el, load)
	})
	if err != nil {
		return dcache.Value{}, err
	}
	return v.(dcache.Value), nil
}

func (c *RedisCache) lockedCompute(ctx context.Context, el Element, load dcache.Loader) (dcache.Value, error) {
	ls, err := c.locker.Acquire(ctx, c.meta.LockKey)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			c.hooks.LockTimeout(c.meta.Name)
		}
		return dcache.Value{}, err
	}
	defer func() {
		if err := ls.Release(context.WithoutCancel(ctx)); err != nil {
			c.log.Warn("cache lock release failed", dcache.Fields{"err": err})
		}
	}()

	if v, ok, err := c.rawGet(ctx, el); err != nil || ok {
		return v, err
	}

	var (
		computed any
		loaded   bool
		done     bool
	)
	err = c.p.Batch(ctx, func(cmds provider.Cmds) error {
		v, err := load(ctx)
		if err != nil {
			return err
		}
		computed, loaded = v, true
		b, err := c.encode(v)
		if err != nil {
			return err
		}
		done = true
		el.Value = b
		if el.Field != nil {
			c.writeField(cmds, el)
		} else {
			c.write(cmds, el)
		}
		return nil
	}, el.Key)

	if errors.Is(err, provider.ErrTxAborted) && done {
		// someone wrote the key after our check; prefer their value
		c.hooks.TxAborted(c.meta.Name, string(el.Key))
		c.log.Debug("write-through lost to concurrent writer", dcache.Fields{"key": string(el.Key)})
		if v, ok, gerr := c.rawGet(ctx, el); gerr == nil && ok {
			return v, nil
		}
		return dcache.NewValue(computed), nil
	}
	if err != nil {
		if loaded {
			return dcache.Value{}, &dcache.WriteError{Value: computed, Err: err}
		}
		return dcache.Value{}, err
	}
	return dcache.NewValue(computed), nil
}

// rawGet reads without waiting for the lock.
func (c *RedisCache) rawGet(ctx context.Context, el Element) (dcache.Value, bool, error) {
	var (
		raw []byte
		ok  bool
		err error
	)
	if el.Field != nil {
		raw, ok, err = c.p.HGet(ctx, el.Key, el.Field)
	} else {
		raw, ok, err = c.p.Get(ctx, el.Key)
	}
	if err != nil || !ok {
		return dcache.Value{}, false, err
	}
	v, ok := c.value(raw)
	return v, ok, nil
}

// write stages SET (or DEL for an empty value), the TTL and index upkeep.
func (c *RedisCache) write(cmds provider.Cmds, el Element) {
	if len(el.Value) == 0 {
		cmds.Del(el.Key)
		c.cleanKnownKeys(cmds, el.Key)
		return
	}
	cmds.Set(el.Key, el.Value)
	c.expire(cmds, el)
	c.maintainKnownKeys(cmds, el)
}

// writeField is write for one hash field. An empty value removes the field.
func (c *RedisCache) writeField(cmds provider.Cmds, el Element) {
	if len(el.Value) == 0 {
		cmds.HDel(el.Key, el.Field)
		return
	}
	cmds.HSet(el.Key, el.Field, el.Value)
	c.expire(cmds, el)
	c.maintainKnownKeys(cmds, el)
}

func (c *RedisCache) expire(cmds provider.Cmds, el Element) {
	if !el.Eternal() {
		cmds.Expire(el.Key, el.TTL)
	}
}

func (c *RedisCache) maintainKnownKeys(cmds provider.Cmds, el Element) {
	if c.meta.UsesPrefix() {
		return
	}
	cmds.ZAdd(c.meta.IndexKey, 0, el.Key)
	if !el.Eternal() {
		cmds.Expire(c.meta.IndexKey, el.TTL)
	}
}

func (c *RedisCache) cleanKnownKeys(cmds provider.Cmds, key []byte) {
	if !c.meta.UsesPrefix() {
		cmds.ZRem(c.meta.IndexKey, key)
	}
}

func (c *RedisCache) waitLock(ctx context.Context) error {
	waited, err := c.locker.Wait(ctx, c.meta.LockKey)
	if waited > 0 {
		c.hooks.LockWaited(c.meta.Name, waited)
	}
	if errors.Is(err, lock.ErrTimeout) {
		c.hooks.LockTimeout(c.meta.Name)
	}
	return err
}

func (c *RedisCache) ttl(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return c.meta.TTL
	}
	return ttl
}

func (c *RedisCache) keyBytes(key any) ([]byte, error) {
	return CacheKey{Element: key, Kind: op.String, Prefix: c.meta.Prefix, Serializer: c.keySer}.Bytes()
}

func (c *RedisCache) hashKeyBytes(key, field any) ([]byte, []byte, error) {
	ck := CacheKey{Element: key, Field: field, Kind: op.Hash, Prefix: c.meta.Prefix, Serializer: c.keySer}
	k, err := ck.Bytes()
	if err != nil {
		return nil, nil, err
	}
	f, err := ck.FieldBytes()
	if err != nil {
		return nil, nil, err
	}
	return k, f, nil
}

// encode serializes a value for storage. nil becomes the null sentinel when
// nulls are allowed, else zero bytes (which turns the write into a delete).
func (c *RedisCache) encode(value any) ([]byte, error) {
	if v, ok := value.(dcache.Value); ok {
		if v.IsNull() {
			return c.null(), nil
		}
		if obj, ok := v.Object(); ok {
			return c.encode(obj)
		}
		return v.Bytes(), nil
	}
	if dcache.IsNil(value) {
		return c.null(), nil
	}
	return c.ser.Marshal(value)
}

func (c *RedisCache) null() []byte {
	if c.allowNull {
		return wire.Null()
	}
	return nil
}

// value wraps stored bytes. A null sentinel is a hit only when nulls are
// allowed.
func (c *RedisCache) value(raw []byte) (dcache.Value, bool) {
	if wire.IsNull(raw) {
		if c.allowNull {
			return dcache.NullValue(), true
		}
		return dcache.Value{}, false
	}
	return dcache.RawValue(raw, c.ser), true
}
