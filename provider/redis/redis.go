package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/dcache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

// Redis is a go-redis backed provider. A *goredis.ClusterClient switches it
// to cluster mode: unbatched writes and client-side key enumeration.
type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
	cluster     *goredis.ClusterClient
}

var _ pr.Provider = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	p := &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}
	if cc, ok := cfg.Client.(*goredis.ClusterClient); ok {
		p.cluster = cc
	}
	return p, nil
}

func (p *Redis) IsCluster() bool { return p.cluster != nil }

func (p *Redis) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, string(key)).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Redis) Exists(ctx context.Context, key []byte) (bool, error) {
	n, err := p.rdb.Exists(ctx, string(key)).Result()
	return n > 0, err
}

func (p *Redis) HGet(ctx context.Context, key, field []byte) ([]byte, bool, error) {
	b, err := p.rdb.HGet(ctx, string(key), string(field)).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Redis) SetNX(ctx context.Context, key, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	return p.rdb.SetNX(ctx, string(key), value, ttl).Result()
}

func (p *Redis) Del(ctx context.Context, keys ...[]byte) error {
	if len(keys) == 0 {
		return nil
	}
	if p.cluster != nil {
		// keys may hash to different slots
		for _, k := range keys {
			if err := p.rdb.Del(ctx, string(k)).Err(); err != nil {
				return err
			}
		}
		return nil
	}
	return p.rdb.Del(ctx, strs(keys)...).Err()
}

func (p *Redis) ZRange(ctx context.Context, key []byte, start, stop int64) ([][]byte, error) {
	members, err := p.rdb.ZRange(ctx, string(key), start, stop).Result()
	if err != nil {
		return nil, err
	}
	return bytesOf(members), nil
}

func (p *Redis) Keys(ctx context.Context, pattern []byte) ([][]byte, error) {
	if p.cluster == nil {
		keys, err := p.rdb.Keys(ctx, string(pattern)).Result()
		if err != nil {
			return nil, err
		}
		return bytesOf(keys), nil
	}

	var (
		mu  sync.Mutex
		out [][]byte
	)
	err := p.cluster.ForEachMaster(ctx, func(ctx context.Context, c *goredis.Client) error {
		keys, err := c.Keys(ctx, string(pattern)).Result()
		if err != nil {
			return err
		}
		mu.Lock()
		out = append(out, bytesOf(keys)...)
		mu.Unlock()
		return nil
	})
	return out, err
}

func (p *Redis) Eval(ctx context.Context, script string, keys [][]byte, args ...any) (any, error) {
	v, err := p.rdb.Eval(ctx, script, strs(keys), args...).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	return v, err
}

func (p *Redis) Batch(ctx context.Context, fn func(pr.Cmds) error, watch ...[]byte) error {
	if p.cluster != nil {
		rec := &recorder{}
		if err := fn(rec); err != nil {
			return err
		}
		for _, op := range rec.ops {
			if err := op(ctx, p.rdb).Err(); err != nil {
				return err
			}
		}
		return nil
	}

	if len(watch) == 0 {
		rec := &recorder{}
		if err := fn(rec); err != nil {
			return err
		}
		return p.exec(ctx, p.rdb, rec)
	}

	err := p.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		rec := &recorder{}
		if err := fn(rec); err != nil {
			return err
		}
		return p.exec(ctx, tx, rec)
	}, strs(watch)...)
	if errors.Is(err, goredis.TxFailedErr) {
		return pr.ErrTxAborted
	}
	return err
}

func (p *Redis) exec(ctx context.Context, c goredis.Cmdable, rec *recorder) error {
	if len(rec.ops) == 0 {
		return nil
	}
	_, err := c.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, op := range rec.ops {
			op(ctx, pipe)
		}
		return nil
	})
	return err
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

type recorder struct {
	ops []func(context.Context, goredis.Cmdable) goredis.Cmder
}

func (r *recorder) add(op func(context.Context, goredis.Cmdable) goredis.Cmder) {
	r.ops = append(r.ops, op)
}

func (r *recorder) Set(key, value []byte) {
	r.add(func(ctx context.Context, c goredis.Cmdable) goredis.Cmder { return c.Set(ctx, string(key), value, 0) })
}

func (r *recorder) Expire(key []byte, ttl time.Duration) {
	r.add(func(ctx context.Context, c goredis.Cmdable) goredis.Cmder { return c.Expire(ctx, string(key), ttl) })
}

func (r *recorder) Del(keys ...[]byte) {
	r.add(func(ctx context.Context, c goredis.Cmdable) goredis.Cmder { return c.Del(ctx, strs(keys)...) })
}

func (r *recorder) HSet(key, field, value []byte) {
	r.add(func(ctx context.Context, c goredis.Cmdable) goredis.Cmder {
		return c.HSet(ctx, string(key), string(field), value)
	})
}

func (r *recorder) HDel(key []byte, fields ...[]byte) {
	r.add(func(ctx context.Context, c goredis.Cmdable) goredis.Cmder { return c.HDel(ctx, string(key), strs(fields)...) })
}

func (r *recorder) ZAdd(key []byte, score float64, member []byte) {
	r.add(func(ctx context.Context, c goredis.Cmdable) goredis.Cmder {
		return c.ZAdd(ctx, string(key), goredis.Z{Score: score, Member: member})
	})
}

func (r *recorder) ZRem(key []byte, members ...[]byte) {
	r.add(func(ctx context.Context, c goredis.Cmdable) goredis.Cmder {
		args := make([]any, len(members))
		for i, m := range members {
			args[i] = m
		}
		return c.ZRem(ctx, string(key), args...)
	})
}

func strs(bs [][]byte) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = string(b)
	}
	return out
}

func bytesOf(ss []string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}
