// Package redigo adapts a redigo connection pool to provider.Provider.
// Only single-node servers are supported.
package redigo

import (
	"context"
	"errors"
	"time"

	"github.com/gomodule/redigo/redis"

	pr "github.com/unkn0wn-root/dcache/provider"
)

var ErrNilPool = errors.New("redigo provider: nil pool")

type Redigo struct {
	pool      *redis.Pool
	closePool bool
}

var _ pr.Provider = (*Redigo)(nil)

type Config struct {
	Pool      *redis.Pool
	ClosePool bool // set true only if this provider exclusively owns the pool
}

func New(cfg Config) (*Redigo, error) {
	if cfg.Pool == nil {
		return nil, ErrNilPool
	}
	return &Redigo{pool: cfg.Pool, closePool: cfg.ClosePool}, nil
}

func (p *Redigo) IsCluster() bool { return false }

func (p *Redigo) do(ctx context.Context, cmd string, args ...any) (any, error) {
	conn, err := p.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return redis.DoContext(conn, ctx, cmd, args...)
}

func (p *Redigo) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	b, err := redis.Bytes(p.do(ctx, "GET", key))
	if err == redis.ErrNil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Redigo) Exists(ctx context.Context, key []byte) (bool, error) {
	return redis.Bool(p.do(ctx, "EXISTS", key))
}

func (p *Redigo) HGet(ctx context.Context, key, field []byte) ([]byte, bool, error) {
	b, err := redis.Bytes(p.do(ctx, "HGET", key, field))
	if err == redis.ErrNil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Redigo) SetNX(ctx context.Context, key, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return redis.Bool(p.do(ctx, "SETNX", key, value))
	}
	_, err := redis.String(p.do(ctx, "SET", key, value, "PX", ttl.Milliseconds(), "NX"))
	if err == redis.ErrNil {
		return false, nil
	}
	return err == nil, err
}

func (p *Redigo) Del(ctx context.Context, keys ...[]byte) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := p.do(ctx, "DEL", args(keys)...)
	return err
}

func (p *Redigo) ZRange(ctx context.Context, key []byte, start, stop int64) ([][]byte, error) {
	return redis.ByteSlices(p.do(ctx, "ZRANGE", key, start, stop))
}

func (p *Redigo) Keys(ctx context.Context, pattern []byte) ([][]byte, error) {
	return redis.ByteSlices(p.do(ctx, "KEYS", pattern))
}

func (p *Redigo) Eval(ctx context.Context, script string, keys [][]byte, extra ...any) (any, error) {
	conn, err := p.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	v, err := redis.NewScript(len(keys), script).Do(conn, append(args(keys), extra...)...)
	if err == redis.ErrNil {
		return nil, nil
	}
	return v, err
}

// Batch pins one pooled connection for WATCH, MULTI and EXEC.
func (p *Redigo) Batch(ctx context.Context, fn func(pr.Cmds) error, watch ...[]byte) error {
	conn, err := p.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if len(watch) > 0 {
		if _, err := redis.DoContext(conn, ctx, "WATCH", args(watch)...); err != nil {
			return err
		}
	}
	rec := &recorder{}
	if err := fn(rec); err != nil {
		if len(watch) > 0 {
			_, _ = redis.DoContext(conn, ctx, "UNWATCH")
		}
		return err
	}
	if len(rec.cmds) == 0 {
		if len(watch) > 0 {
			_, err = redis.DoContext(conn, ctx, "UNWATCH")
		}
		return err
	}

	if err := conn.Send("MULTI"); err != nil {
		return err
	}
	for _, c := range rec.cmds {
		if err := conn.Send(c.name, c.args...); err != nil {
			return err
		}
	}
	reply, err := redis.DoContext(conn, ctx, "EXEC")
	if err != nil {
		return err
	}
	if reply == nil {
		return pr.ErrTxAborted
	}
	if vals, ok := reply.([]any); ok {
		for _, v := range vals {
			if e, ok := v.(redis.Error); ok {
				return e
			}
		}
	}
	return nil
}

func (p *Redigo) Close(context.Context) error {
	if p.closePool {
		return p.pool.Close()
	}
	return nil
}

type command struct {
	name string
	args []any
}

type recorder struct {
	cmds []command
}

func (r *recorder) add(name string, a ...any) {
	r.cmds = append(r.cmds, command{name: name, args: a})
}

func (r *recorder) Set(key, value []byte) { r.add("SET", key, value) }

func (r *recorder) Expire(key []byte, ttl time.Duration) {
	secs := int64(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	r.add("EXPIRE", key, secs)
}

func (r *recorder) Del(keys ...[]byte)                 { r.add("DEL", args(keys)...) }
func (r *recorder) HSet(key, field, value []byte)      { r.add("HSET", key, field, value) }
func (r *recorder) HDel(key []byte, fields ...[]byte)  { r.add("HDEL", append([]any{key}, args(fields)...)...) }
func (r *recorder) ZRem(key []byte, members ...[]byte) { r.add("ZREM", append([]any{key}, args(members)...)...) }

func (r *recorder) ZAdd(key []byte, score float64, member []byte) {
	r.add("ZADD", key, score, member)
}

func args(bs [][]byte) []any {
	out := make([]any, len(bs))
	for i, b := range bs {
		out[i] = b
	}
	return out
}
