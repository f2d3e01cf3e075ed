package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/maruel/subcommands"

	"github.com/unkn0wn-root/dcache"
)

////////////////////////////////////////////////////////////////////////////////
// caches
////////////////////////////////////////////////////////////////////////////////

var cmdCaches = &subcommands.Command{
	UsageLine: "caches [flags]",
	ShortDesc: "lists known caches",
	LongDesc: `Lists the caches named in -config and those discovered from
known-keys indexes. Prefixed caches keep no index and are only listed when
configured.`,
	CommandRun: func() subcommands.CommandRun {
		r := &cachesRun{}
		r.registerFlags()
		return r
	},
}

type cachesRun struct{ commonFlags }

func (r *cachesRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) != 0 {
		return usage(a, "caches takes no arguments")
	}
	r.discover = true
	m, done, err := r.manager(context.Background())
	if err != nil {
		return fail(a, err)
	}
	defer done()
	for _, n := range m.CacheNames() {
		fmt.Fprintln(stdout, n)
	}
	return 0
}

////////////////////////////////////////////////////////////////////////////////
// clear
////////////////////////////////////////////////////////////////////////////////

var cmdClear = &subcommands.Command{
	UsageLine: "clear [flags] <cache>",
	ShortDesc: "removes every entry of a cache",
	LongDesc:  "Removes every entry of a cache. Exits with 3 if the cache lock is held and nothing was removed.",
	CommandRun: func() subcommands.CommandRun {
		r := &clearRun{}
		r.registerFlags()
		return r
	},
}

type clearRun struct{ commonFlags }

func (r *clearRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) != 1 {
		return usage(a, "clear takes exactly one cache name")
	}
	ctx := context.Background()
	c, done, err := r.cache(ctx, args[0])
	if err != nil {
		return fail(a, err)
	}
	defer done()
	switch err := c.Clear(ctx); {
	case errors.Is(err, dcache.ErrClearSkipped):
		fmt.Fprintf(a.GetErr(), "%s: cache %q is locked, nothing cleared\n", a.GetName(), args[0])
		return 3
	case err != nil:
		return fail(a, err)
	}
	return 0
}

////////////////////////////////////////////////////////////////////////////////
// get
////////////////////////////////////////////////////////////////////////////////

var cmdGet = &subcommands.Command{
	UsageLine: "get [flags] <cache> <key> [field]",
	ShortDesc: "prints one entry",
	LongDesc:  "Prints one entry, or one hash field when a field is given, as JSON. Exits with 4 on a miss.",
	CommandRun: func() subcommands.CommandRun {
		r := &getRun{}
		r.registerFlags()
		return r
	},
}

type getRun struct{ commonFlags }

func (r *getRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) != 2 && len(args) != 3 {
		return usage(a, "get takes <cache> <key> [field]")
	}
	ctx := context.Background()
	c, done, err := r.cache(ctx, args[0])
	if err != nil {
		return fail(a, err)
	}
	defer done()

	var (
		v  dcache.Value
		ok bool
	)
	if len(args) == 3 {
		v, ok, err = c.HGet(ctx, args[1], args[2])
	} else {
		v, ok, err = c.Get(ctx, args[1])
	}
	if err != nil {
		return fail(a, err)
	}
	if !ok {
		fmt.Fprintf(a.GetErr(), "%s: no entry\n", a.GetName())
		return 4
	}
	obj, err := v.Any()
	if err != nil {
		return fail(a, err)
	}
	if b, ok := obj.([]byte); ok {
		obj = string(b)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(obj); err != nil {
		return fail(a, err)
	}
	return 0
}

////////////////////////////////////////////////////////////////////////////////
// evict
////////////////////////////////////////////////////////////////////////////////

var cmdEvict = &subcommands.Command{
	UsageLine: "evict [flags] <cache> <key> [field]",
	ShortDesc: "removes one entry",
	LongDesc:  "Removes one entry, or one hash field when a field is given.",
	CommandRun: func() subcommands.CommandRun {
		r := &evictRun{}
		r.registerFlags()
		return r
	},
}

type evictRun struct{ commonFlags }

func (r *evictRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) != 2 && len(args) != 3 {
		return usage(a, "evict takes <cache> <key> [field]")
	}
	ctx := context.Background()
	c, done, err := r.cache(ctx, args[0])
	if err != nil {
		return fail(a, err)
	}
	defer done()
	if len(args) == 3 {
		err = c.HEvict(ctx, args[1], args[2])
	} else {
		err = c.Evict(ctx, args[1])
	}
	if err != nil {
		return fail(a, err)
	}
	return 0
}

// cache resolves one named cache.
func (c *commonFlags) cache(ctx context.Context, name string) (dcache.Cache, func(), error) {
	m, done, err := c.manager(ctx)
	if err != nil {
		return nil, nil, err
	}
	cache, ok := m.Cache(name)
	if !ok {
		done()
		return nil, nil, fmt.Errorf("unknown cache %q", name)
	}
	return cache, done, nil
}
