package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/maruel/subcommands"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/dcache/codec"
	dzap "github.com/unkn0wn-root/dcache/log/zap"
	rp "github.com/unkn0wn-root/dcache/provider/redis"
	"github.com/unkn0wn-root/dcache/store"
)

// commonFlags are shared by every subcommand that talks to Redis.
type commonFlags struct {
	subcommands.CommandRunBase

	addrs    string
	password string
	db       int
	config   string
	codec    string
	verbose  bool

	// set by commands that list caches
	discover bool
}

func (c *commonFlags) registerFlags() {
	c.Flags.StringVar(&c.addrs, "addr", "localhost:6379", "Comma-separated Redis addresses; more than one selects cluster mode.")
	c.Flags.StringVar(&c.password, "password", "", "Redis password.")
	c.Flags.IntVar(&c.db, "db", 0, "Redis database (ignored in cluster mode).")
	c.Flags.StringVar(&c.config, "config", "", "Path to a cache manager YAML config.")
	c.Flags.StringVar(&c.codec, "codec", "json", "Value codec: json, msgpack, cbor or bytes.")
	c.Flags.BoolVar(&c.verbose, "v", false, "Log at debug level.")
}

// manager connects to Redis and builds a cache manager. The returned func
// closes the connection.
func (c *commonFlags) manager(ctx context.Context) (*store.Manager, func(), error) {
	cfg := store.ManagerConfig{UsePrefix: true}
	if c.config != "" {
		var err error
		if cfg, err = store.LoadManagerConfig(c.config); err != nil {
			return nil, nil, err
		}
	}
	if c.discover {
		cfg.LoadRemoteCachesOnStartup = true
	}
	ser, err := serializer(c.codec)
	if err != nil {
		return nil, nil, err
	}

	zl := zap.NewNop()
	if c.verbose {
		if zl, err = zap.NewDevelopment(); err != nil {
			return nil, nil, err
		}
	}

	p, err := rp.New(rp.Config{
		Client: goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:    strings.Split(c.addrs, ","),
			Password: c.password,
			DB:       c.db,
		}),
		CloseClient: true,
	})
	if err != nil {
		return nil, nil, err
	}
	closeAll := func() {
		_ = p.Close(context.Background())
		_ = zl.Sync()
	}

	m, err := store.NewManager(store.ManagerOptions{
		ManagerConfig: cfg,
		Provider:      p,
		Serializer:    ser,
		Logger:        dzap.New(zl),
	})
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	if err := m.Init(ctx); err != nil {
		closeAll()
		return nil, nil, err
	}
	return m, closeAll, nil
}

func serializer(name string) (codec.Serializer, error) {
	switch name {
	case "json":
		return codec.JSON{}, nil
	case "msgpack":
		return codec.Msgpack{}, nil
	case "cbor":
		return codec.NewCBOR(true)
	case "bytes":
		return codec.Bytes{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

func fail(a subcommands.Application, err error) int {
	fmt.Fprintf(a.GetErr(), "%s: %s\n", a.GetName(), err)
	return 1
}

func usage(a subcommands.Application, msg string) int {
	fmt.Fprintf(a.GetErr(), "%s: %s\n", a.GetName(), msg)
	return 2
}

var stdout io.Writer = os.Stdout
