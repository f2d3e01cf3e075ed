package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/dcache"
	"github.com/unkn0wn-root/dcache/codec"
	"github.com/unkn0wn-root/dcache/internal/wire"
	"github.com/unkn0wn-root/dcache/lock"
	"github.com/unkn0wn-root/dcache/provider"
)

// ManagerConfig is the file-loadable part of a Manager's setup.
type ManagerConfig struct {
	UsePrefix  bool                     `yaml:"usePrefix"`
	DefaultTTL time.Duration            `yaml:"defaultTTL"` // 0 => eternal
	Expires    map[string]time.Duration `yaml:"expires"`    // per cache name
	// CacheNames fixes the set of caches. Empty => caches are created on
	// first lookup.
	CacheNames                []string    `yaml:"cacheNames"`
	AllowNullValues           bool        `yaml:"allowNullValues"`
	LoadRemoteCachesOnStartup bool        `yaml:"loadRemoteCachesOnStartup"`
	Lock                      lock.Config `yaml:"lock"`
}

// LoadManagerConfig reads a YAML ManagerConfig from path.
func LoadManagerConfig(path string) (ManagerConfig, error) {
	var cfg ManagerConfig
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("store: decode %s: %w", path, err)
	}
	return cfg, nil
}

type ManagerOptions struct {
	ManagerConfig

	// Required
	Provider provider.Provider

	Serializer    codec.Serializer // nil => codec.JSON
	KeySerializer codec.Serializer // nil => codec.Key
	// Prefix overrides the "<name>:" namespace when UsePrefix is set.
	Prefix func(name string) []byte

	Logger dcache.Logger // if nil, NopLogger is used
	Hooks  dcache.Hooks  // if nil, NopHooks is used
}

// Manager hands out RedisCaches by name.
type Manager struct {
	opts ManagerOptions

	mu     sync.RWMutex
	caches map[string]*RedisCache
	static bool
}

var _ dcache.CacheManager = (*Manager)(nil)

func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("store: provider is required")
	}
	if opts.Prefix == nil {
		opts.Prefix = wire.DefaultPrefix
	}
	if opts.Logger == nil {
		opts.Logger = dcache.NopLogger{}
	}
	if opts.Hooks == nil {
		opts.Hooks = dcache.NopHooks{}
	}
	m := &Manager{
		opts:   opts,
		caches: make(map[string]*RedisCache),
		static: len(opts.CacheNames) > 0,
	}
	for _, name := range opts.CacheNames {
		if _, err := m.create(name); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Init registers caches that already have a known-keys index in the store,
// when LoadRemoteCachesOnStartup is set. Prefixed caches keep no index and
// are not discovered.
func (m *Manager) Init(ctx context.Context) error {
	if !m.opts.LoadRemoteCachesOnStartup {
		return nil
	}
	keys, err := m.opts.Provider.Keys(ctx, wire.IndexPattern())
	if err != nil {
		return fmt.Errorf("store: discover caches: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		name, ok := wire.NameFromIndex(k)
		if !ok {
			continue
		}
		if _, exists := m.caches[name]; exists {
			continue
		}
		if _, err := m.createLocked(name); err != nil {
			return err
		}
		m.opts.Logger.Debug("remote cache registered", dcache.Fields{"cache": name})
	}
	return nil
}

// Cache returns the named cache. Unknown names are created on demand unless
// the manager was built with a fixed CacheNames list.
func (m *Manager) Cache(name string) (dcache.Cache, bool) {
	m.mu.RLock()
	c, ok := m.caches[name]
	m.mu.RUnlock()
	if ok {
		return c, true
	}
	if m.static || name == "" {
		return nil, false
	}
	c, err := m.create(name)
	if err != nil {
		m.opts.Logger.Error("cache creation failed", dcache.Fields{"cache": name, "err": err})
		return nil, false
	}
	return c, true
}

func (m *Manager) CacheNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.caches))
	for n := range m.caches {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) create(name string) (*RedisCache, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.caches[name]; ok {
		return c, nil
	}
	return m.createLocked(name)
}

func (m *Manager) createLocked(name string) (*RedisCache, error) {
	ttl := m.opts.DefaultTTL
	if d, ok := m.opts.Expires[name]; ok {
		ttl = d
	}
	var prefix []byte
	if m.opts.UsePrefix {
		prefix = m.opts.Prefix(name)
	}
	c, err := New(Options{
		Metadata:        NewMetadata(name, prefix, ttl),
		Provider:        m.opts.Provider,
		Serializer:      m.opts.Serializer,
		KeySerializer:   m.opts.KeySerializer,
		AllowNullValues: m.opts.AllowNullValues,
		Lock:            m.opts.Lock,
		Logger:          m.opts.Logger,
		Hooks:           m.opts.Hooks,
	})
	if err != nil {
		return nil, err
	}
	m.caches[name] = c
	return c, nil
}
