package dcache

import "github.com/unkn0wn-root/dcache/keygen"

// Beans resolves the names operations use to refer to key generators,
// cache managers and cache resolvers.
type Beans map[string]any

func bean[T any](b Beans, name, what string) (T, error) {
	var zero T
	v, ok := b[name]
	if !ok {
		return zero, configErrorf(nil, "no %s registered under %q", what, name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, configErrorf(nil, "bean %q is a %T, not a %s", name, v, what)
	}
	return t, nil
}

func (b Beans) KeyGenerator(name string) (keygen.KeyGenerator, error) {
	return bean[keygen.KeyGenerator](b, name, "key generator")
}

func (b Beans) CacheManager(name string) (CacheManager, error) {
	return bean[CacheManager](b, name, "cache manager")
}

func (b Beans) CacheResolver(name string) (CacheResolver, error) {
	return bean[CacheResolver](b, name, "cache resolver")
}
