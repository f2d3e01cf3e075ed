package op

import (
	"errors"
	"strings"
	"testing"
)

func mustConfigError(t *testing.T, err error, contains string) {
	t.Helper()
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("want *ConfigError, got %T %v", err, err)
	}
	if contains != "" && !strings.Contains(ce.Error(), contains) {
		t.Fatalf("error %q does not mention %q", ce.Error(), contains)
	}
}

// ==============================
// Mutual exclusivity
// ==============================

func TestKeyAndKeyGeneratorExclusive(t *testing.T) {
	for _, k := range []Kind{Cacheable, Put, Evict} {
		err := Validate([]Operation{{Kind: k, CacheNames: []string{"users"}, Key: "args[0]", KeyGenerator: "gen"}})
		mustConfigError(t, err, "keyGenerator")
	}
}

func TestManagerAndResolverExclusive(t *testing.T) {
	for _, k := range []Kind{Cacheable, Put, Evict} {
		err := Validate([]Operation{{Kind: k, CacheNames: []string{"users"}, CacheManager: "m", CacheResolver: "r"}})
		mustConfigError(t, err, "cacheResolver")
	}
}

func TestVariantFieldsRejected(t *testing.T) {
	cases := []struct {
		name string
		op   Operation
	}{
		{"cacheable cacheWide", Operation{Kind: Cacheable, CacheWide: true}},
		{"put beforeInvocation", Operation{Kind: Put, BeforeInvocation: true}},
		{"put sync", Operation{Kind: Put, Sync: true}},
		{"evict unless", Operation{Kind: Evict, Unless: "true"}},
		{"evict sync", Operation{Kind: Evict, Sync: true}},
		{"evict ttl", Operation{Kind: Evict, TTL: 1}},
		{"unknown kind", Operation{}},
		{"negative ttl", Operation{Kind: Put, TTL: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mustConfigError(t, tc.op.Check(), "")
		})
	}
}

// ==============================
// Sync exclusivity
// ==============================

func TestSyncExclusivity(t *testing.T) {
	sync := Operation{Kind: Cacheable, CacheNames: []string{"users"}, Sync: true}

	if err := Validate([]Operation{sync}); err != nil {
		t.Fatalf("lone sync op must be valid: %v", err)
	}

	withOther := []Operation{sync, {Kind: Evict, CacheNames: []string{"users"}}}
	mustConfigError(t, Validate(withOther), "single cache operation")

	twoCaches := sync
	twoCaches.CacheNames = []string{"a", "b"}
	mustConfigError(t, Validate([]Operation{twoCaches}), "single cache")

	withUnless := sync
	withUnless.Unless = "result == null"
	mustConfigError(t, Validate([]Operation{withUnless}), "unless")
}

func TestDefaultsApplyWithoutConflicts(t *testing.T) {
	d := Defaults{CacheNames: []string{"users"}, KeyGenerator: "kg", CacheResolver: "res", CacheManager: "mgr"}

	o := Operation{Kind: Cacheable, Key: "args[0]", CacheManager: "mine"}
	d.ApplyTo(&o)
	if o.KeyGenerator != "" || o.CacheResolver != "" {
		t.Fatalf("defaults overrode explicit attributes: %+v", o)
	}
	if len(o.CacheNames) != 1 || o.CacheNames[0] != "users" {
		t.Fatalf("cache names not applied: %v", o.CacheNames)
	}
	if err := o.Check(); err != nil {
		t.Fatalf("applied defaults produced invalid op: %v", err)
	}

	bare := Operation{Kind: Put}
	d.ApplyTo(&bare)
	if bare.KeyGenerator != "kg" || bare.CacheResolver != "res" || bare.CacheManager != "" {
		t.Fatalf("unexpected defaults: %+v", bare)
	}
}

func TestCloneIsDeep(t *testing.T) {
	in := []Operation{{Kind: Put, CacheNames: []string{"a"}}}
	out := Clone(in)
	out[0].CacheNames[0] = "b"
	if in[0].CacheNames[0] != "a" {
		t.Fatalf("Clone shares cache names")
	}
	if Clone(nil) != nil {
		t.Fatalf("Clone(nil) must be nil")
	}
}

func TestOperationString(t *testing.T) {
	o := Operation{Kind: Evict, Name: "svc.Reset", CacheNames: []string{"users"}, CacheWide: true, BeforeInvocation: true}
	s := o.String()
	for _, want := range []string{"evict", "svc.Reset", "users", "cacheWide", "beforeInvocation"} {
		if !strings.Contains(s, want) {
			t.Fatalf("%q missing %q", s, want)
		}
	}
}
