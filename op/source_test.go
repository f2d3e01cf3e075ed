package op

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

type Repo struct{}

func (Repo) Load(int) string   { return "" }
func (Repo) Save(string) error { return nil }
func (Repo) helper()           {}

type CachedRepo struct{ Repo }

func (CachedRepo) Load(int) string { return "" }

type countingParser struct {
	*Registry
	methodCalls int
}

func (p *countingParser) MethodOperations(t reflect.Type, m string) ([]Operation, error) {
	p.methodCalls++
	return p.Registry.MethodOperations(t, m)
}

func newResolution(t *testing.T, p Parser, opts ResolutionOptions) *Resolution {
	t.Helper()
	r, err := NewResolution(p, opts)
	if err != nil {
		t.Fatalf("NewResolution: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

var (
	repoT   = reflect.TypeFor[Repo]()
	cachedT = reflect.TypeFor[CachedRepo]()
)

func TestResolutionMemoizesIncludingEmpty(t *testing.T) {
	reg := NewRegistry().Method(repoT, "Load", Operation{Kind: Cacheable, CacheNames: []string{"users"}})
	p := &countingParser{Registry: reg}
	r := newResolution(t, p, ResolutionOptions{})

	m := MethodOf(Repo{}, "Load")
	for i := 0; i < 3; i++ {
		ops, err := r.Operations(m, repoT)
		if err != nil || len(ops) != 1 {
			t.Fatalf("ops=%v err=%v", ops, err)
		}
	}
	if p.methodCalls != 1 {
		t.Fatalf("parser consulted %d times, want 1", p.methodCalls)
	}

	save := MethodOf(Repo{}, "Save")
	for i := 0; i < 3; i++ {
		ops, err := r.Operations(save, repoT)
		if err != nil || ops != nil {
			t.Fatalf("expected no ops, got %v err=%v", ops, err)
		}
	}
	if p.methodCalls != 2 {
		t.Fatalf("empty answer not memoized: %d parser calls", p.methodCalls)
	}
}

func TestResolutionFallbackOrder(t *testing.T) {
	reg := NewRegistry().
		Method(repoT, "Load", Operation{Kind: Cacheable, CacheNames: []string{"decl-method"}}).
		Type(repoT, Operation{Kind: Cacheable, CacheNames: []string{"decl-type"}})
	r := newResolution(t, reg, ResolutionOptions{})
	m := MethodOf(Repo{}, "Load")

	// nothing on CachedRepo: falls through to the declaring type's method
	ops, err := r.Operations(m, cachedT)
	if err != nil || len(ops) != 1 || ops[0].CacheNames[0] != "decl-method" {
		t.Fatalf("want decl-method, got %v err=%v", ops, err)
	}

	// type-level declaration on the target beats the declaring method
	reg.Type(cachedT, Operation{Kind: Cacheable, CacheNames: []string{"target-type"}})
	r2 := newResolution(t, reg, ResolutionOptions{})
	ops, _ = r2.Operations(m, cachedT)
	if len(ops) != 1 || ops[0].CacheNames[0] != "target-type" {
		t.Fatalf("want target-type, got %v", ops)
	}

	// most specific: method on the target
	reg.Method(cachedT, "Load", Operation{Kind: Put, CacheNames: []string{"target-method"}})
	r3 := newResolution(t, reg, ResolutionOptions{})
	ops, _ = r3.Operations(m, cachedT)
	if len(ops) != 1 || ops[0].CacheNames[0] != "target-method" {
		t.Fatalf("want target-method, got %v", ops)
	}

	// declaring type-level applies to methods without their own ops
	ops, _ = r3.Operations(MethodOf(Repo{}, "Save"), repoT)
	if len(ops) != 1 || ops[0].CacheNames[0] != "decl-type" {
		t.Fatalf("want decl-type, got %v", ops)
	}
}

func TestResolutionTargetWithoutMethodUsesDeclaring(t *testing.T) {
	type other struct{}
	reg := NewRegistry().
		Type(reflect.TypeFor[other](), Operation{Kind: Evict, CacheNames: []string{"wrong"}}).
		Method(repoT, "Save", Operation{Kind: Evict, CacheNames: []string{"right"}})
	r := newResolution(t, reg, ResolutionOptions{})
	ops, err := r.Operations(MethodOf(Repo{}, "Save"), reflect.TypeFor[other]())
	if err != nil || len(ops) != 1 || ops[0].CacheNames[0] != "right" {
		t.Fatalf("got %v err=%v", ops, err)
	}
}

func TestResolutionPublicOnly(t *testing.T) {
	reg := NewRegistry().Method(repoT, "helper", Operation{Kind: Cacheable, CacheNames: []string{"x"}})
	m := Method{Type: repoT, Name: "helper"}

	open := newResolution(t, reg, ResolutionOptions{})
	if ops, _ := open.Operations(m, repoT); len(ops) != 1 {
		t.Fatalf("expected op for unexported method without policy")
	}
	strict := newResolution(t, reg, ResolutionOptions{PublicOnly: true})
	if ops, _ := strict.Operations(m, repoT); ops != nil {
		t.Fatalf("public-only policy leaked %v", ops)
	}
}

func TestResolutionSkipsSyntheticAndUnnamed(t *testing.T) {
	reg := NewRegistry().Method(repoT, "Load", Operation{Kind: Cacheable, CacheNames: []string{"x"}})
	r := newResolution(t, reg, ResolutionOptions{})
	m := MethodOf(Repo{}, "Load")
	m.Synthetic = true
	if ops, _ := r.Operations(m, repoT); ops != nil {
		t.Fatalf("synthetic method resolved %v", ops)
	}

	fn := Method{Type: reflect.TypeOf(func() {}), Name: "Load"}
	if ops, _ := r.Operations(fn, nil); ops != nil {
		t.Fatalf("unnamed type resolved %v", ops)
	}
}

func TestResolutionValidatesAndNames(t *testing.T) {
	reg := NewRegistry().
		Method(repoT, "Load", Operation{Kind: Cacheable, CacheNames: []string{"users"}, Key: "args[0]", KeyGenerator: "kg"}).
		Method(repoT, "Save", Operation{Kind: Put, CacheNames: []string{"users"}})
	r := newResolution(t, reg, ResolutionOptions{})

	_, err := r.Operations(MethodOf(Repo{}, "Load"), repoT)
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("want ConfigError, got %v", err)
	}
	ops, err := r.Operations(MethodOf(Repo{}, "Save"), repoT)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(ops[0].Name, "op.Repo.Save") {
		t.Fatalf("unexpected op name %q", ops[0].Name)
	}
}

func TestCompositeConcatenatesAndValidates(t *testing.T) {
	a := NewRegistry().Method(repoT, "Load", Operation{Kind: Cacheable, CacheNames: []string{"a"}})
	b := NewRegistry().Method(repoT, "Load", Operation{Kind: Evict, CacheNames: []string{"b"}})
	c := Composite{newResolution(t, a, ResolutionOptions{}), newResolution(t, b, ResolutionOptions{})}

	m := MethodOf(Repo{}, "Load")
	ops, err := c.Operations(m, repoT)
	if err != nil || len(ops) != 2 || ops[0].Kind != Cacheable || ops[1].Kind != Evict {
		t.Fatalf("ops=%v err=%v", ops, err)
	}
	if ops, _ := c.Operations(MethodOf(Repo{}, "Save"), repoT); ops != nil {
		t.Fatalf("expected nil, got %v", ops)
	}

	syncA := NewRegistry().Method(repoT, "Load", Operation{Kind: Cacheable, CacheNames: []string{"a"}, Sync: true})
	bad := Composite{newResolution(t, syncA, ResolutionOptions{}), newResolution(t, b, ResolutionOptions{})}
	if _, err := bad.Operations(m, repoT); err == nil {
		t.Fatalf("sync plus another op across sources must fail")
	}
}
