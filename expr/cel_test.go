package expr

import (
	"errors"
	"testing"

	"github.com/unkn0wn-root/dcache/op"
)

type Account struct {
	ID   int64
	Name string
}

func newCEL(t *testing.T) *CEL {
	t.Helper()
	e, err := NewCEL(64)
	if err != nil {
		t.Fatalf("NewCEL: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func ctxWith(args ...any) *Context {
	return &Context{
		Method: op.Method{Name: "Load", Params: []string{"id", "scope"}},
		Args:   args,
		Caches: []string{"users"},
	}
}

func TestConditionAndNamedParams(t *testing.T) {
	e := newCEL(t)
	c := ctxWith(42, "admin")

	cases := map[string]bool{
		"args[0] > 10":             true,
		"id == 42":                 true,
		"scope.startsWith('adm')":  true,
		"method == 'Load'":         true,
		"'users' in caches":        true,
		"size(args) == 3":          false,
		"id < 0 || scope == 'ops'": false,
	}
	for src, want := range cases {
		got, err := e.Condition(src, c)
		if err != nil {
			t.Fatalf("%q: %v", src, err)
		}
		if got != want {
			t.Fatalf("%q = %v, want %v", src, got, want)
		}
	}
}

func TestKeyValues(t *testing.T) {
	e := newCEL(t)
	c := ctxWith(42, "admin")

	k, err := e.Key("args[0]", c)
	if err != nil || k != int64(42) {
		t.Fatalf("args[0]: %#v %v", k, err)
	}
	k, err = e.Key("scope + ':' + string(id)", c)
	if err != nil || k != "admin:42" {
		t.Fatalf("concat: %#v %v", k, err)
	}
	k, err = e.Key("null", c)
	if err != nil || k != nil {
		t.Fatalf("null key must map to nil, got %#v %v", k, err)
	}
}

func TestResultUnavailable(t *testing.T) {
	e := newCEL(t)
	c := ctxWith(1, "x")

	_, err := e.Condition("result != null", c)
	if !errors.Is(err, ErrResultUnavailable) {
		t.Fatalf("want ErrResultUnavailable, got %v", err)
	}
	// expressions not touching result still work without one
	if ok, err := e.Condition("id == 1", c); err != nil || !ok {
		t.Fatalf("got %v %v", ok, err)
	}

	c.Result, c.HasResult = nil, true
	if skip, err := e.Unless("result == null", c); err != nil || !skip {
		t.Fatalf("unless on nil result: %v %v", skip, err)
	}
	c.Result = "U42"
	if skip, err := e.Unless("result == null", c); err != nil || skip {
		t.Fatalf("unless on value: %v %v", skip, err)
	}
}

func TestStructFieldAccess(t *testing.T) {
	e := newCEL(t)
	c := &Context{
		Method: op.Method{Name: "Save", Params: []string{"acct"}},
		Args:   []any{&Account{ID: 7, Name: "ada"}},
	}
	k, err := e.Key("acct.Name", c)
	if err != nil || k != "ada" {
		t.Fatalf("field access: %#v %v", k, err)
	}
	c.Result, c.HasResult = Account{ID: 9}, true
	if ok, err := e.Condition("result.ID == 9", c); err != nil || !ok {
		t.Fatalf("result field: %v %v", ok, err)
	}
}

func TestReservedParamNamesIgnored(t *testing.T) {
	e := newCEL(t)
	c := &Context{Method: op.Method{Name: "M", Params: []string{"args", "n"}}, Args: []any{"a", 5}}
	if ok, err := e.Condition("n == 5 && args[0] == 'a'", c); err != nil || !ok {
		t.Fatalf("got %v %v", ok, err)
	}
}

func TestErrors(t *testing.T) {
	e := newCEL(t)
	c := ctxWith(1, "x")
	if _, err := e.Condition("id +", c); err == nil {
		t.Fatalf("expected compile error")
	}
	if _, err := e.Condition("id", c); err == nil {
		t.Fatalf("expected non-bool error")
	}
	if _, err := e.Key("args[5]", c); err == nil {
		t.Fatalf("expected index error")
	}
}
