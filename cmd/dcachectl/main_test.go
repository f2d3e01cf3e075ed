package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/maruel/subcommands"
)

func run(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	stdout = &out
	t.Cleanup(func() { stdout = os.Stdout })
	rc := subcommands.Run(application, args)
	return rc, out.String()
}

func TestGetEvict(t *testing.T) {
	mr := miniredis.RunT(t)
	if err := mr.Set("users:42", `{"id":42}`); err != nil {
		t.Fatal(err)
	}

	rc, out := run(t, "get", "-addr", mr.Addr(), "users", "42")
	if rc != 0 || !strings.Contains(out, `"id": 42`) {
		t.Fatalf("get: rc=%d out=%q", rc, out)
	}
	if rc, _ := run(t, "evict", "-addr", mr.Addr(), "users", "42"); rc != 0 {
		t.Fatalf("evict rc=%d", rc)
	}
	if mr.Exists("users:42") {
		t.Fatalf("not evicted")
	}
	if rc, _ := run(t, "get", "-addr", mr.Addr(), "users", "42"); rc != 4 {
		t.Fatalf("miss rc=%d", rc)
	}
}

func TestClear(t *testing.T) {
	mr := miniredis.RunT(t)
	if err := mr.Set("users:1", "1"); err != nil {
		t.Fatal(err)
	}
	if err := mr.Set("orders:1", "1"); err != nil {
		t.Fatal(err)
	}

	if rc, _ := run(t, "clear", "-addr", mr.Addr(), "users"); rc != 0 {
		t.Fatalf("clear rc=%d", rc)
	}
	if mr.Exists("users:1") || !mr.Exists("orders:1") {
		t.Fatalf("keys=%v", mr.Keys())
	}

	if err := mr.Set("orders~lock", "someone"); err != nil {
		t.Fatal(err)
	}
	if rc, _ := run(t, "clear", "-addr", mr.Addr(), "orders"); rc != 3 {
		t.Fatalf("locked clear rc=%d", rc)
	}
}

func TestCachesDiscovered(t *testing.T) {
	mr := miniredis.RunT(t)
	if _, err := mr.ZAdd("users~keys", 0, "1"); err != nil {
		t.Fatal(err)
	}
	if _, err := mr.ZAdd("orders~keys", 0, "1"); err != nil {
		t.Fatal(err)
	}

	rc, out := run(t, "caches", "-addr", mr.Addr())
	if rc != 0 || out != "orders\nusers\n" {
		t.Fatalf("rc=%d out=%q", rc, out)
	}
}

func TestUsageErrors(t *testing.T) {
	if rc, _ := run(t, "get", "users"); rc != 2 {
		t.Fatalf("rc=%d", rc)
	}
	if rc, _ := run(t, "get", "-codec", "xml", "users", "1"); rc != 1 {
		t.Fatalf("rc=%d", rc)
	}
}
