package wire

import (
	"bytes"
	"testing"
)

func TestMetadataKeys(t *testing.T) {
	cases := []struct {
		name      string
		lock, idx string
		prefix    string
	}{
		{"users", "users~lock", "users~keys", "users:"},
		{"a:b", "a:b~lock", "a:b~keys", "a:b:"},
	}
	for _, tc := range cases {
		if got := string(LockKey(tc.name)); got != tc.lock {
			t.Fatalf("LockKey(%q)=%q want %q", tc.name, got, tc.lock)
		}
		if got := string(IndexKey(tc.name)); got != tc.idx {
			t.Fatalf("IndexKey(%q)=%q want %q", tc.name, got, tc.idx)
		}
		if got := string(DefaultPrefix(tc.name)); got != tc.prefix {
			t.Fatalf("DefaultPrefix(%q)=%q want %q", tc.name, got, tc.prefix)
		}
	}
}

func TestNameFromIndex(t *testing.T) {
	if n, ok := NameFromIndex([]byte("users~keys")); !ok || n != "users" {
		t.Fatalf("got %q ok=%v", n, ok)
	}
	for _, bad := range []string{"~keys", "users", "users~lock", ""} {
		if _, ok := NameFromIndex([]byte(bad)); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestPrefixedDoesNotAlias(t *testing.T) {
	prefix := make([]byte, 3, 16)
	copy(prefix, "ns:")
	a := Prefixed(prefix, []byte("a"))
	b := Prefixed(prefix, []byte("b"))
	if string(a) != "ns:a" || string(b) != "ns:b" {
		t.Fatalf("got %q %q", a, b)
	}
	if got := Prefixed(nil, []byte("k")); string(got) != "k" {
		t.Fatalf("nil prefix: got %q", got)
	}
}

func TestPattern(t *testing.T) {
	if got := string(Pattern([]byte("users:"))); got != "users:*" {
		t.Fatalf("got %q", got)
	}
	if got := string(Pattern([]byte(`a*b?[c]\:`))); got != `a\*b\?\[c\]\\:*` {
		t.Fatalf("metacharacters not escaped: got %q", got)
	}
	if got := string(IndexPattern()); got != "*~keys" {
		t.Fatalf("got %q", got)
	}
}

func TestNullSentinel(t *testing.T) {
	n := Null()
	if !IsNull(n) {
		t.Fatalf("sentinel not recognized")
	}
	n[0] = 'X'
	if !IsNull(Null()) {
		t.Fatalf("Null must return a fresh copy")
	}

	for _, b := range [][]byte{nil, {}, []byte("DCNL"), append(Null(), 0), []byte(`"DCNL"`)} {
		if IsNull(b) {
			t.Fatalf("%x should not be the null sentinel", b)
		}
	}
	bad := Null()
	bad[4] = version + 1
	if IsNull(bad) {
		t.Fatalf("wrong version accepted")
	}
	if bytes.Equal(Null(), []byte("null")) {
		t.Fatalf("sentinel must differ from JSON null")
	}
}
