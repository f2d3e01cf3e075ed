// Package keygen derives cache keys from invocation arguments.
package keygen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/dcache/internal/util"
	"github.com/unkn0wn-root/dcache/op"
)

// KeyGenerator derives a key from an invocation. Returning nil is treated by
// the executor as a configuration error, not a miss.
type KeyGenerator interface {
	Generate(target any, m op.Method, args []any) any
}

// Func adapts a function to KeyGenerator.
type Func func(target any, m op.Method, args []any) any

func (f Func) Generate(target any, m op.Method, args []any) any { return f(target, m, args) }

// SimpleKey is the composite key for zero or several arguments. Its string
// form is what ends up on the wire: strings are quoted, everything else is
// rendered with fmt and has the separator and quote characters escaped, so
// different tuples never render the same. ("a", 7) is `SimpleKey ["a",7]`.
type SimpleKey struct {
	params []any
}

// EmptyKey is the key for methods without arguments.
var EmptyKey = SimpleKey{}

func NewSimpleKey(params ...any) SimpleKey {
	return SimpleKey{params: append([]any(nil), params...)}
}

func (k SimpleKey) Params() []any { return k.params }

func (k SimpleKey) String() string {
	parts := make([]string, len(k.params))
	for i, p := range k.params {
		parts[i] = renderParam(p)
	}
	return "SimpleKey " + util.Bracketed(parts)
}

var plainEscaper = strings.NewReplacer(`\`, `\\`, `,`, `\,`, `"`, `\"`, `]`, `\]`)

func renderParam(p any) string {
	if s, ok := p.(string); ok {
		return strconv.Quote(s)
	}
	return plainEscaper.Replace(fmt.Sprint(p))
}

// Simple is the default generator: no args => EmptyKey, one arg => the arg
// itself, several => a SimpleKey over all of them.
type Simple struct{}

func (Simple) Generate(_ any, _ op.Method, args []any) any {
	switch len(args) {
	case 0:
		return EmptyKey
	case 1:
		return args[0]
	default:
		return NewSimpleKey(args...)
	}
}

// Digest hashes the method identity and the arguments into a short fixed-size
// key. Useful when arguments are large or contain unsafe characters.
type Digest struct {
	// Format renders a single argument; defaults to fmt.Sprint.
	Format func(any) string
}

func (d Digest) Generate(_ any, m op.Method, args []any) any {
	format := d.Format
	if format == nil {
		format = func(v any) string { return fmt.Sprint(v) }
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = format(a)
	}
	return util.Digest(m.Name, parts)
}
