// Package expr evaluates condition, key and unless expressions against an
// invocation. The default implementation uses CEL.
//
// Variables visible to every expression:
//
//	target  the receiver (dyn)
//	method  the method name (string)
//	args    positional arguments (list)
//	caches  resolved cache names (list of string)
//	result  the computation result (dyn), only after invocation
//
// Named parameters (op.Method.Params) are bound as well.
package expr

import (
	"errors"

	"github.com/unkn0wn-root/dcache/op"
)

// ErrResultUnavailable is returned when an expression references result
// before the computation has run.
var ErrResultUnavailable = errors.New("dcache: result not yet available")

// Context is the evaluation root for one operation of one invocation.
type Context struct {
	Target    any
	Method    op.Method
	Args      []any
	Caches    []string
	Result    any
	HasResult bool
}

// Evaluator is the contract the executor relies on.
type Evaluator interface {
	Condition(src string, c *Context) (bool, error)
	Key(src string, c *Context) (any, error)
	Unless(src string, c *Context) (bool, error)
}
