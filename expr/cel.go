package expr

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"

	"github.com/unkn0wn-root/dcache/internal/memo"
)

const (
	varTarget = "target"
	varMethod = "method"
	varArgs   = "args"
	varCaches = "caches"
	varResult = "result"
)

var reserved = map[string]bool{varTarget: true, varMethod: true, varArgs: true, varCaches: true, varResult: true}

// envKey identifies one CEL environment: the bound parameter names plus the
// Go struct types of the arguments and result. The target is exposed as an
// opaque dyn value.
type envKey struct {
	params string
	types  string
}

type progKey struct {
	env envKey
	src string
}

type program struct {
	prg        cel.Program
	usesResult bool
}

// CEL is the default Evaluator. Environments and compiled programs are
// memoized, so each distinct expression is compiled once per shape of
// invocation.
type CEL struct {
	envs  *memo.Memo[envKey, *cel.Env]
	progs *memo.Memo[progKey, *program]
}

var _ Evaluator = (*CEL)(nil)

// NewCEL returns an evaluator caching up to size programs (0 => 4096).
func NewCEL(size int64) (*CEL, error) {
	envs, err := memo.New[envKey, *cel.Env](size)
	if err != nil {
		return nil, err
	}
	progs, err := memo.New[progKey, *program](size)
	if err != nil {
		return nil, err
	}
	return &CEL{envs: envs, progs: progs}, nil
}

func (e *CEL) Close() {
	e.envs.Close()
	e.progs.Close()
}

func (e *CEL) Condition(src string, c *Context) (bool, error) { return e.evalBool(src, c) }
func (e *CEL) Unless(src string, c *Context) (bool, error)    { return e.evalBool(src, c) }

func (e *CEL) Key(src string, c *Context) (any, error) {
	v, err := e.eval(src, c)
	if err != nil {
		return nil, err
	}
	if _, null := v.(types.Null); null {
		return nil, nil
	}
	return v.Value(), nil
}

func (e *CEL) evalBool(src string, c *Context) (bool, error) {
	v, err := e.eval(src, c)
	if err != nil {
		return false, err
	}
	b, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expr: %q evaluated to %s, want bool", src, v.Type().TypeName())
	}
	return b, nil
}

func (e *CEL) eval(src string, c *Context) (ref.Val, error) {
	params := bindable(c.Method.Params)
	key := envKey{params: strings.Join(params, ","), types: typeSignature(c)}

	p, err := e.progs.Do(progKey{env: key, src: src}, func() (*program, error) {
		env, err := e.envs.Do(key, func() (*cel.Env, error) { return newEnv(params, c) })
		if err != nil {
			return nil, err
		}
		return compile(env, src)
	})
	if err != nil {
		return nil, err
	}
	if p.usesResult && !c.HasResult {
		return nil, fmt.Errorf("expr: %q: %w", src, ErrResultUnavailable)
	}

	out, _, err := p.prg.Eval(activation(params, c))
	if err != nil {
		return nil, fmt.Errorf("expr: eval %q: %w", src, err)
	}
	return out, nil
}

func compile(env *cel.Env, src string) (*program, error) {
	ast, iss := env.Compile(src)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("expr: compile %q: %w", src, iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("expr: program %q: %w", src, err)
	}
	checked, err := cel.AstToCheckedExpr(ast)
	if err != nil {
		return nil, fmt.Errorf("expr: check %q: %w", src, err)
	}
	uses := false
	for _, r := range checked.GetReferenceMap() {
		if r.GetName() == varResult {
			uses = true
			break
		}
	}
	return &program{prg: prg, usesResult: uses}, nil
}

func newEnv(params []string, c *Context) (*cel.Env, error) {
	opts := []cel.EnvOption{
		cel.Variable(varTarget, cel.DynType),
		cel.Variable(varMethod, cel.StringType),
		cel.Variable(varArgs, cel.ListType(cel.DynType)),
		cel.Variable(varCaches, cel.ListType(cel.StringType)),
		cel.Variable(varResult, cel.DynType),
		ext.Strings(),
	}
	for _, p := range params {
		if p != "" {
			opts = append(opts, cel.Variable(p, cel.DynType))
		}
	}
	if structs := structTypes(c); len(structs) > 0 {
		native := make([]any, len(structs))
		for i, t := range structs {
			native[i] = t
		}
		env, err := cel.NewEnv(append(opts, ext.NativeTypes(native...))...)
		if err == nil {
			return env, nil
		}
		// fall back to plain dyn values; field selection on structs fails at eval
	}
	return cel.NewEnv(opts...)
}

func activation(params []string, c *Context) map[string]any {
	vars := map[string]any{
		varTarget: c.Target,
		varMethod: c.Method.Name,
		varArgs:   c.Args,
		varCaches: c.Caches,
		varResult: nil,
	}
	if vars[varArgs] == nil {
		vars[varArgs] = []any{}
	}
	if vars[varCaches] == nil {
		vars[varCaches] = []string{}
	}
	if c.HasResult {
		vars[varResult] = c.Result
	}
	for i, p := range params {
		if p == "" {
			continue
		}
		if i < len(c.Args) {
			vars[p] = c.Args[i]
		} else {
			vars[p] = nil
		}
	}
	return vars
}

// bindable blanks parameter names that would shadow the built-in variables.
// Positions are kept so params[i] still binds args[i].
func bindable(params []string) []string {
	if len(params) == 0 {
		return nil
	}
	out := make([]string, len(params))
	for i, p := range params {
		if !reserved[p] {
			out[i] = p
		}
	}
	return out
}

func structTypes(c *Context) []reflect.Type {
	seen := map[reflect.Type]bool{}
	var out []reflect.Type
	add := func(v any) {
		t := reflect.TypeOf(v)
		for t != nil && t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t == nil || t.Kind() != reflect.Struct || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}
	for _, a := range c.Args {
		add(a)
	}
	if c.HasResult {
		add(c.Result)
	}
	return out
}

func typeSignature(c *Context) string {
	ts := structTypes(c)
	if len(ts) == 0 {
		return ""
	}
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.PkgPath() + "." + t.String()
	}
	return strings.Join(parts, ";")
}
