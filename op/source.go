package op

import (
	"reflect"

	"github.com/unkn0wn-root/dcache/internal/memo"
)

// Parser turns declarations into raw operations. It knows nothing about
// method resolution order or memoization.
type Parser interface {
	// MethodOperations returns operations declared on one method of t.
	MethodOperations(t reflect.Type, method string) ([]Operation, error)
	// TypeOperations returns operations declared on t for all its methods.
	TypeOperations(t reflect.Type) ([]Operation, error)
}

// Source resolves the operations that apply when method m is called on a
// value of type target. A nil slice means "no caching here".
// Returned slices are shared and must not be modified.
type Source interface {
	Operations(m Method, target reflect.Type) ([]Operation, error)
}

type ResolutionOptions struct {
	// PublicOnly resolves nothing for unexported methods.
	PublicOnly bool
	// Size bounds the memo table (0 => 4096 call sites).
	Size int64
}

type resolveKey struct {
	decl   reflect.Type
	name   string
	target reflect.Type
}

// Resolution is the memoizing Source over a Parser. For each (method, target)
// pair it looks, in order, at: the method on the target type, the target type
// itself, the method on its declaring type, and the declaring type. The first
// non-empty answer wins and is validated before being memoized. Empty answers
// are memoized as well.
type Resolution struct {
	parser     Parser
	publicOnly bool
	memo       *memo.Memo[resolveKey, []Operation]
}

var _ Source = (*Resolution)(nil)

func NewResolution(p Parser, opts ResolutionOptions) (*Resolution, error) {
	m, err := memo.New[resolveKey, []Operation](opts.Size)
	if err != nil {
		return nil, err
	}
	return &Resolution{parser: p, publicOnly: opts.PublicOnly, memo: m}, nil
}

func (r *Resolution) Operations(m Method, target reflect.Type) ([]Operation, error) {
	if m.Synthetic {
		return nil, nil
	}
	k := resolveKey{decl: UserType(m.Type), name: m.Name, target: UserType(target)}
	return r.memo.Do(k, func() ([]Operation, error) {
		ops, err := r.compute(m, k.target)
		if err != nil || len(ops) == 0 {
			return nil, err
		}
		if err := Validate(ops); err != nil {
			return nil, err
		}
		for i := range ops {
			if ops[i].Name == "" {
				ops[i].Name = m.FullName()
			}
		}
		return ops, nil
	})
}

func (r *Resolution) compute(m Method, target reflect.Type) ([]Operation, error) {
	if r.publicOnly && !m.Exported() {
		return nil, nil
	}
	decl := UserType(m.Type)
	specific := target
	if specific == nil || !hasMethod(specific, m.Name) {
		specific = decl
	}

	steps := []reflect.Type{specific}
	if decl != nil && decl != specific {
		steps = append(steps, decl)
	}
	for _, t := range steps {
		if !userLevel(t) {
			continue
		}
		ops, err := r.parser.MethodOperations(t, m.Name)
		if err != nil || len(ops) > 0 {
			return ops, err
		}
		ops, err = r.parser.TypeOperations(t)
		if err != nil || len(ops) > 0 {
			return ops, err
		}
	}
	return nil, nil
}

// Forget drops every memoized resolution, e.g. after reloading descriptors.
func (r *Resolution) Forget() { r.memo.Clear() }

func (r *Resolution) Close() { r.memo.Close() }

func hasMethod(t reflect.Type, name string) bool {
	if _, ok := t.MethodByName(name); ok {
		return true
	}
	if t.Kind() != reflect.Interface {
		_, ok := reflect.PointerTo(t).MethodByName(name)
		return ok
	}
	return false
}

// Composite concatenates the answers of several sources. The combined list
// is validated again, since sync exclusivity spans sources.
type Composite []Source

func (c Composite) Operations(m Method, target reflect.Type) ([]Operation, error) {
	var out []Operation
	for _, s := range c {
		ops, err := s.Operations(m, target)
		if err != nil {
			return nil, err
		}
		out = append(out, ops...)
	}
	if len(out) == 0 {
		return nil, nil
	}
	if err := Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}
