package op

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"

	"gopkg.in/yaml.v3"
)

// Registry is an in-memory Parser. Declarations are keyed by TypeName, so a
// registry can be filled programmatically or from a descriptor file.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*TypeSpec
}

// TypeSpec is everything declared for one type.
type TypeSpec struct {
	Defaults   Defaults               `yaml:"defaults,omitempty"`
	Operations []Operation            `yaml:"operations,omitempty"`
	Methods    map[string][]Operation `yaml:"methods,omitempty"`
}

// File is the on-disk descriptor format:
//
//	types:
//	  github.com/acme/app.UserService:
//	    defaults: {cacheNames: [users]}
//	    methods:
//	      Load:
//	        - {kind: cacheable, key: "args[0]"}
//	      Save:
//	        - {kind: put, key: "result.ID", unless: "result == null"}
type File struct {
	Types map[string]TypeSpec `yaml:"types"`
}

var _ Parser = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*TypeSpec)}
}

func (r *Registry) spec(t reflect.Type) *TypeSpec {
	name := TypeName(t)
	s, ok := r.types[name]
	if !ok {
		s = &TypeSpec{Methods: make(map[string][]Operation)}
		r.types[name] = s
	}
	return s
}

// Defaults sets the type-level defaults for t.
func (r *Registry) Defaults(t reflect.Type, d Defaults) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spec(t).Defaults = d
	return r
}

// Type declares operations applying to every method of t.
func (r *Registry) Type(t reflect.Type, ops ...Operation) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.spec(t)
	s.Operations = append(s.Operations, Clone(ops)...)
	return r
}

// Method declares operations on one method of t.
func (r *Registry) Method(t reflect.Type, method string, ops ...Operation) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.spec(t)
	s.Methods[method] = append(s.Methods[method], Clone(ops)...)
	return r
}

func (r *Registry) MethodOperations(t reflect.Type, method string) ([]Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.types[TypeName(t)]
	if !ok {
		return nil, nil
	}
	return s.resolved(s.Methods[method]), nil
}

func (r *Registry) TypeOperations(t reflect.Type) ([]Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.types[TypeName(t)]
	if !ok {
		return nil, nil
	}
	return s.resolved(s.Operations), nil
}

func (s *TypeSpec) resolved(ops []Operation) []Operation {
	if len(ops) == 0 {
		return nil
	}
	out := Clone(ops)
	for i := range out {
		s.Defaults.ApplyTo(&out[i])
	}
	return out
}

// Load merges a decoded descriptor file into r. Every operation is checked
// individually; cross-operation rules are enforced at resolution.
func (r *Registry) Load(f File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, ts := range f.Types {
		for i := range ts.Operations {
			if err := ts.Operations[i].Check(); err != nil {
				return fmt.Errorf("op: type %s: %w", name, err)
			}
		}
		for m, ops := range ts.Methods {
			for i := range ops {
				if err := ops[i].Check(); err != nil {
					return fmt.Errorf("op: %s.%s: %w", name, m, err)
				}
			}
		}
		s, ok := r.types[name]
		if !ok {
			s = &TypeSpec{Methods: make(map[string][]Operation)}
			r.types[name] = s
		}
		if !ts.Defaults.IsZero() {
			s.Defaults = ts.Defaults
		}
		s.Operations = append(s.Operations, Clone(ts.Operations)...)
		for m, ops := range ts.Methods {
			s.Methods[m] = append(s.Methods[m], Clone(ops)...)
		}
	}
	return nil
}

// Decode reads a descriptor file from rd into a new Registry.
func Decode(rd io.Reader) (*Registry, error) {
	var f File
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("op: decode descriptors: %w", err)
	}
	r := NewRegistry()
	if err := r.Load(f); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadFile reads a YAML descriptor file.
func LoadFile(path string) (*Registry, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Decode(fh)
}
