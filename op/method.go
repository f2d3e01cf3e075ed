package op

import (
	"go/token"
	"reflect"
)

// Method identifies a call site. Type is the type the method is declared on
// (pointer receivers are normalized to the element type). Params names the
// arguments for expressions; positional access through args[i] always works.
type Method struct {
	Type     reflect.Type
	Name     string
	Params   []string
	Variadic bool // trailing argument is a slice to be flattened

	// Synthetic marks generated wrappers (adapters, closures bound at
	// registration). Operations are never resolved for them.
	Synthetic bool
}

// MethodOf builds a Method for the named method of v's type.
func MethodOf(v any, name string, params ...string) Method {
	m := Method{Type: UserType(reflect.TypeOf(v)), Name: name, Params: params}
	if rt := reflect.TypeOf(v); rt != nil {
		if mt, ok := rt.MethodByName(name); ok {
			m.Variadic = mt.Type.IsVariadic()
		}
	}
	return m
}

// FullName renders "pkg/path.Type.Method".
func (m Method) FullName() string {
	if m.Type == nil {
		return m.Name
	}
	return TypeName(m.Type) + "." + m.Name
}

// Exported reports whether the method would be visible outside its package.
func (m Method) Exported() bool { return token.IsExported(m.Name) }

// UserType strips pointer indirections. Nil stays nil.
func UserType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// TypeName is the lookup name used by descriptor files: "pkg/path.Type".
// Unnamed types render as their Go syntax.
func TypeName(t reflect.Type) string {
	t = UserType(t)
	if t == nil {
		return ""
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// userLevel reports whether t is a named type declared by user code.
func userLevel(t reflect.Type) bool {
	t = UserType(t)
	return t != nil && t.Name() != "" && t.PkgPath() != ""
}
