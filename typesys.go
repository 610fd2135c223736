package annex

import (
	"strings"
	"unicode"
)

// TypeKind discriminates Type values.
type TypeKind uint8

const (
	TypeVoid TypeKind = iota + 1
	TypePrimitive
	TypeClass
	TypeArray
	TypeParameterized
	TypeWildcard
)

// Primitive names a primitive type.
type Primitive string

const (
	Boolean Primitive = "boolean"
	Byte    Primitive = "byte"
	Short   Primitive = "short"
	Int     Primitive = "int"
	Long    Primitive = "long"
	Float   Primitive = "float"
	Double  Primitive = "double"
	Char    Primitive = "char"
)

// Type is a type expression. The zero value is invalid; obtain values from
// *Types.
type Type struct {
	kind      TypeKind
	name      string
	component *Type
	dims      int
	args      []Type
	bound     *Type
	lower     bool
}

func (t Type) Kind() TypeKind { return t.kind }

// Name is the erased name: the class name for class and parameterized
// types, the primitive name, "void", or the component name followed by "[]"
// per dimension. Wildcards erase to their upper bound.
func (t Type) Name() string {
	switch t.kind {
	case TypeArray:
		return t.component.Name() + strings.Repeat("[]", t.dims)
	case TypeWildcard:
		if t.bound != nil && !t.lower {
			return t.bound.Name()
		}
		return "java.lang.Object"
	}
	return t.name
}

// String renders the canonical source form, e.g.
// "java.util.Map<java.lang.String,? extends pkg.Base>".
func (t Type) String() string {
	switch t.kind {
	case TypeArray:
		return t.component.String() + strings.Repeat("[]", t.dims)
	case TypeParameterized:
		parts := make([]string, len(t.args))
		for i, a := range t.args {
			parts[i] = a.String()
		}
		return t.name + "<" + strings.Join(parts, ",") + ">"
	case TypeWildcard:
		switch {
		case t.bound == nil:
			return "?"
		case t.lower:
			return "? super " + t.bound.String()
		default:
			return "? extends " + t.bound.String()
		}
	}
	return t.name
}

// Component is the element type of an array, or the zero Type.
func (t Type) Component() Type {
	if t.component == nil {
		return Type{}
	}
	return *t.component
}

// Dimensions is the array depth.
func (t Type) Dimensions() int { return t.dims }

// Arguments are the type arguments of a parameterized type.
func (t Type) Arguments() []Type { return append([]Type{}, t.args...) }

// Bound is the wildcard bound and whether it is a lower (super) bound.
func (t Type) Bound() (Type, bool) {
	if t.bound == nil {
		return Type{}, false
	}
	return *t.bound, t.lower
}

// Matches reports whether expr, a type expression as recorded in the index,
// denotes t. Whitespace is insignificant.
func (t Type) Matches(expr string) bool {
	return stripSpace(expr) == stripSpace(t.String())
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Types builds Type values.
type Types struct{}

func (*Types) OfVoid() Type { return Type{kind: TypeVoid, name: "void"} }

func (*Types) OfPrimitive(p Primitive) Type { return Type{kind: TypePrimitive, name: string(p)} }

func (*Types) OfClass(name string) Type { return Type{kind: TypeClass, name: name} }

// OfArray builds an array of component with the given number of dimensions.
// An array component is flattened, so OfArray(OfArray(int, 1), 2) is int[][][].
func (*Types) OfArray(component Type, dims int) Type {
	if dims < 1 {
		dims = 1
	}
	if component.kind == TypeArray {
		dims += component.dims
		component = *component.component
	}
	c := component
	return Type{kind: TypeArray, component: &c, dims: dims}
}

// Parameterized builds raw<args...>.
func (*Types) Parameterized(raw string, args ...Type) Type {
	return Type{kind: TypeParameterized, name: raw, args: append([]Type{}, args...)}
}

func (*Types) WildcardUnbounded() Type { return Type{kind: TypeWildcard} }

func (*Types) WildcardWithUpperBound(upper Type) Type {
	b := upper
	return Type{kind: TypeWildcard, bound: &b}
}

func (*Types) WildcardWithLowerBound(lower Type) Type {
	b := lower
	return Type{kind: TypeWildcard, bound: &b, lower: true}
}
