package annex

import "strings"

// DeclID is a per-run interned identifier for a declaration. IDs are dense,
// start at 1 and are only meaningful within the Index that issued them.
type DeclID int32

// Kind discriminates the declaration variants.
type Kind uint8

const (
	KindPackage Kind = iota + 1
	KindClass
	KindMethod
	KindField
)

func (k Kind) String() string {
	switch k {
	case KindPackage:
		return "package"
	case KindClass:
		return "class"
	case KindMethod:
		return "method"
	case KindField:
		return "field"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String. It returns 0 for unknown names.
func ParseKind(s string) Kind {
	switch strings.ToLower(s) {
	case "package":
		return KindPackage
	case "class":
		return KindClass
	case "method":
		return KindMethod
	case "field":
		return KindField
	}
	return 0
}

// ClassKind distinguishes the flavors of class declarations.
type ClassKind uint8

const (
	ClassPlain ClassKind = iota
	ClassInterface
	ClassEnum
	ClassAnnotation
	ClassRecord
)

// Declaration is a class, method, field or package owned by an Index. The
// concrete types are *Class, *Method, *Field and *Package; consume them with
// a type switch. Declarations are immutable for the lifetime of a run.
type Declaration interface {
	ID() DeclID
	Kind() Kind
	// Name is the stable qualified name.
	Name() string
	declaration()
}

// Class is a class, interface, enum, record or annotation type.
type Class struct {
	id         DeclID
	name       string
	SimpleName string
	Package    string
	ClassKind  ClassKind
	// Superclass is the qualified name of the extended class, empty for
	// roots and interfaces.
	Superclass string
	// Interfaces are implemented (or, for interfaces, extended) interfaces.
	Interfaces []string
	Modifiers  []string
	// Archived is false for library declarations.
	Archived bool

	enclosing DeclID
	methods   []DeclID
	fields    []DeclID
}

func (c *Class) ID() DeclID   { return c.id }
func (c *Class) Kind() Kind   { return KindClass }
func (c *Class) Name() string { return c.name }
func (*Class) declaration()   {}

// IsInterface reports whether c is an interface (annotation types included).
func (c *Class) IsInterface() bool {
	return c.ClassKind == ClassInterface || c.ClassKind == ClassAnnotation
}

// Method is a method or constructor. Constructors are named "<init>".
type Method struct {
	id          DeclID
	name        string
	owner       DeclID
	MethodName  string
	Constructor bool
	ReturnType  string
	Params      []string
	Modifiers   []string
}

func (m *Method) ID() DeclID   { return m.id }
func (m *Method) Kind() Kind   { return KindMethod }
func (m *Method) Name() string { return m.name }
func (*Method) declaration()   {}

// Owner is the declaring class.
func (m *Method) Owner() DeclID { return m.owner }

// Field is a single field declarator.
type Field struct {
	id        DeclID
	name      string
	owner     DeclID
	FieldName string
	Type      string
	Modifiers []string
}

func (f *Field) ID() DeclID   { return f.id }
func (f *Field) Kind() Kind   { return KindField }
func (f *Field) Name() string { return f.name }
func (*Field) declaration()   {}

// Owner is the declaring class.
func (f *Field) Owner() DeclID { return f.owner }

// Package is a package declaration.
type Package struct {
	id   DeclID
	name string
}

func (p *Package) ID() DeclID   { return p.id }
func (p *Package) Kind() Kind   { return KindPackage }
func (p *Package) Name() string { return p.name }
func (*Package) declaration()   {}

// MethodName builds the qualified name of a method: "pkg.Type#name(p1,p2)".
func MethodName(owner, name string, params ...string) string {
	return owner + "#" + name + "(" + strings.Join(params, ",") + ")"
}

// FieldName builds the qualified name of a field: "pkg.Type#name".
func FieldName(owner, name string) string {
	return owner + "#" + name
}

// ConstructorName is the method name used for constructors.
const ConstructorName = "<init>"

// simpleName returns the last dotted segment of a qualified name.
func simpleName(qualified string) string {
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}
