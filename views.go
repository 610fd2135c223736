package annex

import "slices"

// annotated is the annotation read surface shared by every info view. Reads
// always go through the overlay, so they see staged edits.
type annotated struct {
	b *Build
	d Declaration
}

// Name is the qualified name of the declaration.
func (a annotated) Name() string { return a.d.Name() }

// Declaration is the underlying index declaration.
func (a annotated) Declaration() Declaration { return a.d }

// Annotations returns the effective annotations in order.
func (a annotated) Annotations() []Annotation {
	return a.b.overlay.Effective(a.d)
}

// Annotation returns the first effective annotation of type name.
func (a annotated) Annotation(name string) (Annotation, bool) {
	return firstAnnotationNamed(a.b.overlay.view(a.d), name)
}

// HasAnnotation reports whether an annotation of type name is present.
func (a annotated) HasAnnotation(name string) bool {
	return a.b.overlay.Has(a.d, name)
}

// RepeatableAnnotation returns every effective annotation of type name.
func (a annotated) RepeatableAnnotation(name string) []Annotation {
	return annotationsNamed(a.b.overlay.view(a.d), name)
}

// ClassInfo is a read-only view of a class.
type ClassInfo struct {
	annotated
	c *Class
}

func newClassInfo(b *Build, c *Class) *ClassInfo {
	return &ClassInfo{annotated: annotated{b: b, d: c}, c: c}
}

func (ci *ClassInfo) Class() *Class { return ci.c }

func (ci *ClassInfo) SimpleName() string { return ci.c.SimpleName }

func (ci *ClassInfo) PackageName() string { return ci.c.Package }

// Package returns the package view. Packages without a package-info
// declaration have no annotations.
func (ci *ClassInfo) Package() *PackageInfo {
	if p, ok := ci.b.index.Lookup(KindPackage, ci.c.Package).(*Package); ok {
		return newPackageInfo(ci.b, p)
	}
	return &PackageInfo{name: ci.c.Package}
}

// Superclass returns the extended class, or nil for roots and superclasses
// missing from the index.
func (ci *ClassInfo) Superclass() *ClassInfo {
	if s := ci.b.index.Superclass(ci.c); s != nil {
		return newClassInfo(ci.b, s)
	}
	return nil
}

func (ci *ClassInfo) SuperclassName() string { return ci.c.Superclass }

// Interfaces returns the indexed direct superinterfaces.
func (ci *ClassInfo) Interfaces() []*ClassInfo {
	out := []*ClassInfo{}
	for _, name := range ci.c.Interfaces {
		if c := ci.b.classByName(name); c != nil {
			out = append(out, newClassInfo(ci.b, c))
		}
	}
	return out
}

func (ci *ClassInfo) InterfaceNames() []string { return slices.Clone(ci.c.Interfaces) }

func (ci *ClassInfo) IsPlainClass() bool  { return ci.c.ClassKind == ClassPlain }
func (ci *ClassInfo) IsInterface() bool   { return ci.c.ClassKind == ClassInterface }
func (ci *ClassInfo) IsEnum() bool        { return ci.c.ClassKind == ClassEnum }
func (ci *ClassInfo) IsAnnotation() bool  { return ci.c.ClassKind == ClassAnnotation }
func (ci *ClassInfo) IsRecord() bool      { return ci.c.ClassKind == ClassRecord }
func (ci *ClassInfo) Modifiers() []string { return slices.Clone(ci.c.Modifiers) }

func (ci *ClassInfo) HasModifier(m string) bool { return slices.Contains(ci.c.Modifiers, m) }

// Constructors returns the declared constructors.
func (ci *ClassInfo) Constructors() []*MethodInfo {
	return ci.methods(true)
}

// Methods returns the declared methods, constructors excluded.
func (ci *ClassInfo) Methods() []*MethodInfo {
	return ci.methods(false)
}

func (ci *ClassInfo) methods(constructors bool) []*MethodInfo {
	ms, _ := ci.b.index.Members(ci.c)
	out := []*MethodInfo{}
	for _, m := range ms {
		if m.Constructor == constructors {
			out = append(out, newMethodInfo(ci.b, m))
		}
	}
	return out
}

// Fields returns the declared fields.
func (ci *ClassInfo) Fields() []*FieldInfo {
	_, fs := ci.b.index.Members(ci.c)
	out := make([]*FieldInfo, len(fs))
	for i, f := range fs {
		out[i] = newFieldInfo(ci.b, f)
	}
	return out
}

// MethodInfo is a read-only view of a method or constructor.
type MethodInfo struct {
	annotated
	m *Method
}

func newMethodInfo(b *Build, m *Method) *MethodInfo {
	return &MethodInfo{annotated: annotated{b: b, d: m}, m: m}
}

func (mi *MethodInfo) Method() *Method { return mi.m }

// SimpleName is the method name, ConstructorName for constructors.
func (mi *MethodInfo) SimpleName() string { return mi.m.MethodName }

func (mi *MethodInfo) DeclaringClass() *ClassInfo {
	return newClassInfo(mi.b, mi.b.ownerOf(mi.m))
}

func (mi *MethodInfo) IsConstructor() bool  { return mi.m.Constructor }
func (mi *MethodInfo) ReturnType() string   { return mi.m.ReturnType }
func (mi *MethodInfo) Parameters() []string { return slices.Clone(mi.m.Params) }
func (mi *MethodInfo) Modifiers() []string  { return slices.Clone(mi.m.Modifiers) }

func (mi *MethodInfo) HasModifier(m string) bool { return slices.Contains(mi.m.Modifiers, m) }

// FieldInfo is a read-only view of a field.
type FieldInfo struct {
	annotated
	f *Field
}

func newFieldInfo(b *Build, f *Field) *FieldInfo {
	return &FieldInfo{annotated: annotated{b: b, d: f}, f: f}
}

func (fi *FieldInfo) Field() *Field { return fi.f }

func (fi *FieldInfo) SimpleName() string { return fi.f.FieldName }

func (fi *FieldInfo) DeclaringClass() *ClassInfo {
	return newClassInfo(fi.b, fi.b.ownerOf(fi.f))
}

func (fi *FieldInfo) Type() string        { return fi.f.Type }
func (fi *FieldInfo) Modifiers() []string { return slices.Clone(fi.f.Modifiers) }

func (fi *FieldInfo) HasModifier(m string) bool { return slices.Contains(fi.f.Modifiers, m) }

// PackageInfo is a read-only view of a package.
type PackageInfo struct {
	annotated
	name string
}

func newPackageInfo(b *Build, p *Package) *PackageInfo {
	return &PackageInfo{annotated: annotated{b: b, d: p}, name: p.Name()}
}

// Name is the package name. It is valid even for packages that have no
// package-info declaration.
func (pi *PackageInfo) Name() string { return pi.name }

func (pi *PackageInfo) Annotations() []Annotation {
	if pi.d == nil {
		return []Annotation{}
	}
	return pi.annotated.Annotations()
}

func (pi *PackageInfo) Annotation(name string) (Annotation, bool) {
	if pi.d == nil {
		return Annotation{}, false
	}
	return pi.annotated.Annotation(name)
}

func (pi *PackageInfo) HasAnnotation(name string) bool {
	return pi.d != nil && pi.annotated.HasAnnotation(name)
}

func (pi *PackageInfo) RepeatableAnnotation(name string) []Annotation {
	if pi.d == nil {
		return []Annotation{}
	}
	return pi.annotated.RepeatableAnnotation(name)
}
