package annex

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jward/annex/internal/store"
)

// ProgramIndex is the read-only declaration graph the engine queries. Index
// is the only implementation shipped; the interface documents exactly what
// the query and overlay layers consume.
type ProgramIndex interface {
	// All returns every declaration of kind in index order.
	All(kind Kind) []Declaration
	// Lookup resolves a qualified name, or returns nil.
	Lookup(kind Kind, name string) Declaration
	// Declaration resolves an interned ID, or returns nil.
	Declaration(id DeclID) Declaration
	// Superclass returns the class c extends, or nil when it is a root or
	// the superclass is not indexed.
	Superclass(c *Class) *Class
	// KnownSubtypes returns every indexed class that extends or implements
	// name, transitively, in index order. name itself is never included.
	KnownSubtypes(name string) []*Class
	// AnnotatedWith returns declarations natively carrying the annotation.
	AnnotatedWith(annotation string) []Declaration
	// NativeAnnotations returns the annotations declared in source.
	NativeAnnotations(id DeclID) []Annotation
	// Members returns the methods (constructors included) and fields of c.
	Members(c *Class) ([]*Method, []*Field)
}

type internKey struct {
	kind Kind
	name string
}

// Interner assigns dense per-run IDs to qualified names.
type Interner struct {
	ids map[internKey]DeclID
}

func NewInterner() *Interner {
	return &Interner{ids: make(map[internKey]DeclID)}
}

// Intern returns the ID of (kind, name), allocating the next one if needed.
// The second result is false when the name was already interned.
func (in *Interner) Intern(kind Kind, name string) (DeclID, bool) {
	k := internKey{kind, name}
	if id, ok := in.ids[k]; ok {
		return id, false
	}
	id := DeclID(len(in.ids) + 1)
	in.ids[k] = id
	return id, true
}

// Lookup returns the ID of (kind, name), or 0.
func (in *Interner) Lookup(kind Kind, name string) DeclID {
	return in.ids[internKey{kind, name}]
}

func (in *Interner) Len() int { return len(in.ids) }

// Index is an in-memory snapshot of the program's declarations. It is built
// once per run and never modified afterwards.
type Index struct {
	interner *Interner
	decls    []Declaration // decls[id-1]
	native   map[DeclID][]Annotation
	byAnn    map[string][]DeclID
	// children maps a supertype name to the classes naming it directly.
	children map[string][]DeclID
	byKind   map[Kind][]DeclID
}

func (x *Index) All(kind Kind) []Declaration {
	ids := x.byKind[kind]
	out := make([]Declaration, len(ids))
	for i, id := range ids {
		out[i] = x.decls[id-1]
	}
	return out
}

// Classes returns every indexed class, library classes included.
func (x *Index) Classes() []*Class {
	ids := x.byKind[KindClass]
	out := make([]*Class, len(ids))
	for i, id := range ids {
		out[i] = x.decls[id-1].(*Class)
	}
	return out
}

func (x *Index) Lookup(kind Kind, name string) Declaration {
	id := x.interner.Lookup(kind, name)
	if id == 0 {
		return nil
	}
	return x.decls[id-1]
}

// Class resolves a class by qualified name, or returns nil.
func (x *Index) Class(name string) *Class {
	if d, ok := x.Lookup(KindClass, name).(*Class); ok {
		return d
	}
	return nil
}

func (x *Index) Declaration(id DeclID) Declaration {
	if id <= 0 || int(id) > len(x.decls) {
		return nil
	}
	return x.decls[id-1]
}

// Len is the number of declarations.
func (x *Index) Len() int { return len(x.decls) }

func (x *Index) Superclass(c *Class) *Class {
	if c.Superclass == "" {
		return nil
	}
	return x.Class(c.Superclass)
}

func (x *Index) KnownSubtypes(name string) []*Class {
	self := x.interner.Lookup(KindClass, name)
	seen := map[DeclID]bool{}
	queue := []string{name}
	var ids []DeclID
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, id := range x.children[n] {
			if seen[id] || id == self {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
			queue = append(queue, x.decls[id-1].Name())
		}
	}
	slices.Sort(ids)
	out := make([]*Class, len(ids))
	for i, id := range ids {
		out[i] = x.decls[id-1].(*Class)
	}
	return out
}

func (x *Index) AnnotatedWith(annotation string) []Declaration {
	ids := x.byAnn[annotation]
	out := make([]Declaration, len(ids))
	for i, id := range ids {
		out[i] = x.decls[id-1]
	}
	return out
}

func (x *Index) NativeAnnotations(id DeclID) []Annotation {
	anns := x.native[id]
	if anns == nil {
		return []Annotation{}
	}
	return anns
}

func (x *Index) Members(c *Class) ([]*Method, []*Field) {
	methods := make([]*Method, len(c.methods))
	for i, id := range c.methods {
		methods[i] = x.decls[id-1].(*Method)
	}
	fields := make([]*Field, len(c.fields))
	for i, id := range c.fields {
		fields[i] = x.decls[id-1].(*Field)
	}
	return methods, fields
}

// Enclosing returns the class c is nested in, or nil for top-level classes.
func (x *Index) Enclosing(c *Class) *Class {
	if c.enclosing == 0 {
		return nil
	}
	return x.decls[c.enclosing-1].(*Class)
}

// Owner returns the class declaring m or f.
func (x *Index) Owner(d Declaration) *Class {
	var id DeclID
	switch d := d.(type) {
	case *Method:
		id = d.owner
	case *Field:
		id = d.owner
	default:
		return nil
	}
	return x.decls[id-1].(*Class)
}

// ClassDecl describes a class to add to an IndexBuilder.
type ClassDecl struct {
	Name string
	// Package defaults to the enclosing class's package, or to everything
	// before the last dot of Name.
	Package     string
	Kind        ClassKind
	Superclass  string
	Interfaces  []string
	Modifiers   []string
	Enclosing   string
	Library     bool
	Annotations []Annotation
}

// MethodDecl describes a method or constructor. A Name of ConstructorName
// declares a constructor.
type MethodDecl struct {
	Owner       string
	Name        string
	ReturnType  string
	Params      []string
	Modifiers   []string
	Annotations []Annotation
}

// FieldDecl describes a field.
type FieldDecl struct {
	Owner       string
	Name        string
	Type        string
	Modifiers   []string
	Annotations []Annotation
}

// IndexBuilder assembles an Index. Owners must be added before members, and
// enclosing classes before nested ones.
type IndexBuilder struct {
	idx *Index
}

func NewIndexBuilder() *IndexBuilder {
	return &IndexBuilder{idx: &Index{
		interner: NewInterner(),
		native:   make(map[DeclID][]Annotation),
		byAnn:    make(map[string][]DeclID),
		children: make(map[string][]DeclID),
		byKind:   make(map[Kind][]DeclID),
	}}
}

func (b *IndexBuilder) intern(kind Kind, name string) (DeclID, error) {
	if name == "" {
		return 0, fmt.Errorf("annex: index: empty %s name", kind)
	}
	id, fresh := b.idx.interner.Intern(kind, name)
	if !fresh {
		return 0, fmt.Errorf("annex: index: duplicate %s %q", kind, name)
	}
	return id, nil
}

func (b *IndexBuilder) add(d Declaration, anns []Annotation) {
	x := b.idx
	x.decls = append(x.decls, d)
	x.byKind[d.Kind()] = append(x.byKind[d.Kind()], d.ID())
	if len(anns) > 0 {
		x.native[d.ID()] = slices.Clone(anns)
		seen := map[string]bool{}
		for _, a := range anns {
			if !seen[a.Name] {
				seen[a.Name] = true
				x.byAnn[a.Name] = append(x.byAnn[a.Name], d.ID())
			}
		}
	}
}

// AddPackage adds a package declaration.
func (b *IndexBuilder) AddPackage(name string, anns ...Annotation) (*Package, error) {
	id, err := b.intern(KindPackage, name)
	if err != nil {
		return nil, err
	}
	p := &Package{id: id, name: name}
	b.add(p, anns)
	return p, nil
}

// AddClass adds a class declaration.
func (b *IndexBuilder) AddClass(d ClassDecl) (*Class, error) {
	var enclosing *Class
	if d.Enclosing != "" {
		enclosing = b.idx.Class(d.Enclosing)
		if enclosing == nil {
			return nil, fmt.Errorf("annex: index: class %q: enclosing class %q not indexed", d.Name, d.Enclosing)
		}
	}
	id, err := b.intern(KindClass, d.Name)
	if err != nil {
		return nil, err
	}
	pkg := d.Package
	if pkg == "" {
		if enclosing != nil {
			pkg = enclosing.Package
		} else if i := strings.LastIndexByte(d.Name, '.'); i >= 0 {
			pkg = d.Name[:i]
		}
	}
	c := &Class{
		id:         id,
		name:       d.Name,
		SimpleName: simpleName(d.Name),
		Package:    pkg,
		ClassKind:  d.Kind,
		Superclass: d.Superclass,
		Interfaces: slices.Clone(d.Interfaces),
		Modifiers:  slices.Clone(d.Modifiers),
		Archived:   !d.Library,
	}
	if enclosing != nil {
		c.enclosing = enclosing.id
	}
	b.add(c, d.Annotations)
	if c.Superclass != "" {
		b.idx.children[c.Superclass] = append(b.idx.children[c.Superclass], id)
	}
	for _, iface := range c.Interfaces {
		b.idx.children[iface] = append(b.idx.children[iface], id)
	}
	return c, nil
}

// AddMethod adds a method or constructor to an already added class.
func (b *IndexBuilder) AddMethod(d MethodDecl) (*Method, error) {
	owner := b.idx.Class(d.Owner)
	if owner == nil {
		return nil, fmt.Errorf("annex: index: method %q: owner %q not indexed", d.Name, d.Owner)
	}
	id, err := b.intern(KindMethod, MethodName(d.Owner, d.Name, d.Params...))
	if err != nil {
		return nil, err
	}
	m := &Method{
		id:          id,
		name:        MethodName(d.Owner, d.Name, d.Params...),
		owner:       owner.id,
		MethodName:  d.Name,
		Constructor: d.Name == ConstructorName,
		ReturnType:  d.ReturnType,
		Params:      slices.Clone(d.Params),
		Modifiers:   slices.Clone(d.Modifiers),
	}
	if m.Constructor {
		m.ReturnType = "void"
	}
	b.add(m, d.Annotations)
	owner.methods = append(owner.methods, id)
	return m, nil
}

// AddField adds a field to an already added class.
func (b *IndexBuilder) AddField(d FieldDecl) (*Field, error) {
	owner := b.idx.Class(d.Owner)
	if owner == nil {
		return nil, fmt.Errorf("annex: index: field %q: owner %q not indexed", d.Name, d.Owner)
	}
	id, err := b.intern(KindField, FieldName(d.Owner, d.Name))
	if err != nil {
		return nil, err
	}
	f := &Field{
		id:        id,
		name:      FieldName(d.Owner, d.Name),
		owner:     owner.id,
		FieldName: d.Name,
		Type:      d.Type,
		Modifiers: slices.Clone(d.Modifiers),
	}
	b.add(f, d.Annotations)
	owner.fields = append(owner.fields, id)
	return f, nil
}

// Build returns the assembled Index. The builder must not be used afterwards.
func (b *IndexBuilder) Build() *Index {
	idx := b.idx
	b.idx = nil
	return idx
}

// LoadIndex builds an Index snapshot from the store. Declarations are
// interned in store order, so IDs and query results are deterministic for a
// given database.
func LoadIndex(s *store.Store) (*Index, error) {
	decls, err := s.Declarations()
	if err != nil {
		return nil, fmt.Errorf("annex: load index: %w", err)
	}
	supers, err := s.Supertypes()
	if err != nil {
		return nil, fmt.Errorf("annex: load index: %w", err)
	}
	anns, err := s.Annotations()
	if err != nil {
		return nil, fmt.Errorf("annex: load index: %w", err)
	}

	superclass := make(map[int64]string)
	interfaces := make(map[int64][]string)
	for _, st := range supers {
		switch st.Relation {
		case store.RelationExtends:
			superclass[st.ClassID] = st.Name
		case store.RelationImplements:
			interfaces[st.ClassID] = append(interfaces[st.ClassID], st.Name)
		}
	}
	annsByTarget := make(map[int64][]Annotation)
	for _, a := range anns {
		annsByTarget[a.TargetID] = append(annsByTarget[a.TargetID], Annotation{Name: a.Name, Attributes: a.Attributes})
	}
	nameByID := make(map[int64]string, len(decls))
	for _, d := range decls {
		nameByID[d.ID] = d.Name
	}
	ownerName := func(d *store.Declaration) string {
		if d.OwnerID == nil {
			return ""
		}
		return nameByID[*d.OwnerID]
	}

	// Classes first, enclosing before nested, then members.
	b := NewIndexBuilder()
	pending := []*store.Declaration{}
	for _, d := range decls {
		switch d.Kind {
		case store.KindPackage:
			if _, err := b.AddPackage(d.Name, annsByTarget[d.ID]...); err != nil {
				return nil, err
			}
		case store.KindClass:
			pending = append(pending, d)
		}
	}
	for len(pending) > 0 {
		var next []*store.Declaration
		for _, d := range pending {
			enc := ownerName(d)
			if enc != "" && b.idx.Class(enc) == nil {
				next = append(next, d)
				continue
			}
			_, err := b.AddClass(ClassDecl{
				Name:        d.Name,
				Package:     d.Package,
				Kind:        parseClassKind(d.ClassKind),
				Superclass:  superclass[d.ID],
				Interfaces:  interfaces[d.ID],
				Modifiers:   d.Modifiers,
				Enclosing:   enc,
				Library:     !d.Archived,
				Annotations: annsByTarget[d.ID],
			})
			if err != nil {
				return nil, err
			}
		}
		if len(next) == len(pending) {
			return nil, fmt.Errorf("annex: load index: class %q: enclosing class missing", next[0].Name)
		}
		pending = next
	}
	for _, d := range decls {
		switch d.Kind {
		case store.KindMethod:
			_, err = b.AddMethod(MethodDecl{
				Owner:       ownerName(d),
				Name:        d.SimpleName,
				ReturnType:  d.TypeExpr,
				Params:      d.Params,
				Modifiers:   d.Modifiers,
				Annotations: annsByTarget[d.ID],
			})
		case store.KindField:
			_, err = b.AddField(FieldDecl{
				Owner:       ownerName(d),
				Name:        d.SimpleName,
				Type:        d.TypeExpr,
				Modifiers:   d.Modifiers,
				Annotations: annsByTarget[d.ID],
			})
		}
		if err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

func parseClassKind(s string) ClassKind {
	switch s {
	case store.ClassKindInterface:
		return ClassInterface
	case store.ClassKindEnum:
		return ClassEnum
	case store.ClassKindAnnotation:
		return ClassAnnotation
	case store.ClassKindRecord:
		return ClassRecord
	}
	return ClassPlain
}

func (k ClassKind) String() string {
	switch k {
	case ClassInterface:
		return store.ClassKindInterface
	case ClassEnum:
		return store.ClassKindEnum
	case ClassAnnotation:
		return store.ClassKindAnnotation
	case ClassRecord:
		return store.ClassKindRecord
	}
	return store.ClassKindClass
}
