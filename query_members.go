package annex

import (
	"iter"
	"slices"
	"strings"
)

// memberScope resolves the classes whose members a method or field query
// enumerates: the union of its DeclaredOn queries, or the whole archive.
func memberScope(b *Build, on []*ClassQuery) []*Class {
	if len(on) == 0 {
		return b.archiveClasses()
	}
	var out []*Class
	seen := map[DeclID]bool{}
	for _, q := range on {
		for _, c := range q.classes() {
			if !seen[c.ID()] {
				seen[c.ID()] = true
				out = append(out, c)
			}
		}
	}
	return out
}

func anyAnnotation(b *Build, d Declaration, names []string) bool {
	for _, n := range names {
		if b.overlay.Has(d, n) {
			return true
		}
	}
	return false
}

func anyTypeMatches(types []Type, expr string) bool {
	for _, t := range types {
		if t.Matches(expr) {
			return true
		}
	}
	return false
}

// MethodQuery selects either methods or constructors declared on the classes
// of its DeclaredOn queries (every archive class when none is given).
// Filters of different categories must all match; values within a category
// are alternatives.
type MethodQuery struct {
	b            *Build
	constructors bool
	on           []*ClassQuery
	returnTypes  []Type
	annotations  []string
	config       bool
}

// DeclaredOn restricts the query to members of the classes q selects.
func (q *MethodQuery) DeclaredOn(classes *ClassQuery) *MethodQuery {
	q.on = append(q.on, classes)
	return q
}

// WithReturnType keeps methods returning any of types.
func (q *MethodQuery) WithReturnType(types ...Type) *MethodQuery {
	q.returnTypes = append(q.returnTypes, types...)
	return q
}

// AnnotatedWith keeps methods effectively carrying any of the annotations.
func (q *MethodQuery) AnnotatedWith(names ...string) *MethodQuery {
	q.annotations = append(q.annotations, names...)
	return q
}

// Constraints is the number of predicates added so far, DeclaredOn included.
func (q *MethodQuery) Constraints() int {
	return len(q.on) + len(q.returnTypes) + len(q.annotations)
}

func (q *MethodQuery) String() string {
	var b strings.Builder
	if q.constructors {
		b.WriteString("constructors()")
	} else {
		b.WriteString("methods()")
	}
	for _, c := range q.on {
		b.WriteString(".declaredOn(" + c.String() + ")")
	}
	for _, t := range q.returnTypes {
		b.WriteString(".withReturnType(" + t.String() + ")")
	}
	for _, a := range q.annotations {
		b.WriteString(".annotatedWith(" + a + ")")
	}
	return b.String()
}

func (q *MethodQuery) methods() []*Method {
	out := []*Method{}
	for _, c := range memberScope(q.b, q.on) {
		ms, _ := q.b.index.Members(c)
		for _, m := range ms {
			if m.Constructor != q.constructors {
				continue
			}
			if len(q.returnTypes) > 0 && !anyTypeMatches(q.returnTypes, m.ReturnType) {
				continue
			}
			if len(q.annotations) > 0 && !anyAnnotation(q.b, m, q.annotations) {
				continue
			}
			out = append(out, m)
		}
	}
	return out
}

// Stream yields a read-only view per matching method. The matching set is
// fixed when iteration starts.
func (q *MethodQuery) Stream() iter.Seq[*MethodInfo] {
	return func(yield func(*MethodInfo) bool) {
		for _, m := range q.methods() {
			if !yield(newMethodInfo(q.b, m)) {
				return
			}
		}
	}
}

func (q *MethodQuery) List() []*MethodInfo {
	out := slices.Collect(q.Stream())
	if out == nil {
		out = []*MethodInfo{}
	}
	return out
}

// Configure yields config views; see ClassQuery.Configure.
func (q *MethodQuery) Configure() iter.Seq[*MethodConfig] {
	return func(yield func(*MethodConfig) bool) {
		if !q.b.canConfigure(q.config, q.String()) {
			return
		}
		for _, m := range q.methods() {
			if !yield(newMethodConfig(q.b, m)) {
				return
			}
		}
	}
}

func (q *MethodQuery) ConfigureList() []*MethodConfig {
	out := slices.Collect(q.Configure())
	if out == nil {
		out = []*MethodConfig{}
	}
	return out
}

// FieldQuery selects fields declared on the classes of its DeclaredOn
// queries (every archive class when none is given).
type FieldQuery struct {
	b           *Build
	on          []*ClassQuery
	types       []Type
	annotations []string
	config      bool
}

func (q *FieldQuery) DeclaredOn(classes *ClassQuery) *FieldQuery {
	q.on = append(q.on, classes)
	return q
}

// OfType keeps fields of any of types.
func (q *FieldQuery) OfType(types ...Type) *FieldQuery {
	q.types = append(q.types, types...)
	return q
}

func (q *FieldQuery) AnnotatedWith(names ...string) *FieldQuery {
	q.annotations = append(q.annotations, names...)
	return q
}

func (q *FieldQuery) Constraints() int {
	return len(q.on) + len(q.types) + len(q.annotations)
}

func (q *FieldQuery) String() string {
	var b strings.Builder
	b.WriteString("fields()")
	for _, c := range q.on {
		b.WriteString(".declaredOn(" + c.String() + ")")
	}
	for _, t := range q.types {
		b.WriteString(".ofType(" + t.String() + ")")
	}
	for _, a := range q.annotations {
		b.WriteString(".annotatedWith(" + a + ")")
	}
	return b.String()
}

func (q *FieldQuery) fields() []*Field {
	out := []*Field{}
	for _, c := range memberScope(q.b, q.on) {
		_, fs := q.b.index.Members(c)
		for _, f := range fs {
			if len(q.types) > 0 && !anyTypeMatches(q.types, f.Type) {
				continue
			}
			if len(q.annotations) > 0 && !anyAnnotation(q.b, f, q.annotations) {
				continue
			}
			out = append(out, f)
		}
	}
	return out
}

// Stream yields a read-only view per matching field. The matching set is
// fixed when iteration starts.
func (q *FieldQuery) Stream() iter.Seq[*FieldInfo] {
	return func(yield func(*FieldInfo) bool) {
		for _, f := range q.fields() {
			if !yield(newFieldInfo(q.b, f)) {
				return
			}
		}
	}
}

func (q *FieldQuery) List() []*FieldInfo {
	out := slices.Collect(q.Stream())
	if out == nil {
		out = []*FieldInfo{}
	}
	return out
}

func (q *FieldQuery) Configure() iter.Seq[*FieldConfig] {
	return func(yield func(*FieldConfig) bool) {
		if !q.b.canConfigure(q.config, q.String()) {
			return
		}
		for _, f := range q.fields() {
			if !yield(newFieldConfig(q.b, f)) {
				return
			}
		}
	}
}

func (q *FieldQuery) ConfigureList() []*FieldConfig {
	out := slices.Collect(q.Configure())
	if out == nil {
		out = []*FieldConfig{}
	}
	return out
}
