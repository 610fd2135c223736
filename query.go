package annex

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

type typePredKind uint8

const (
	predExactly typePredKind = iota + 1
	predSubtypeOf
	predSupertypeOf
)

func (k typePredKind) String() string {
	switch k {
	case predExactly:
		return "exactly"
	case predSubtypeOf:
		return "subtypeOf"
	default:
		return "supertypeOf"
	}
}

type typePred struct {
	kind typePredKind
	name string
}

// rootClass ends every superclass chain. It is usually not indexed, so
// reaching it is not reported as an unresolved ancestor.
const rootClass = "java.lang.Object"

// ClassQuery selects classes of the archive. Predicates of the same category
// are alternatives; the type category and the annotation category must both
// match when both are used. A query with no predicates selects every class.
//
// Builder methods modify and return the receiver. Evaluation is lazy and
// happens again on every Stream, List or Configure call, so results always
// reflect the current overlay.
type ClassQuery struct {
	b           *Build
	types       []typePred
	annotations []string
	config      bool
}

// Exactly adds the named classes.
func (q *ClassQuery) Exactly(names ...string) *ClassQuery {
	for _, n := range names {
		q.types = append(q.types, typePred{predExactly, n})
	}
	return q
}

// SubtypeOf adds every class extending or implementing the named types,
// transitively. The named types themselves are not included.
func (q *ClassQuery) SubtypeOf(names ...string) *ClassQuery {
	for _, n := range names {
		q.types = append(q.types, typePred{predSubtypeOf, n})
	}
	return q
}

// SupertypeOf adds each named class followed by its superclass chain. The
// walk stops at the first ancestor that is not indexed and at a class seen
// earlier in the same chain.
func (q *ClassQuery) SupertypeOf(names ...string) *ClassQuery {
	for _, n := range names {
		q.types = append(q.types, typePred{predSupertypeOf, n})
	}
	return q
}

// AnnotatedWith adds classes effectively carrying any of the annotations.
func (q *ClassQuery) AnnotatedWith(names ...string) *ClassQuery {
	q.annotations = append(q.annotations, names...)
	return q
}

// Constraints is the number of predicates added so far.
func (q *ClassQuery) Constraints() int {
	return len(q.types) + len(q.annotations)
}

func (q *ClassQuery) String() string {
	parts := make([]string, 0, q.Constraints())
	for _, p := range q.types {
		parts = append(parts, p.kind.String()+"("+p.name+")")
	}
	for _, a := range q.annotations {
		parts = append(parts, "annotatedWith("+a+")")
	}
	if len(parts) == 0 {
		return "classes()"
	}
	return "classes()." + strings.Join(parts, ".")
}

// typeSeed expands the type predicates in call order, deduplicated by first
// appearance. Unresolvable names are reported as warnings.
func (q *ClassQuery) typeSeed() []*Class {
	var out []*Class
	seen := map[DeclID]bool{}
	push := func(c *Class) {
		if !seen[c.ID()] {
			seen[c.ID()] = true
			out = append(out, c)
		}
	}
	for _, p := range q.types {
		switch p.kind {
		case predExactly:
			c := q.b.classByName(p.name)
			if c == nil {
				q.b.queryWarning(fmt.Sprintf("exactly(%s): class not found in index", p.name))
				continue
			}
			push(c)
		case predSubtypeOf:
			subs := q.b.index.KnownSubtypes(p.name)
			if len(subs) == 0 && q.b.classByName(p.name) == nil {
				q.b.queryWarning(fmt.Sprintf("subtypeOf(%s): type not found in index", p.name))
			}
			for _, c := range subs {
				push(c)
			}
		case predSupertypeOf:
			c := q.b.classByName(p.name)
			if c == nil {
				q.b.queryWarning(fmt.Sprintf("supertypeOf(%s): class not found in index", p.name))
				continue
			}
			walked := map[DeclID]bool{}
			for c != nil {
				if walked[c.ID()] {
					q.b.queryWarning(fmt.Sprintf("supertypeOf(%s): cyclic superclass chain at %s, walk stopped", p.name, c.Name()))
					break
				}
				walked[c.ID()] = true
				push(c)
				next := c.Superclass
				if next == "" {
					break
				}
				c = q.b.classByName(next)
				if c == nil && next != rootClass {
					q.b.queryWarning(fmt.Sprintf("supertypeOf(%s): ancestor %s not found in index, walk stopped", p.name, next))
				}
			}
		}
	}
	return out
}

// annotated reports whether c carries any of the query's annotations.
func (q *ClassQuery) annotated(c *Class) bool {
	for _, a := range q.annotations {
		if q.b.overlay.Has(c, a) {
			return true
		}
	}
	return false
}

// classes evaluates the query. Type-seeded results keep seed order; all
// other results are in index order.
func (q *ClassQuery) classes() []*Class {
	var out []*Class
	switch {
	case len(q.types) > 0:
		for _, c := range q.typeSeed() {
			if !q.b.inArchive(c) {
				continue
			}
			if len(q.annotations) > 0 && !q.annotated(c) {
				continue
			}
			out = append(out, c)
		}
	case len(q.annotations) > 0:
		seen := map[DeclID]bool{}
		var ids []DeclID
		for _, a := range q.annotations {
			for _, d := range q.b.overlay.AnnotatedWith(KindClass, a) {
				if !seen[d.ID()] {
					seen[d.ID()] = true
					ids = append(ids, d.ID())
				}
			}
		}
		slices.Sort(ids)
		for _, id := range ids {
			c := q.b.index.Declaration(id).(*Class)
			if q.b.inArchive(c) {
				out = append(out, c)
			}
		}
	default:
		out = q.b.archiveClasses()
	}
	if out == nil {
		out = []*Class{}
	}
	return out
}

// Stream yields a read-only view per matching class. The matching set is
// evaluated once when iteration starts; overlay writes made while iterating
// do not add or drop elements until the next Stream call.
func (q *ClassQuery) Stream() iter.Seq[*ClassInfo] {
	return func(yield func(*ClassInfo) bool) {
		for _, c := range q.classes() {
			if !yield(newClassInfo(q.b, c)) {
				return
			}
		}
	}
}

// List materializes Stream.
func (q *ClassQuery) List() []*ClassInfo {
	out := slices.Collect(q.Stream())
	if out == nil {
		out = []*ClassInfo{}
	}
	return out
}

// Configure yields a config view per matching class. Only queries obtained
// from an ArchiveConfig can configure; other queries report an error
// diagnostic and yield nothing. Like Stream, the matching set is fixed when
// iteration starts.
func (q *ClassQuery) Configure() iter.Seq[*ClassConfig] {
	return func(yield func(*ClassConfig) bool) {
		if !q.b.canConfigure(q.config, q.String()) {
			return
		}
		for _, c := range q.classes() {
			if !yield(newClassConfig(q.b, c)) {
				return
			}
		}
	}
}

// ConfigureList materializes Configure.
func (q *ClassQuery) ConfigureList() []*ClassConfig {
	out := slices.Collect(q.Configure())
	if out == nil {
		out = []*ClassConfig{}
	}
	return out
}
