package annex

import (
	"fmt"
	"strings"

	"github.com/jward/annex/internal/store"
)

// Annotation is an immutable annotation instance: a type name plus an
// ordered attribute list. Construct with NewAnnotation so attribute values
// are normalized and the attribute slice is owned by the instance.
type Annotation struct {
	Name       string      `json:"name" msgpack:"name"`
	Attributes []Attribute `json:"attributes,omitempty" msgpack:"attributes,omitempty"`
}

// NewAnnotation builds an annotation instance of the named type.
func NewAnnotation(name string, attrs ...Attribute) Annotation {
	a := Annotation{Name: name}
	if len(attrs) > 0 {
		a.Attributes = make([]Attribute, len(attrs))
		for i, attr := range attrs {
			a.Attributes[i] = Attr(attr.Name, attr.Value)
		}
	}
	return a
}

// Attr builds an attribute, normalizing Go integer and float widths to
// int64 and float64.
func Attr(name string, value any) Attribute {
	return Attribute{Name: name, Value: store.NormalizeValue(value)}
}

// HasAttribute reports whether the annotation declares the named member.
func (a Annotation) HasAttribute(name string) bool {
	_, ok := a.Attribute(name)
	return ok
}

// Attribute returns the value of the named member.
func (a Annotation) Attribute(name string) (any, bool) {
	for _, attr := range a.Attributes {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return nil, false
}

// Value returns the "value" member.
func (a Annotation) Value() (any, bool) {
	return a.Attribute("value")
}

// SimpleName is the unqualified annotation type name.
func (a Annotation) SimpleName() string {
	return simpleName(a.Name)
}

func (a Annotation) String() string {
	if len(a.Attributes) == 0 {
		return "@" + a.Name
	}
	parts := make([]string, len(a.Attributes))
	for i, attr := range a.Attributes {
		parts[i] = fmt.Sprintf("%s=%v", attr.Name, attr.Value)
	}
	return "@" + a.Name + "(" + strings.Join(parts, ", ") + ")"
}

// AnnotationPredicate selects annotation instances, e.g. for removal.
type AnnotationPredicate func(Annotation) bool

// AnnotationNamed matches instances of any of the given annotation types.
func AnnotationNamed(names ...string) AnnotationPredicate {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(a Annotation) bool { return set[a.Name] }
}

// AnyAnnotation matches every instance.
func AnyAnnotation(Annotation) bool { return true }

func hasAnnotationNamed(anns []Annotation, name string) bool {
	for _, a := range anns {
		if a.Name == name {
			return true
		}
	}
	return false
}

func firstAnnotationNamed(anns []Annotation, name string) (Annotation, bool) {
	for _, a := range anns {
		if a.Name == name {
			return a, true
		}
	}
	return Annotation{}, false
}

func annotationsNamed(anns []Annotation, name string) []Annotation {
	out := []Annotation{}
	for _, a := range anns {
		if a.Name == name {
			out = append(out, a)
		}
	}
	return out
}
