package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/jward/annex/internal/logging"
	"github.com/jward/annex/internal/store"
)

// Element is one declaration handed to a script.
type Element struct {
	Name string
	Kind string
}

// Annotation is an annotation instance as scripts read and write it.
type Annotation struct {
	Name       string
	Attributes []store.Attribute
}

// Host is the build a script acts on. Targets are qualified declaration
// names; kinds disambiguate a package and a class of the same name.
type Host interface {
	Annotations(kind, target string) ([]Annotation, error)
	AddAnnotation(kind, target string, a Annotation) error
	RemoveAnnotation(kind, target, name string) error
	RemoveAllAnnotations(kind, target string) error
	Report(severity, message, kind, target string)
}

// Severities accepted by Host.Report.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Invocation is the input of one script extension call.
type Invocation struct {
	Phase    string
	Elements []Element
	Host     Host
}

// RunExtension runs the script at scriptPath for one invocation.
func (r *Runtime) RunExtension(ctx context.Context, scriptPath string, inv Invocation) error {
	return r.RunScript(ctx, scriptPath, extensionGlobals(inv))
}

// RunExtensionSource is RunExtension for inline source.
func (r *Runtime) RunExtensionSource(ctx context.Context, source string, inv Invocation) error {
	return r.RunSource(ctx, source, extensionGlobals(inv))
}

// extensionGlobals exposes the invocation to the script:
//
//	elements                           list of {name, kind} maps
//	phase                              phase name
//	annotations(name)                  list of {name, attributes} maps
//	has_annotation(name, ann)          bool
//	add_annotation(name, ann, attrs?)  stage an addition
//	remove_annotation(name, ann)       stage removal of every ann instance
//	remove_all_annotations(name)       stage removal of everything
//	info/warn/error(msg, name?)        report a diagnostic
//
// Element names resolve to the kinds listed in elements; names not listed
// there are looked up as classes.
func extensionGlobals(inv Invocation) map[string]any {
	kinds := make(map[string]string, len(inv.Elements))
	elems := make([]object.Object, len(inv.Elements))
	for i, e := range inv.Elements {
		kinds[e.Name] = e.Kind
		elems[i] = object.NewMap(map[string]object.Object{
			"name": object.NewString(e.Name),
			"kind": object.NewString(e.Kind),
		})
	}
	kindOf := func(name string) string {
		if k, ok := kinds[name]; ok {
			return k
		}
		return store.KindClass
	}
	return map[string]any{
		"elements":               object.NewList(elems),
		"phase":                  object.NewString(inv.Phase),
		"annotations":            makeAnnotationsFn(inv.Host, kindOf),
		"has_annotation":         makeHasAnnotationFn(inv.Host, kindOf),
		"add_annotation":         makeAddAnnotationFn(inv.Host, kindOf),
		"remove_annotation":      makeRemoveAnnotationFn(inv.Host, kindOf),
		"remove_all_annotations": makeRemoveAllAnnotationsFn(inv.Host, kindOf),
		"info":                   makeReportFn("info", SeverityInfo, inv.Host, kindOf),
		"warn":                   makeReportFn("warn", SeverityWarning, inv.Host, kindOf),
		"error":                  makeReportFn("error", SeverityError, inv.Host, kindOf),
	}
}

// makeAnnotationsFn creates the "annotations" host function.
//
// annotations(name) → [{name, attributes}]
func makeAnnotationsFn(h Host, kindOf func(string) string) *object.Builtin {
	return object.NewBuiltin("annotations", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("annotations", 1, len(args))
		}
		target, err := toString(args[0])
		if err != nil {
			return object.Errorf("annotations: %v", err)
		}
		anns, err := h.Annotations(kindOf(target), target)
		if err != nil {
			return object.Errorf("annotations: %v", err)
		}
		items := make([]object.Object, len(anns))
		for i, a := range anns {
			attrs := make(map[string]object.Object, len(a.Attributes))
			for _, attr := range a.Attributes {
				attrs[attr.Name] = goToObject(attr.Value)
			}
			items[i] = object.NewMap(map[string]object.Object{
				"name":       object.NewString(a.Name),
				"attributes": object.NewMap(attrs),
			})
		}
		return object.NewList(items)
	})
}

// makeHasAnnotationFn creates "has_annotation".
//
// has_annotation(name, ann) → bool
func makeHasAnnotationFn(h Host, kindOf func(string) string) *object.Builtin {
	return object.NewBuiltin("has_annotation", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("has_annotation", 2, len(args))
		}
		target, ann, err := twoStrings(args)
		if err != nil {
			return object.Errorf("has_annotation: %v", err)
		}
		anns, err := h.Annotations(kindOf(target), target)
		if err != nil {
			return object.Errorf("has_annotation: %v", err)
		}
		for _, a := range anns {
			if a.Name == ann {
				return object.True
			}
		}
		return object.False
	})
}

// makeAddAnnotationFn creates "add_annotation". Attribute maps are added in
// key order since Risor maps are unordered.
//
// add_annotation(name, ann, attrs?)
func makeAddAnnotationFn(h Host, kindOf func(string) string) *object.Builtin {
	return object.NewBuiltin("add_annotation", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 2 || len(args) > 3 {
			return object.Errorf("add_annotation: expected 2 or 3 arguments, got %d", len(args))
		}
		target, name, err := twoStrings(args[:2])
		if err != nil {
			return object.Errorf("add_annotation: %v", err)
		}
		a := Annotation{Name: name}
		if len(args) == 3 {
			m, err := extractMap(args[2])
			if err != nil {
				return object.Errorf("add_annotation: %v", err)
			}
			for _, key := range sortedKeys(m) {
				a.Attributes = append(a.Attributes, store.Attribute{
					Name:  key,
					Value: store.NormalizeValue(m[key].Interface()),
				})
			}
		}
		if err := h.AddAnnotation(kindOf(target), target, a); err != nil {
			return object.Errorf("add_annotation: %v", err)
		}
		return object.Nil
	})
}

// remove_annotation(name, ann)
func makeRemoveAnnotationFn(h Host, kindOf func(string) string) *object.Builtin {
	return object.NewBuiltin("remove_annotation", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("remove_annotation", 2, len(args))
		}
		target, ann, err := twoStrings(args)
		if err != nil {
			return object.Errorf("remove_annotation: %v", err)
		}
		if err := h.RemoveAnnotation(kindOf(target), target, ann); err != nil {
			return object.Errorf("remove_annotation: %v", err)
		}
		return object.Nil
	})
}

// remove_all_annotations(name)
func makeRemoveAllAnnotationsFn(h Host, kindOf func(string) string) *object.Builtin {
	return object.NewBuiltin("remove_all_annotations", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("remove_all_annotations", 1, len(args))
		}
		target, err := toString(args[0])
		if err != nil {
			return object.Errorf("remove_all_annotations: %v", err)
		}
		if err := h.RemoveAllAnnotations(kindOf(target), target); err != nil {
			return object.Errorf("remove_all_annotations: %v", err)
		}
		return object.Nil
	})
}

// info(msg, name?), warn(msg, name?), error(msg, name?)
func makeReportFn(fn, severity string, h Host, kindOf func(string) string) *object.Builtin {
	return object.NewBuiltin(fn, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.Errorf("%s: expected 1 or 2 arguments, got %d", fn, len(args))
		}
		msg, err := toString(args[0])
		if err != nil {
			return object.Errorf("%s: %v", fn, err)
		}
		var kind, target string
		if len(args) == 2 {
			if target, err = toString(args[1]); err != nil {
				return object.Errorf("%s: %v", fn, err)
			}
			kind = kindOf(target)
		}
		h.Report(severity, msg, kind, target)
		return object.Nil
	})
}

// logObject provides log.info/warn/error/debug methods for Risor scripts.
type logObject struct {
	prefix string
}

func (l *logObject) Debug(msg string) {
	logging.Debug(msg, "source", l.prefix)
}

func (l *logObject) Info(msg string) {
	logging.Info(msg, "source", l.prefix)
}

func (l *logObject) Warn(msg string) {
	logging.Warn(msg, "source", l.prefix)
}

func (l *logObject) Error(msg string) {
	logging.Error(msg, "source", l.prefix)
}

func twoStrings(args []object.Object) (string, string, error) {
	a, err := toString(args[0])
	if err != nil {
		return "", "", err
	}
	b, err := toString(args[1])
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}

// goToObject converts attribute values to Risor objects.
func goToObject(v any) object.Object {
	switch val := v.(type) {
	case nil:
		return object.Nil
	case string:
		return object.NewString(val)
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case bool:
		return object.NewBool(val)
	case []any:
		items := make([]object.Object, len(val))
		for i, e := range val {
			items[i] = goToObject(e)
		}
		return object.NewList(items)
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}
