package annex

import (
	"context"
	"fmt"

	"github.com/jward/annex/internal/config"
	"github.com/jward/annex/internal/runtime"
)

// ScriptCallback turns a script extension descriptor into a callback that
// runs the script once per invocation. Scripts with a target get the matched
// declarations as elements; Enhancement scripts may write annotations.
func ScriptCallback(rt *runtime.Runtime, ext config.ExtensionConfig) (*Callback, error) {
	ph, err := ParsePhase(ext.Phase)
	if err != nil {
		return nil, fmt.Errorf("annex: script %s: %w", ext.Name, err)
	}

	params := []Param{{kind: paramMessages}}
	if ext.Target != "" {
		p, err := scriptParam(ph, ext)
		if err != nil {
			return nil, err
		}
		params = append([]Param{p}, params...)
	}

	name := ext.Name
	if name == "" {
		name = ext.Script
	}
	cb := newCallback(ph, name, params, func(ctx context.Context, f *frame) error {
		elems := f.elems
		if f.elem != nil {
			elems = []Declaration{f.elem}
		}
		inv := runtime.Invocation{
			Phase:    ph.String(),
			Elements: make([]runtime.Element, len(elems)),
			Host:     &scriptHost{b: f.b, phase: ph, messages: f.messages},
		}
		for i, d := range elems {
			inv.Elements[i] = runtime.Element{Name: d.Name(), Kind: d.Kind().String()}
		}
		return rt.RunExtension(ctx, ext.Script, inv)
	})
	if ext.Priority != nil {
		cb.WithPriority(*ext.Priority)
	}
	return cb, nil
}

func scriptParam(ph Phase, ext config.ExtensionConfig) (Param, error) {
	mode, err := ParseMode(ext.Mode)
	if err != nil {
		return Param{}, fmt.Errorf("annex: script %s: %w", ext.Name, err)
	}
	if mode == ModeOne {
		return Param{}, fmt.Errorf("annex: script %s: mode %q is not supported for scripts", ext.Name, ext.Mode)
	}
	p := Param{
		mode: mode,
		constraint: Constraint{
			Exact:         ext.Exact,
			SubtypesOf:    ext.SubtypesOf,
			AnnotatedWith: ext.AnnotatedWith,
		},
	}
	writes := ph == PhaseEnhancement
	switch ext.Target {
	case "classes":
		p.kind = pick(writes, paramClassConfig, paramClassInfo)
	case "methods", "constructors":
		p.kind = pick(writes, paramMethodConfig, paramMethodInfo)
		p.constructors = ext.Target == "constructors"
	case "fields":
		p.kind = pick(writes, paramFieldConfig, paramFieldInfo)
	default:
		return Param{}, fmt.Errorf("annex: script %s: unknown target %q", ext.Name, ext.Target)
	}
	return p, nil
}

func pick(cond bool, a, b paramKind) paramKind {
	if cond {
		return a
	}
	return b
}

// RegisterScripts loads every configured extension from the Engine's
// scripts location and adds it to the registry.
func (e *Engine) RegisterScripts(exts ...config.ExtensionConfig) error {
	var opts []runtime.RuntimeOption
	if e.scriptsFS != nil {
		opts = append(opts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	opts = append(opts, runtime.WithStore(e.store))
	rt := runtime.NewRuntime(e.scriptsDir, opts...)
	for _, ext := range exts {
		if _, err := rt.LoadScript(ext.Script); err != nil {
			return fmt.Errorf("annex: script %s: %w", ext.Name, err)
		}
		cb, err := ScriptCallback(rt, ext)
		if err != nil {
			return err
		}
		e.Register(cb)
	}
	return nil
}

// scriptHost adapts a build to the script runtime. Writes are only
// accepted during Enhancement.
type scriptHost struct {
	b        *Build
	phase    Phase
	messages *Messages
}

var _ runtime.Host = (*scriptHost)(nil)

func (h *scriptHost) lookup(kind, target string) (Declaration, error) {
	k := ParseKind(kind)
	if k == 0 {
		return nil, fmt.Errorf("unknown declaration kind %q", kind)
	}
	d := h.b.index.Lookup(k, target)
	if d == nil {
		return nil, fmt.Errorf("%s %s is not indexed", kind, target)
	}
	return d, nil
}

func (h *scriptHost) writable(kind, target string) (Declaration, error) {
	if h.phase != PhaseEnhancement {
		return nil, fmt.Errorf("%s %s: annotations are read-only during %s", kind, target, h.phase)
	}
	return h.lookup(kind, target)
}

func (h *scriptHost) Annotations(kind, target string) ([]runtime.Annotation, error) {
	d, err := h.lookup(kind, target)
	if err != nil {
		return nil, err
	}
	anns := h.b.overlay.Effective(d)
	out := make([]runtime.Annotation, len(anns))
	for i, a := range anns {
		out[i] = runtime.Annotation{Name: a.Name, Attributes: a.Attributes}
	}
	return out, nil
}

func (h *scriptHost) AddAnnotation(kind, target string, a runtime.Annotation) error {
	d, err := h.writable(kind, target)
	if err != nil {
		return err
	}
	return h.b.overlay.Add(d, NewAnnotation(a.Name, a.Attributes...))
}

func (h *scriptHost) RemoveAnnotation(kind, target, name string) error {
	d, err := h.writable(kind, target)
	if err != nil {
		return err
	}
	return h.b.overlay.RemoveMatching(d, AnnotationNamed(name))
}

func (h *scriptHost) RemoveAllAnnotations(kind, target string) error {
	d, err := h.writable(kind, target)
	if err != nil {
		return err
	}
	return h.b.overlay.RemoveAll(d)
}

func (h *scriptHost) Report(severity, message, kind, target string) {
	var on Named
	if target != "" {
		if d, err := h.lookup(kind, target); err == nil {
			on = d
		}
	}
	h.messages.report(ParseSeverity(severity), on, message)
}
