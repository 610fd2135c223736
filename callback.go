package annex

import (
	"context"
	"fmt"
	"strings"
)

// Mode selects how a query-shaped parameter fans out.
type Mode uint8

const (
	// ModeNone marks parameters that are not query-shaped.
	ModeNone Mode = iota
	// ModeOne requires exactly one match and invokes the callback once.
	ModeOne
	// ModeEach invokes the callback once per match.
	ModeEach
	// ModeCollection invokes the callback once with every match.
	ModeCollection
)

func (m Mode) String() string {
	switch m {
	case ModeOne:
		return "one"
	case ModeEach:
		return "each"
	case ModeCollection:
		return "collection"
	}
	return "none"
}

// ParseMode is the inverse of Mode.String for query-shaped modes.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "one":
		return ModeOne, nil
	case "each":
		return ModeEach, nil
	case "collection", "":
		return ModeCollection, nil
	}
	return ModeNone, fmt.Errorf("annex: unknown mode %q", s)
}

// Constraint selects the classes a query-shaped parameter ranges over. For
// method and field parameters it selects the declaring classes. Categories
// combine as in ClassQuery.
type Constraint struct {
	Exact         []string
	SubtypesOf    []string
	AnnotatedWith []string
}

// Exact is a Constraint on the named classes.
func Exact(names ...string) Constraint { return Constraint{Exact: names} }

// SubtypesOf is a Constraint on the strict subtypes of the named types.
func SubtypesOf(names ...string) Constraint { return Constraint{SubtypesOf: names} }

// AnnotatedWith is a Constraint on classes carrying any of the annotations.
func AnnotatedWith(names ...string) Constraint { return Constraint{AnnotatedWith: names} }

// And merges the predicates of o into c.
func (c Constraint) And(o Constraint) Constraint {
	return Constraint{
		Exact:         append(append([]string{}, c.Exact...), o.Exact...),
		SubtypesOf:    append(append([]string{}, c.SubtypesOf...), o.SubtypesOf...),
		AnnotatedWith: append(append([]string{}, c.AnnotatedWith...), o.AnnotatedWith...),
	}
}

// Len is the number of predicates.
func (c Constraint) Len() int {
	return len(c.Exact) + len(c.SubtypesOf) + len(c.AnnotatedWith)
}

func (c Constraint) query(b *Build) *ClassQuery {
	return b.Archive().Classes().
		Exactly(c.Exact...).
		SubtypeOf(c.SubtypesOf...).
		AnnotatedWith(c.AnnotatedWith...)
}

type paramKind uint8

const (
	paramClassInfo paramKind = iota + 1
	paramClassConfig
	paramMethodInfo
	paramMethodConfig
	paramFieldInfo
	paramFieldConfig
	paramArchive
	paramArchiveConfig
	paramMessages
	paramTypes
	paramDiscovery
	paramSynthesis
	paramValidation
)

var paramKindNames = map[paramKind]string{
	paramClassInfo:     "ClassInfo",
	paramClassConfig:   "ClassConfig",
	paramMethodInfo:    "MethodInfo",
	paramMethodConfig:  "MethodConfig",
	paramFieldInfo:     "FieldInfo",
	paramFieldConfig:   "FieldConfig",
	paramArchive:       "Archive",
	paramArchiveConfig: "ArchiveConfig",
	paramMessages:      "Messages",
	paramTypes:         "Types",
	paramDiscovery:     "DiscoveryContext",
	paramSynthesis:     "SynthesisContext",
	paramValidation:    "ValidationContext",
}

func (k paramKind) String() string { return paramKindNames[k] }

// Param describes one callback parameter.
type Param struct {
	kind       paramKind
	mode       Mode
	constraint Constraint

	// constructors narrows method parameters to constructors.
	constructors bool
}

func (p Param) String() string {
	switch p.mode {
	case ModeNone:
		return p.kind.String()
	case ModeCollection:
		return "[]" + p.kind.String()
	default:
		return p.mode.String() + " " + p.kind.String()
	}
}

// Mode is the fan-out mode; ModeNone for parameters that are not
// query-shaped.
func (p Param) Mode() Mode { return p.mode }

func (p Param) queryShaped() bool { return p.mode != ModeNone }

func (p Param) perElementConfig() bool {
	switch p.kind {
	case paramClassConfig, paramMethodConfig, paramFieldConfig:
		return true
	}
	return false
}

func (p Param) availableIn(ph Phase) bool {
	switch p.kind {
	case paramClassInfo, paramMethodInfo, paramFieldInfo, paramArchive:
		return ph > PhaseDiscovery
	case paramClassConfig, paramMethodConfig, paramFieldConfig, paramArchiveConfig:
		return ph == PhaseEnhancement
	case paramDiscovery:
		return ph == PhaseDiscovery
	case paramSynthesis:
		return ph == PhaseSynthesis
	case paramValidation:
		return ph == PhaseValidation
	}
	return true
}

// resolve returns the declarations a query-shaped parameter ranges over.
func (p Param) resolve(b *Build) (decls []Declaration, query string) {
	classes := p.constraint.query(b)
	switch p.kind {
	case paramClassInfo, paramClassConfig:
		for _, c := range classes.classes() {
			decls = append(decls, c)
		}
		return decls, classes.String()
	case paramMethodInfo, paramMethodConfig:
		q := b.Archive().Methods()
		if p.constructors {
			q = b.Archive().Constructors()
		}
		q = q.DeclaredOn(classes)
		for _, m := range q.methods() {
			decls = append(decls, m)
		}
		return decls, q.String()
	default:
		q := b.Archive().Fields().DeclaredOn(classes)
		for _, f := range q.fields() {
			decls = append(decls, f)
		}
		return decls, q.String()
	}
}

// frame carries the values bound to one callback invocation.
type frame struct {
	b        *Build
	messages *Messages
	// elem is the declaration bound by a ModeOne or ModeEach parameter.
	elem Declaration
	// elems are the declarations bound by a ModeCollection parameter.
	elems []Declaration
}

// Arg binds a value of type T to a callback parameter. Construct with the
// binder functions (ClassConfigOf, EachClassInfo, MessagesArg, ...).
type Arg[T any] struct {
	param Param
	bind  func(*frame) T
}

// Param describes the parameter the Arg binds.
func (a Arg[T]) Param() Param { return a.param }

func elementArg[T any](kind paramKind, mode Mode, c Constraint, view func(*Build, Declaration) T) Arg[T] {
	return Arg[T]{
		param: Param{kind: kind, mode: mode, constraint: c},
		bind:  func(f *frame) T { return view(f.b, f.elem) },
	}
}

func collectionArg[T any](kind paramKind, c Constraint, view func(*Build, Declaration) T) Arg[[]T] {
	return Arg[[]T]{
		param: Param{kind: kind, mode: ModeCollection, constraint: c},
		bind: func(f *frame) []T {
			out := make([]T, len(f.elems))
			for i, d := range f.elems {
				out[i] = view(f.b, d)
			}
			return out
		},
	}
}

func classInfoView(b *Build, d Declaration) *ClassInfo     { return newClassInfo(b, d.(*Class)) }
func classConfigView(b *Build, d Declaration) *ClassConfig { return newClassConfig(b, d.(*Class)) }
func methodInfoView(b *Build, d Declaration) *MethodInfo   { return newMethodInfo(b, d.(*Method)) }
func fieldInfoView(b *Build, d Declaration) *FieldInfo     { return newFieldInfo(b, d.(*Field)) }

func methodConfigView(b *Build, d Declaration) *MethodConfig {
	return newMethodConfig(b, d.(*Method))
}

func fieldConfigView(b *Build, d Declaration) *FieldConfig {
	return newFieldConfig(b, d.(*Field))
}

// ClassInfoOf binds the single class matching c.
func ClassInfoOf(c Constraint) Arg[*ClassInfo] {
	return elementArg(paramClassInfo, ModeOne, c, classInfoView)
}

// EachClassInfo invokes the callback once per class matching c.
func EachClassInfo(c Constraint) Arg[*ClassInfo] {
	return elementArg(paramClassInfo, ModeEach, c, classInfoView)
}

// ClassInfos binds every class matching c.
func ClassInfos(c Constraint) Arg[[]*ClassInfo] {
	return collectionArg(paramClassInfo, c, classInfoView)
}

// ClassConfigOf binds the single class matching c for configuration.
func ClassConfigOf(c Constraint) Arg[*ClassConfig] {
	return elementArg(paramClassConfig, ModeOne, c, classConfigView)
}

// EachClassConfig invokes the callback once per class matching c.
func EachClassConfig(c Constraint) Arg[*ClassConfig] {
	return elementArg(paramClassConfig, ModeEach, c, classConfigView)
}

// ClassConfigs binds every class matching c for configuration.
func ClassConfigs(c Constraint) Arg[[]*ClassConfig] {
	return collectionArg(paramClassConfig, c, classConfigView)
}

// MethodInfoOf binds the single method declared on the classes matching c.
func MethodInfoOf(c Constraint) Arg[*MethodInfo] {
	return elementArg(paramMethodInfo, ModeOne, c, methodInfoView)
}

func EachMethodInfo(c Constraint) Arg[*MethodInfo] {
	return elementArg(paramMethodInfo, ModeEach, c, methodInfoView)
}

func MethodInfos(c Constraint) Arg[[]*MethodInfo] {
	return collectionArg(paramMethodInfo, c, methodInfoView)
}

func MethodConfigOf(c Constraint) Arg[*MethodConfig] {
	return elementArg(paramMethodConfig, ModeOne, c, methodConfigView)
}

func EachMethodConfig(c Constraint) Arg[*MethodConfig] {
	return elementArg(paramMethodConfig, ModeEach, c, methodConfigView)
}

func MethodConfigs(c Constraint) Arg[[]*MethodConfig] {
	return collectionArg(paramMethodConfig, c, methodConfigView)
}

// FieldInfoOf binds the single field declared on the classes matching c.
func FieldInfoOf(c Constraint) Arg[*FieldInfo] {
	return elementArg(paramFieldInfo, ModeOne, c, fieldInfoView)
}

func EachFieldInfo(c Constraint) Arg[*FieldInfo] {
	return elementArg(paramFieldInfo, ModeEach, c, fieldInfoView)
}

func FieldInfos(c Constraint) Arg[[]*FieldInfo] {
	return collectionArg(paramFieldInfo, c, fieldInfoView)
}

func FieldConfigOf(c Constraint) Arg[*FieldConfig] {
	return elementArg(paramFieldConfig, ModeOne, c, fieldConfigView)
}

func EachFieldConfig(c Constraint) Arg[*FieldConfig] {
	return elementArg(paramFieldConfig, ModeEach, c, fieldConfigView)
}

func FieldConfigs(c Constraint) Arg[[]*FieldConfig] {
	return collectionArg(paramFieldConfig, c, fieldConfigView)
}

// ArchiveArg binds the read-only archive.
func ArchiveArg() Arg[*Archive] {
	return Arg[*Archive]{param: Param{kind: paramArchive}, bind: func(f *frame) *Archive { return f.b.Archive() }}
}

// ArchiveConfigArg binds the configurable archive. It cannot be combined
// with per-element config parameters.
func ArchiveConfigArg() Arg[*ArchiveConfig] {
	return Arg[*ArchiveConfig]{param: Param{kind: paramArchiveConfig}, bind: func(f *frame) *ArchiveConfig {
		return f.b.archiveConfig()
	}}
}

// MessagesArg binds the diagnostics facade of the invocation.
func MessagesArg() Arg[*Messages] {
	return Arg[*Messages]{param: Param{kind: paramMessages}, bind: func(f *frame) *Messages { return f.messages }}
}

// TypesArg binds the Types facade.
func TypesArg() Arg[*Types] {
	return Arg[*Types]{param: Param{kind: paramTypes}, bind: func(f *frame) *Types { return f.b.types }}
}

func DiscoveryArg() Arg[*DiscoveryContext] {
	return Arg[*DiscoveryContext]{param: Param{kind: paramDiscovery}, bind: func(f *frame) *DiscoveryContext {
		return &DiscoveryContext{build: f.b}
	}}
}

func SynthesisArg() Arg[*SynthesisContext] {
	return Arg[*SynthesisContext]{param: Param{kind: paramSynthesis}, bind: func(f *frame) *SynthesisContext {
		return &SynthesisContext{build: f.b}
	}}
}

func ValidationArg() Arg[*ValidationContext] {
	return Arg[*ValidationContext]{param: Param{kind: paramValidation}, bind: func(f *frame) *ValidationContext {
		return &ValidationContext{build: f.b}
	}}
}

// Callback is a registered extension callback: a phase, an optional
// priority, a parameter list and the typed closure to invoke.
type Callback struct {
	name        string
	phase       Phase
	priority    int
	hasPriority bool
	params      []Param
	invoke      func(context.Context, *frame) error
}

func newCallback(phase Phase, name string, params []Param, invoke func(context.Context, *frame) error) *Callback {
	return &Callback{name: name, phase: phase, params: params, invoke: invoke}
}

// WithPriority sets an explicit priority. Prioritized callbacks run before
// unprioritized ones, higher values first.
func (c *Callback) WithPriority(p int) *Callback {
	c.priority = p
	c.hasPriority = true
	return c
}

func (c *Callback) Name() string    { return c.name }
func (c *Callback) Phase() Phase    { return c.phase }
func (c *Callback) Params() []Param { return append([]Param{}, c.params...) }

// Priority returns the explicit priority, if any.
func (c *Callback) Priority() (int, bool) { return c.priority, c.hasPriority }

func (c *Callback) String() string {
	parts := make([]string, len(c.params))
	for i, p := range c.params {
		parts[i] = p.String()
	}
	return c.name + "(" + strings.Join(parts, ", ") + ")"
}

// queryParam returns the query-shaped parameter, if any. Validation
// guarantees there is at most one.
func (c *Callback) queryParam() (Param, bool) {
	for _, p := range c.params {
		if p.queryShaped() {
			return p, true
		}
	}
	return Param{}, false
}

// Func0 creates a callback without parameters.
func Func0(phase Phase, name string, fn func(context.Context) error) *Callback {
	return newCallback(phase, name, nil, func(ctx context.Context, _ *frame) error {
		return fn(ctx)
	})
}

// Func1 creates a callback with one parameter.
func Func1[A any](phase Phase, name string, a Arg[A], fn func(context.Context, A) error) *Callback {
	return newCallback(phase, name, []Param{a.param}, func(ctx context.Context, f *frame) error {
		return fn(ctx, a.bind(f))
	})
}

// Func2 creates a callback with two parameters.
func Func2[A, B any](phase Phase, name string, a Arg[A], b Arg[B], fn func(context.Context, A, B) error) *Callback {
	return newCallback(phase, name, []Param{a.param, b.param}, func(ctx context.Context, f *frame) error {
		return fn(ctx, a.bind(f), b.bind(f))
	})
}

// Func3 creates a callback with three parameters.
func Func3[A, B, C any](phase Phase, name string, a Arg[A], b Arg[B], c Arg[C], fn func(context.Context, A, B, C) error) *Callback {
	return newCallback(phase, name, []Param{a.param, b.param, c.param}, func(ctx context.Context, f *frame) error {
		return fn(ctx, a.bind(f), b.bind(f), c.bind(f))
	})
}

// Func4 creates a callback with four parameters.
func Func4[A, B, C, D any](phase Phase, name string, a Arg[A], b Arg[B], c Arg[C], d Arg[D], fn func(context.Context, A, B, C, D) error) *Callback {
	return newCallback(phase, name, []Param{a.param, b.param, c.param, d.param}, func(ctx context.Context, f *frame) error {
		return fn(ctx, a.bind(f), b.bind(f), c.bind(f), d.bind(f))
	})
}
