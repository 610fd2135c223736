package annex

import (
	"fmt"
	"strings"
)

// Phase is one of the four fixed extension phases. Phases run strictly in
// declaration order and are never re-entered.
type Phase uint8

const (
	PhaseDiscovery Phase = iota + 1
	PhaseEnhancement
	PhaseSynthesis
	PhaseValidation
)

// Phases lists every phase in execution order.
var Phases = []Phase{PhaseDiscovery, PhaseEnhancement, PhaseSynthesis, PhaseValidation}

func (p Phase) String() string {
	switch p {
	case PhaseDiscovery:
		return "discovery"
	case PhaseEnhancement:
		return "enhancement"
	case PhaseSynthesis:
		return "synthesis"
	case PhaseValidation:
		return "validation"
	case 0:
		return "none"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(s) {
	case "discovery":
		return PhaseDiscovery, nil
	case "enhancement":
		return PhaseEnhancement, nil
	case "synthesis":
		return PhaseSynthesis, nil
	case "validation":
		return PhaseValidation, nil
	}
	return 0, fmt.Errorf("annex: unknown phase %q", s)
}

// CustomContext is a scope context registered during Discovery.
type CustomContext struct {
	Scope          string `json:"scope" msgpack:"scope"`
	Implementation string `json:"implementation" msgpack:"implementation"`
}

// SyntheticBean is a bean registered during Synthesis.
type SyntheticBean struct {
	ID             string       `json:"id" msgpack:"id"`
	Implementation string       `json:"implementation" msgpack:"implementation"`
	Types          []string     `json:"types" msgpack:"types"`
	Qualifiers     []Annotation `json:"qualifiers,omitempty" msgpack:"qualifiers,omitempty"`
	Scope          string       `json:"scope,omitempty" msgpack:"scope,omitempty"`
}

// SyntheticObserver is an observer registered during Synthesis.
type SyntheticObserver struct {
	ID             string       `json:"id" msgpack:"id"`
	DeclaringClass string       `json:"declaring_class,omitempty" msgpack:"declaring_class,omitempty"`
	ObservedType   string       `json:"observed_type" msgpack:"observed_type"`
	Qualifiers     []Annotation `json:"qualifiers,omitempty" msgpack:"qualifiers,omitempty"`
	Priority       int          `json:"priority" msgpack:"priority"`
	Async          bool         `json:"async" msgpack:"async"`
}

// Deployment is the read-only record of what extensions registered: custom
// contexts, synthetic beans and synthetic observers, in registration order.
type Deployment struct {
	contexts  []CustomContext
	beans     []SyntheticBean
	observers []SyntheticObserver
	ids       map[string]bool
}

func newDeployment() *Deployment {
	return &Deployment{ids: make(map[string]bool)}
}

func (d *Deployment) Contexts() []CustomContext {
	return append([]CustomContext{}, d.contexts...)
}

func (d *Deployment) Beans() []SyntheticBean {
	return append([]SyntheticBean{}, d.beans...)
}

func (d *Deployment) Observers() []SyntheticObserver {
	return append([]SyntheticObserver{}, d.observers...)
}

// Bean returns the synthetic bean with the given id, or nil.
func (d *Deployment) Bean(id string) *SyntheticBean {
	for i := range d.beans {
		if d.beans[i].ID == id {
			b := d.beans[i]
			return &b
		}
	}
	return nil
}

// DiscoveryContext is handed to Discovery callbacks.
type DiscoveryContext struct {
	build *Build
}

// AddClass makes an indexed class part of the archive, so later queries see
// it. Library classes become visible this way. Adding an archived class is a
// no-op. An unindexed name is reported as a warning and returned as a
// ResolutionError.
func (d *DiscoveryContext) AddClass(name string) error {
	c := d.build.classByName(name)
	if c == nil {
		m := d.build.messages()
		m.Warn(fmt.Sprintf("discovery: add class %s: not found in index", name))
		return &ResolutionError{
			Callback: m.callback,
			Phase:    PhaseDiscovery,
			Query:    "class " + name,
		}
	}
	d.build.addToArchive(c.ID())
	return nil
}

// AddContext registers a custom context implementation for scope.
func (d *DiscoveryContext) AddContext(scope, implementation string) error {
	if scope == "" || implementation == "" {
		return fmt.Errorf("annex: add context: scope and implementation are required")
	}
	d.build.deployment.contexts = append(d.build.deployment.contexts, CustomContext{
		Scope:          scope,
		Implementation: implementation,
	})
	return nil
}

// SynthesisContext is handed to Synthesis callbacks.
type SynthesisContext struct {
	build *Build
}

// Archive is the read-only archive view with the frozen overlay applied.
func (s *SynthesisContext) Archive() *Archive { return s.build.Archive() }

// Deployment is the registrations made so far.
func (s *SynthesisContext) Deployment() *Deployment { return s.build.deployment }

// Bean starts a synthetic bean registration. Nothing is recorded until
// Register is called.
func (s *SynthesisContext) Bean(id string) *SyntheticBeanBuilder {
	return &SyntheticBeanBuilder{build: s.build, bean: SyntheticBean{ID: id}}
}

// Observer starts a synthetic observer registration.
func (s *SynthesisContext) Observer(id string) *SyntheticObserverBuilder {
	return &SyntheticObserverBuilder{build: s.build, obs: SyntheticObserver{ID: id}}
}

// ValidationContext is handed to Validation callbacks.
type ValidationContext struct {
	build *Build
}

func (v *ValidationContext) Archive() *Archive { return v.build.Archive() }

func (v *ValidationContext) Deployment() *Deployment { return v.build.deployment }

// SyntheticBeanBuilder configures a synthetic bean.
type SyntheticBeanBuilder struct {
	build *Build
	bean  SyntheticBean
}

func (b *SyntheticBeanBuilder) Implementation(class string) *SyntheticBeanBuilder {
	b.bean.Implementation = class
	return b
}

// Types adds bean types. The implementation class is always a bean type.
func (b *SyntheticBeanBuilder) Types(types ...string) *SyntheticBeanBuilder {
	b.bean.Types = append(b.bean.Types, types...)
	return b
}

func (b *SyntheticBeanBuilder) Qualifier(a Annotation) *SyntheticBeanBuilder {
	b.bean.Qualifiers = append(b.bean.Qualifiers, a)
	return b
}

func (b *SyntheticBeanBuilder) Scope(scope string) *SyntheticBeanBuilder {
	b.bean.Scope = scope
	return b
}

// Register records the bean in the deployment.
func (b *SyntheticBeanBuilder) Register() error {
	if err := b.build.checkRegistration("bean", b.bean.ID); err != nil {
		return err
	}
	if b.bean.Implementation == "" {
		return fmt.Errorf("annex: register bean %q: implementation class is required", b.bean.ID)
	}
	bean := b.bean
	types := []string{bean.Implementation}
	for _, t := range bean.Types {
		if t != bean.Implementation {
			types = append(types, t)
		}
	}
	bean.Types = types
	bean.Qualifiers = append([]Annotation{}, bean.Qualifiers...)
	b.build.deployment.beans = append(b.build.deployment.beans, bean)
	b.build.deployment.ids[bean.ID] = true
	return nil
}

// SyntheticObserverBuilder configures a synthetic observer.
type SyntheticObserverBuilder struct {
	build *Build
	obs   SyntheticObserver
}

func (o *SyntheticObserverBuilder) DeclaringClass(class string) *SyntheticObserverBuilder {
	o.obs.DeclaringClass = class
	return o
}

func (o *SyntheticObserverBuilder) ObservedType(t string) *SyntheticObserverBuilder {
	o.obs.ObservedType = t
	return o
}

func (o *SyntheticObserverBuilder) Qualifier(a Annotation) *SyntheticObserverBuilder {
	o.obs.Qualifiers = append(o.obs.Qualifiers, a)
	return o
}

func (o *SyntheticObserverBuilder) Priority(p int) *SyntheticObserverBuilder {
	o.obs.Priority = p
	return o
}

func (o *SyntheticObserverBuilder) Async(async bool) *SyntheticObserverBuilder {
	o.obs.Async = async
	return o
}

// Register records the observer in the deployment.
func (o *SyntheticObserverBuilder) Register() error {
	if err := o.build.checkRegistration("observer", o.obs.ID); err != nil {
		return err
	}
	if o.obs.ObservedType == "" {
		return fmt.Errorf("annex: register observer %q: observed type is required", o.obs.ID)
	}
	obs := o.obs
	obs.Qualifiers = append([]Annotation{}, obs.Qualifiers...)
	o.build.deployment.observers = append(o.build.deployment.observers, obs)
	o.build.deployment.ids[obs.ID] = true
	return nil
}
