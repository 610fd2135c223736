package annex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jward/annex/internal/logging"
)

// Build is one run of the extension pipeline over a Program Index snapshot.
// It owns the run's overlay, diagnostics and deployment; nothing is shared
// between builds. A Build is single-threaded and runs at most once, but can
// be queried through Archive before, during and after its run.
type Build struct {
	ID string

	index      ProgramIndex
	overlay    *Overlay
	diags      *Diagnostics
	deployment *Deployment
	types      *Types

	// added holds library classes made visible during Discovery.
	added map[DeclID]bool

	phase   Phase
	current *Messages
	warned  map[string]bool
	ran     bool

	startedAt  time.Time
	finishedAt time.Time
}

// BuildOption configures a Build.
type BuildOption func(*Build)

// WithMaxDiagnostics caps the number of retained diagnostics.
func WithMaxDiagnostics(n int) BuildOption {
	return func(b *Build) {
		b.diags.max = n
	}
}

// WithDiagnosticHandler streams every diagnostic to fn as it is reported.
func WithDiagnosticHandler(fn func(Diagnostic)) BuildOption {
	return func(b *Build) {
		b.diags.handler = fn
	}
}

// NewBuild creates a build over index.
func NewBuild(index ProgramIndex, opts ...BuildOption) *Build {
	b := &Build{
		ID:         uuid.NewString(),
		index:      index,
		overlay:    NewOverlay(index),
		diags:      NewDiagnostics(0, nil),
		deployment: newDeployment(),
		types:      &Types{},
		added:      make(map[DeclID]bool),
		warned:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Archive returns the read-only archive view.
func (b *Build) Archive() *Archive { return &Archive{b: b} }

func (b *Build) archiveConfig() *ArchiveConfig {
	return &ArchiveConfig{Archive: &Archive{b: b, config: true}}
}

func (b *Build) Overlay() *Overlay { return b.overlay }

func (b *Build) Diagnostics() *Diagnostics { return b.diags }

func (b *Build) Deployment() *Deployment { return b.deployment }

func (b *Build) Index() ProgramIndex { return b.index }

// Phase is the phase currently running, or 0 outside of Run.
func (b *Build) Phase() Phase { return b.phase }

func (b *Build) classByName(name string) *Class {
	if c, ok := b.index.Lookup(KindClass, name).(*Class); ok {
		return c
	}
	return nil
}

func (b *Build) ownerOf(d Declaration) *Class {
	var id DeclID
	switch d := d.(type) {
	case *Method:
		id = d.owner
	case *Field:
		id = d.owner
	}
	c, _ := b.index.Declaration(id).(*Class)
	return c
}

func (b *Build) inArchive(c *Class) bool {
	return c.Archived || b.added[c.ID()]
}

func (b *Build) addToArchive(id DeclID) {
	b.added[id] = true
}

// archiveClasses returns every archive member in index order.
func (b *Build) archiveClasses() []*Class {
	out := []*Class{}
	for _, d := range b.index.All(KindClass) {
		if c := d.(*Class); b.inArchive(c) {
			out = append(out, c)
		}
	}
	return out
}

// messages is the facade of the running invocation, or a phase-level one.
func (b *Build) messages() *Messages {
	if b.current != nil {
		return b.current
	}
	return &Messages{diags: b.diags, phase: b.phase}
}

// queryWarning reports an unresolvable query name once per callback.
func (b *Build) queryWarning(msg string) {
	m := b.messages()
	key := m.callback + "\x00" + msg
	if b.warned[key] {
		return
	}
	b.warned[key] = true
	m.Warn(msg)
}

func (b *Build) canConfigure(config bool, query string) bool {
	if config && b.phase == PhaseEnhancement && !b.overlay.Frozen() {
		return true
	}
	b.messages().Error(fmt.Sprintf("%s: configure requires an ArchiveConfig query during enhancement", query))
	return false
}

func (b *Build) checkRegistration(what, id string) error {
	if b.phase != PhaseSynthesis {
		return fmt.Errorf("annex: register %s %q: only allowed during synthesis", what, id)
	}
	if id == "" {
		return fmt.Errorf("annex: register %s: id is required", what)
	}
	if b.deployment.ids[id] {
		return fmt.Errorf("annex: register %s %q: duplicate id", what, id)
	}
	return nil
}

// Result summarizes a finished run.
type Result struct {
	BuildID     string
	Overlay     *Overlay
	Diagnostics *Diagnostics
	Deployment  *Deployment
	StartedAt   time.Time
	FinishedAt  time.Time
	// Invocations counts callback invocations per phase.
	Invocations map[Phase]int

	index ProgramIndex
}

// Failed reports whether the run produced error diagnostics.
func (r *Result) Failed() bool { return r.Diagnostics.HasErrors() }

// Run validates the registry and executes the four phases in order. The
// overlay is frozen when Enhancement ends and, at the latest, when Run
// returns, whatever the outcome.
//
// A registration problem fails before any phase runs. A callback error or
// panic aborts the pipeline with a *CallbackError. Singular parameters that
// do not resolve to exactly one declaration are reported as error
// diagnostics; the phase completes and the run then fails with the joined
// *ResolutionError values. Error diagnostics reported by callbacks fail the
// run with ErrBuildFailed after Validation.
func (b *Build) Run(ctx context.Context, reg *Registry) (*Result, error) {
	if b.ran {
		return nil, fmt.Errorf("annex: build %s already ran", b.ID)
	}
	b.ran = true
	b.startedAt = time.Now()
	res := &Result{
		BuildID:     b.ID,
		Overlay:     b.overlay,
		Diagnostics: b.diags,
		Deployment:  b.deployment,
		StartedAt:   b.startedAt,
		Invocations: make(map[Phase]int),
		index:       b.index,
	}
	defer func() {
		b.overlay.Freeze()
		b.phase = 0
		b.current = nil
		b.finishedAt = time.Now()
		res.FinishedAt = b.finishedAt
	}()

	if err := reg.Validate(); err != nil {
		return res, err
	}

	for _, ph := range Phases {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		b.phase = ph
		cbs := reg.Ordered(ph)
		logging.Debug("phase start", "build", b.ID, "phase", ph, "callbacks", len(cbs))
		n, err := b.runPhase(ctx, ph, cbs)
		res.Invocations[ph] = n
		if ph == PhaseEnhancement {
			b.overlay.Freeze()
			logging.Debug("overlay frozen", "build", b.ID, "targets", len(b.overlay.Targets()))
		}
		if err != nil {
			logging.Debug("phase failed", "build", b.ID, "phase", ph, "err", err)
			return res, err
		}
	}

	if b.diags.HasErrors() {
		return res, fmt.Errorf("annex: %d error diagnostics: %w", b.diags.Count(SevError), ErrBuildFailed)
	}
	return res, nil
}

// runPhase invokes cbs in order and returns the number of invocations.
func (b *Build) runPhase(ctx context.Context, ph Phase, cbs []*Callback) (int, error) {
	invocations := 0
	var unresolved []error
	for _, cb := range cbs {
		if err := ctx.Err(); err != nil {
			return invocations, err
		}
		frames, err := b.frames(cb)
		if err != nil {
			unresolved = append(unresolved, err)
			continue
		}
		for _, f := range frames {
			if err := ctx.Err(); err != nil {
				return invocations, err
			}
			invocations++
			if err := b.invoke(ctx, cb, f); err != nil {
				return invocations, err
			}
		}
	}
	return invocations, errors.Join(unresolved...)
}

// frames resolves the query-shaped parameter of cb into one frame per
// invocation. A ModeOne parameter that does not match exactly one
// declaration yields a *ResolutionError, also reported as a diagnostic.
func (b *Build) frames(cb *Callback) ([]*frame, error) {
	msgs := &Messages{diags: b.diags, phase: cb.phase, callback: cb.name}
	p, ok := cb.queryParam()
	if !ok {
		return []*frame{{b: b, messages: msgs}}, nil
	}

	b.current = msgs
	decls, query := p.resolve(b)
	b.current = nil

	switch p.mode {
	case ModeOne:
		if len(decls) != 1 {
			err := &ResolutionError{Callback: cb.name, Phase: cb.phase, Query: query, Matches: len(decls)}
			msgs.Error(err.Error())
			return nil, err
		}
		return []*frame{{b: b, messages: msgs, elem: decls[0]}}, nil
	case ModeEach:
		out := make([]*frame, len(decls))
		for i, d := range decls {
			out[i] = &frame{b: b, messages: msgs, elem: d}
		}
		return out, nil
	default:
		return []*frame{{b: b, messages: msgs, elems: decls}}, nil
	}
}

// invoke calls cb with f, converting returned errors and panics into a
// *CallbackError that is also reported as a diagnostic.
func (b *Build) invoke(ctx context.Context, cb *Callback, f *frame) (err error) {
	target := ""
	if f.elem != nil {
		target = f.elem.Name()
	}
	b.current = f.messages
	defer func() {
		b.current = nil
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			cerr := &CallbackError{Callback: cb.name, Phase: cb.phase, Target: target, Cause: err}
			b.diags.Add(Diagnostic{
				Severity: SevError,
				Message:  err.Error(),
				Target:   target,
				Phase:    cb.phase,
				Callback: cb.name,
			})
			err = cerr
		}
	}()
	logging.Debug("invoke", "callback", cb.name, "phase", cb.phase, "target", target)
	return cb.invoke(ctx, f)
}
