// Package faulttolerance binds MicroProfile Fault Tolerance annotations to
// the SmallRye interceptor. Classes using any fault-tolerance annotation get
// the interceptor binding; the interceptor's priority can be overridden.
package faulttolerance

import (
	"context"
	"errors"

	"github.com/jward/annex"
	"github.com/jward/annex/internal/logging"
)

const (
	// Binding is the interceptor binding added to fault-tolerant classes.
	Binding = "io.smallrye.faulttolerance.FaultToleranceBinding"

	// Interceptor is the class implementing the fault-tolerance interceptor.
	Interceptor = "io.smallrye.faulttolerance.FaultToleranceInterceptor"

	InterceptorMarker = "javax.interceptor.Interceptor"
	Priority          = "javax.annotation.Priority"
)

// Annotations are the MicroProfile annotations that make a class
// fault-tolerant.
var Annotations = []string{
	"org.eclipse.microprofile.faulttolerance.Asynchronous",
	"org.eclipse.microprofile.faulttolerance.Bulkhead",
	"org.eclipse.microprofile.faulttolerance.CircuitBreaker",
	"org.eclipse.microprofile.faulttolerance.Fallback",
	"org.eclipse.microprofile.faulttolerance.Retry",
	"org.eclipse.microprofile.faulttolerance.Timeout",
}

// Extension is the fault-tolerance extension.
type Extension struct {
	priority    int
	hasPriority bool
}

// Option configures an Extension.
type Option func(*Extension)

// WithInterceptorPriority replaces the interceptor's Priority annotation.
func WithInterceptorPriority(p int) Option {
	return func(e *Extension) {
		e.priority = p
		e.hasPriority = true
	}
}

func New(opts ...Option) *Extension {
	e := &Extension{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registrar accepts callbacks; both *annex.Registry and *annex.Engine are
// registrars.
type Registrar interface {
	Register(cbs ...*annex.Callback)
}

// Register adds the extension's callbacks to r.
func (e *Extension) Register(r Registrar) {
	r.Register(e.Callbacks()...)
}

// Callbacks returns the extension's callbacks. The interceptor is usually a
// library class, so a Discovery callback adds it to the archive when a
// priority override is configured.
func (e *Extension) Callbacks() []*annex.Callback {
	cbs := []*annex.Callback{
		annex.Func1(annex.PhaseEnhancement, "fault-tolerance", annex.ArchiveConfigArg(), e.enhance),
	}
	if e.hasPriority {
		cbs = append([]*annex.Callback{
			annex.Func1(annex.PhaseDiscovery, "fault-tolerance-interceptor", annex.DiscoveryArg(), discover),
		}, cbs...)
	}
	return cbs
}

func discover(_ context.Context, d *annex.DiscoveryContext) error {
	err := d.AddClass(Interceptor)
	if errors.Is(err, annex.ErrResolution) {
		logging.Debug("fault tolerance interceptor not indexed", "class", Interceptor)
		return nil
	}
	return err
}

func (e *Extension) enhance(_ context.Context, ac *annex.ArchiveConfig) error {
	bound := 0
	for cc := range ac.Classes().AnnotatedWith(Annotations...).Configure() {
		if err := cc.AddAnnotation(Binding); err != nil {
			return err
		}
		bound++
	}
	logging.Debug("fault tolerance bindings added", "classes", bound)

	if !e.hasPriority {
		return nil
	}
	for cc := range ac.Classes().Exactly(Interceptor).AnnotatedWith(InterceptorMarker).Configure() {
		if err := cc.RemoveAnnotation(annex.AnnotationNamed(Priority)); err != nil {
			return err
		}
		if err := cc.AddAnnotation(Priority, annex.Attr("value", e.priority)); err != nil {
			return err
		}
	}
	return nil
}
