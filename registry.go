package annex

import (
	"errors"
	"fmt"
	"sort"
)

// Registry holds callbacks in registration order. The dispatcher imposes
// the execution order; registration order only breaks priority ties.
type Registry struct {
	callbacks []*Callback
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends callbacks. Unnamed callbacks get a positional name.
func (r *Registry) Register(cbs ...*Callback) {
	for _, cb := range cbs {
		if cb == nil {
			continue
		}
		if cb.name == "" {
			cb.name = fmt.Sprintf("callback#%d", len(r.callbacks)+1)
		}
		r.callbacks = append(r.callbacks, cb)
	}
}

// Len is the number of registered callbacks.
func (r *Registry) Len() int { return len(r.callbacks) }

// Callbacks returns the callbacks in registration order.
func (r *Registry) Callbacks() []*Callback {
	return append([]*Callback{}, r.callbacks...)
}

// Validate checks every callback's parameter list and returns all problems
// joined, each a *RegistrationError.
func (r *Registry) Validate() error {
	var errs []error
	for _, cb := range r.callbacks {
		errs = append(errs, validateCallback(cb)...)
	}
	return errors.Join(errs...)
}

func validateCallback(cb *Callback) []error {
	var errs []error
	fail := func(param int, reason, hint string) {
		errs = append(errs, &RegistrationError{
			Callback: cb.name,
			Phase:    cb.phase,
			Param:    param,
			Reason:   reason,
			Hint:     hint,
		})
	}
	if cb.phase < PhaseDiscovery || cb.phase > PhaseValidation {
		fail(-1, fmt.Sprintf("unknown phase %d", cb.phase), "")
		return errs
	}

	queries := 0
	archiveConfig, elementConfig := false, false
	for i, p := range cb.params {
		if !p.availableIn(cb.phase) {
			fail(i, fmt.Sprintf("unavailable in phase: %s cannot be used in %s", p, cb.phase), "")
		}
		if p.queryShaped() {
			queries++
			if p.constraint.Len() == 0 {
				fail(i, "under-specified query", "add an exact, subtype-of or annotated-with constraint")
			}
		}
		if p.kind == paramArchiveConfig {
			archiveConfig = true
		}
		if p.perElementConfig() {
			elementConfig = true
		}
	}
	if queries > 1 {
		fail(-1, fmt.Sprintf("ambiguous multiplicity: %d query-shaped parameters", queries),
			"use a single query parameter, or take ArchiveConfig and run queries explicitly")
	}
	if archiveConfig && elementConfig {
		fail(-1, "mutually exclusive capability: ArchiveConfig with a per-element config parameter", "")
	}
	return errs
}

// Ordered returns the callbacks of phase in execution order: prioritized
// before unprioritized, higher priority first, registration order for ties.
func (r *Registry) Ordered(phase Phase) []*Callback {
	var out []*Callback
	for _, cb := range r.callbacks {
		if cb.phase == phase {
			out = append(out, cb)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.hasPriority != b.hasPriority {
			return a.hasPriority
		}
		return a.hasPriority && a.priority > b.priority
	})
	return out
}
