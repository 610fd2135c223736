package annex

import (
	"slices"
	"sort"
)

type opKind uint8

const (
	opAdd opKind = iota + 1
	opRemoveMatching
	opRemoveAll
)

func (k opKind) String() string {
	switch k {
	case opAdd:
		return "add"
	case opRemoveMatching:
		return "remove matching"
	case opRemoveAll:
		return "remove all"
	}
	return "unknown"
}

type overlayOp struct {
	kind opKind
	ann  Annotation
	pred AnnotationPredicate
}

// Overlay stages annotation edits on top of the Program Index. Operations
// for a target apply in enqueue order against the target's native
// annotations. After Freeze the effective sets are fixed and every write
// fails with *OverlayStateError.
//
// An Overlay is not safe for concurrent use.
type Overlay struct {
	index     ProgramIndex
	ops       map[DeclID][]overlayOp
	frozen    bool
	effective map[DeclID][]Annotation
	// added maps annotation names to targets with at least one Add of that
	// name, in first-add order.
	added map[string][]DeclID
}

// NewOverlay creates an empty, writable overlay over index.
func NewOverlay(index ProgramIndex) *Overlay {
	return &Overlay{
		index: index,
		ops:   make(map[DeclID][]overlayOp),
		added: make(map[string][]DeclID),
	}
}

func (o *Overlay) enqueue(target Declaration, op overlayOp) error {
	if o.frozen {
		return &OverlayStateError{Op: op.kind.String(), Target: target.Name()}
	}
	o.ops[target.ID()] = append(o.ops[target.ID()], op)
	return nil
}

// Add appends an annotation to target.
func (o *Overlay) Add(target Declaration, a Annotation) error {
	if err := o.enqueue(target, overlayOp{kind: opAdd, ann: a}); err != nil {
		return err
	}
	if !slices.Contains(o.added[a.Name], target.ID()) {
		o.added[a.Name] = append(o.added[a.Name], target.ID())
	}
	return nil
}

// RemoveMatching removes every annotation present on target when this
// operation is applied for which pred returns true.
func (o *Overlay) RemoveMatching(target Declaration, pred AnnotationPredicate) error {
	return o.enqueue(target, overlayOp{kind: opRemoveMatching, pred: pred})
}

// RemoveAll clears every annotation accumulated on target so far. Later Adds
// still apply.
func (o *Overlay) RemoveAll(target Declaration) error {
	return o.enqueue(target, overlayOp{kind: opRemoveAll})
}

// Effective returns the annotations of d with all staged operations applied.
// The result is a copy the caller may modify.
func (o *Overlay) Effective(d Declaration) []Annotation {
	return slices.Clone(o.view(d))
}

// view is Effective without the copy; callers must not modify the result.
func (o *Overlay) view(d Declaration) []Annotation {
	if o.frozen {
		if anns, ok := o.effective[d.ID()]; ok {
			return anns
		}
		return o.index.NativeAnnotations(d.ID())
	}
	return o.apply(d.ID())
}

func (o *Overlay) apply(id DeclID) []Annotation {
	native := o.index.NativeAnnotations(id)
	ops := o.ops[id]
	if len(ops) == 0 {
		return native
	}
	anns := slices.Clone(native)
	for _, op := range ops {
		switch op.kind {
		case opAdd:
			anns = append(anns, op.ann)
		case opRemoveMatching:
			anns = slices.DeleteFunc(anns, func(a Annotation) bool { return op.pred(a) })
		case opRemoveAll:
			anns = anns[:0]
		}
	}
	if anns == nil {
		anns = []Annotation{}
	}
	return anns
}

// Has reports whether d effectively carries an annotation of type name.
func (o *Overlay) Has(d Declaration, name string) bool {
	return hasAnnotationNamed(o.view(d), name)
}

// AnnotatedWith returns the declarations of kind whose effective annotation
// set contains name, in index order.
func (o *Overlay) AnnotatedWith(kind Kind, name string) []Declaration {
	ids := []DeclID{}
	seen := map[DeclID]bool{}
	consider := func(d Declaration) {
		if d == nil || d.Kind() != kind || seen[d.ID()] {
			return
		}
		seen[d.ID()] = true
		if o.Has(d, name) {
			ids = append(ids, d.ID())
		}
	}
	for _, d := range o.index.AnnotatedWith(name) {
		consider(d)
	}
	for _, id := range o.added[name] {
		consider(o.index.Declaration(id))
	}
	slices.Sort(ids)
	out := make([]Declaration, len(ids))
	for i, id := range ids {
		out[i] = o.index.Declaration(id)
	}
	return out
}

// Targets returns every declaration with at least one staged operation, in
// index order.
func (o *Overlay) Targets() []Declaration {
	ids := make([]DeclID, 0, len(o.ops))
	for id := range o.ops {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Declaration, len(ids))
	for i, id := range ids {
		out[i] = o.index.Declaration(id)
	}
	return out
}

// Pending is the number of staged operations for d.
func (o *Overlay) Pending(d Declaration) int {
	return len(o.ops[d.ID()])
}

// Freeze computes the final effective annotation set of every touched
// declaration and makes the overlay read-only. Calling it again is a no-op.
func (o *Overlay) Freeze() {
	if o.frozen {
		return
	}
	o.effective = make(map[DeclID][]Annotation, len(o.ops))
	for id := range o.ops {
		o.effective[id] = o.apply(id)
	}
	o.frozen = true
}

// Frozen reports whether Freeze was called.
func (o *Overlay) Frozen() bool { return o.frozen }
