package annex

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlay_AddThenRemoveMatching(t *testing.T) {
	t.Parallel()
	idx := newFixtureIndex(t)
	o := NewOverlay(idx)
	c := idx.Class("com.acme.Helper")

	require.NoError(t, o.Add(c, NewAnnotation(annBinding)))
	require.NoError(t, o.RemoveMatching(c, AnnotationNamed(annBinding)))
	o.Freeze()

	assert.Empty(t, o.Effective(c))
	assert.False(t, o.Has(c, annBinding))
}

func TestOverlay_RemoveMatchingSeesOnlyEarlierOps(t *testing.T) {
	t.Parallel()
	idx := newFixtureIndex(t)
	o := NewOverlay(idx)
	c := idx.Class("com.acme.OrderService")

	require.NoError(t, o.RemoveMatching(c, AnyAnnotation))
	require.NoError(t, o.Add(c, NewAnnotation(annBinding)))

	assert.Equal(t, []string{annBinding}, annotationNames(o.Effective(c)))
}

func TestOverlay_RemoveAllThenAdd(t *testing.T) {
	t.Parallel()
	idx := newFixtureIndex(t)
	o := NewOverlay(idx)
	c := idx.Class("com.acme.OrderService")

	require.NoError(t, o.Add(c, NewAnnotation("a.First")))
	require.NoError(t, o.RemoveAll(c))
	require.NoError(t, o.Add(c, NewAnnotation("a.Second")))
	o.Freeze()

	assert.Equal(t, []string{"a.Second"}, annotationNames(o.Effective(c)))
}

func TestOverlay_PredicateSeesAttributes(t *testing.T) {
	t.Parallel()
	idx := newFixtureIndex(t)
	o := NewOverlay(idx)
	c := idx.Class("com.acme.Base")

	require.NoError(t, o.Add(c, NewAnnotation("a.Priority", Attr("value", 1))))
	require.NoError(t, o.Add(c, NewAnnotation("a.Priority", Attr("value", 2))))
	require.NoError(t, o.RemoveMatching(c, func(a Annotation) bool {
		v, _ := a.Value()
		return v == int64(1)
	}))

	anns := o.Effective(c)
	require.Len(t, anns, 1)
	v, _ := anns[0].Value()
	assert.Equal(t, int64(2), v)
}

func TestOverlay_NativeAnnotationsUntouched(t *testing.T) {
	t.Parallel()
	idx := newFixtureIndex(t)
	o := NewOverlay(idx)
	c := idx.Class("com.acme.OrderService")

	require.NoError(t, o.RemoveAll(c))
	assert.Empty(t, o.Effective(c))
	assert.Equal(t, []string{annMarker}, annotationNames(idx.NativeAnnotations(c.ID())))
}

func TestOverlay_EffectiveIsACopy(t *testing.T) {
	t.Parallel()
	idx := newFixtureIndex(t)
	o := NewOverlay(idx)
	c := idx.Class("com.acme.OrderService")

	got := o.Effective(c)
	require.Len(t, got, 1)
	got[0] = NewAnnotation("com.acme.Intruder")
	assert.Equal(t, []string{annMarker}, annotationNames(idx.NativeAnnotations(c.ID())))

	o.Freeze()
	got = o.Effective(c)
	got[0] = NewAnnotation("com.acme.Intruder")
	assert.Equal(t, []string{annMarker}, annotationNames(o.Effective(c)))
	assert.Equal(t, []string{annMarker}, annotationNames(idx.NativeAnnotations(c.ID())))
}

func TestOverlay_WriteAfterFreezeFails(t *testing.T) {
	t.Parallel()
	idx := newFixtureIndex(t)
	o := NewOverlay(idx)
	c := idx.Class("com.acme.Helper")
	o.Freeze()
	o.Freeze()
	assert.True(t, o.Frozen())

	for name, write := range map[string]func() error{
		"add":             func() error { return o.Add(c, NewAnnotation(annBinding)) },
		"remove matching": func() error { return o.RemoveMatching(c, AnyAnnotation) },
		"remove all":      func() error { return o.RemoveAll(c) },
	} {
		err := write()
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrOverlayState, name)
		var se *OverlayStateError
		require.True(t, errors.As(err, &se), name)
		assert.Equal(t, name, se.Op)
		assert.Equal(t, "com.acme.Helper", se.Target)
	}
	assert.Empty(t, o.Targets())
}

func TestOverlay_AnnotatedWithMergesIndexAndAdds(t *testing.T) {
	t.Parallel()
	idx := newFixtureIndex(t)
	o := NewOverlay(idx)
	order := idx.Class("com.acme.OrderService")
	helper := idx.Class("com.acme.Helper")

	require.NoError(t, o.Add(helper, NewAnnotation(annMarker)))
	got := o.AnnotatedWith(KindClass, annMarker)
	require.Len(t, got, 2)
	assert.Equal(t, order, got[0])
	assert.Equal(t, helper, got[1])

	require.NoError(t, o.RemoveMatching(order, AnnotationNamed(annMarker)))
	got = o.AnnotatedWith(KindClass, annMarker)
	require.Len(t, got, 1)
	assert.Equal(t, helper, got[0])

	// Method-level markers are not classes.
	assert.Len(t, o.AnnotatedWith(KindMethod, annMarker), 1)
}

func TestOverlay_TargetsInIndexOrder(t *testing.T) {
	t.Parallel()
	idx := newFixtureIndex(t)
	o := NewOverlay(idx)
	helper := idx.Class("com.acme.Helper")
	base := idx.Class("com.acme.Base")

	require.NoError(t, o.Add(helper, NewAnnotation("x.A")))
	require.NoError(t, o.Add(base, NewAnnotation("x.A")))
	require.NoError(t, o.RemoveAll(helper))

	assert.Equal(t, []Declaration{base, helper}, o.Targets())
	assert.Equal(t, 2, o.Pending(helper))
}
