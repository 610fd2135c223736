package annex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ClassQuery
// =============================================================================

func TestClassQuery_Exactly(t *testing.T) {
	t.Parallel()
	b := newFixtureBuild(t)

	got := b.Archive().Classes().Exactly("com.acme.OrderService").List()
	assert.Equal(t, []string{"com.acme.OrderService"}, classNames(got))
}

func TestClassQuery_SubtypeOfExcludesSelf(t *testing.T) {
	t.Parallel()
	b := newFixtureBuild(t)

	got := classNames(b.Archive().Classes().SubtypeOf("com.acme.AuditedService").List())
	assert.Equal(t, []string{"com.acme.AuditService"}, got)

	got = classNames(b.Archive().Classes().SubtypeOf("com.acme.OrderService").List())
	assert.Equal(t, []string{"com.acme.FastOrderService"}, got)
}

func TestClassQuery_SubtypeOfWithExactlyIncludesSelfOnce(t *testing.T) {
	t.Parallel()
	b := newFixtureBuild(t)

	got := classNames(b.Archive().Classes().
		Exactly("com.acme.AuditedService").
		SubtypeOf("com.acme.AuditedService").
		Exactly("com.acme.AuditedService").
		List())
	assert.Equal(t, []string{"com.acme.AuditedService", "com.acme.AuditService"}, got)
}

func TestClassQuery_SupertypeOfWalksAscending(t *testing.T) {
	t.Parallel()
	b := newFixtureBuild(t)

	got := classNames(b.Archive().Classes().SupertypeOf("com.acme.FastOrderService").List())
	// com.lib.LibBase is a library class: the walk passes through it but it
	// is not part of the archive.
	assert.Equal(t, []string{
		"com.acme.FastOrderService",
		"com.acme.OrderService",
		"com.acme.AbstractService",
		"com.acme.Base",
	}, got)
	assert.Zero(t, b.Diagnostics().Count(SevWarning))
}

func TestClassQuery_SupertypeOfStopsAtUnresolvedAncestor(t *testing.T) {
	t.Parallel()
	b := newFixtureBuild(t)

	got := classNames(b.Archive().Classes().SupertypeOf("com.acme.Helper").List())
	assert.Equal(t, []string{"com.acme.Helper"}, got)

	require.Equal(t, 1, b.Diagnostics().Count(SevWarning))
	d := b.Diagnostics().Items()[0]
	assert.Equal(t, SevWarning, d.Severity)
	assert.Contains(t, d.Message, "com.missing.Gone")
	assert.False(t, b.Diagnostics().HasErrors())
}

func TestClassQuery_SupertypeOfStopsOnCycle(t *testing.T) {
	t.Parallel()
	ib := NewIndexBuilder()
	_, err := ib.AddClass(ClassDecl{Name: "p.A", Superclass: "p.B"})
	require.NoError(t, err)
	_, err = ib.AddClass(ClassDecl{Name: "p.B", Superclass: "p.A"})
	require.NoError(t, err)
	b := NewBuild(ib.Build())

	done := make(chan []string, 1)
	go func() {
		done <- classNames(b.Archive().Classes().SupertypeOf("p.A").List())
	}()
	select {
	case got := <-done:
		assert.Equal(t, []string{"p.A", "p.B"}, got)
	case <-time.After(3 * time.Second):
		t.Fatal("SupertypeOf did not return on a cyclic superclass chain")
	}

	require.Equal(t, 1, b.Diagnostics().Count(SevWarning))
	assert.Contains(t, b.Diagnostics().Items()[0].Message, "cyclic superclass chain")
}

func TestClassQuery_UnresolvedNamesAreReported(t *testing.T) {
	t.Parallel()
	b := newFixtureBuild(t)

	got := b.Archive().Classes().Exactly("com.acme.Nope").SubtypeOf("com.acme.Nothing").List()
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.Equal(t, 2, b.Diagnostics().Count(SevWarning))

	// Re-evaluating the same query does not repeat the warnings.
	b.Archive().Classes().Exactly("com.acme.Nope").List()
	assert.Equal(t, 2, b.Diagnostics().Count(SevWarning))
}

func TestClassQuery_AnnotationCategoryUnions(t *testing.T) {
	t.Parallel()
	b := newFixtureBuild(t)

	got := classNames(b.Archive().Classes().AnnotatedWith(annMarker, annSingleton).List())
	assert.Equal(t, []string{"com.acme.OrderService", "com.acme.AuditService"}, got)
}

func TestClassQuery_CategoriesIntersect(t *testing.T) {
	t.Parallel()
	b := newFixtureBuild(t)

	got := classNames(b.Archive().Classes().
		SubtypeOf("com.acme.Service").
		AnnotatedWith(annMarker).
		List())
	assert.Equal(t, []string{"com.acme.OrderService"}, got)
}

func TestClassQuery_NoPredicatesSelectsArchive(t *testing.T) {
	t.Parallel()
	b := newFixtureBuild(t)

	got := classNames(b.Archive().Classes().List())
	assert.NotContains(t, got, "com.lib.LibBase")
	assert.Len(t, got, 9)
	assert.Equal(t, "com.acme.Service", got[0])
}

func TestClassQuery_SeesOverlay(t *testing.T) {
	t.Parallel()
	b := newFixtureBuild(t)
	q := b.Archive().Classes().AnnotatedWith(annBinding)
	assert.Empty(t, q.List())

	require.NoError(t, b.overlay.Add(mustClass(t, b, "com.acme.Helper"), NewAnnotation(annBinding)))
	assert.Equal(t, []string{"com.acme.Helper"}, classNames(q.List()))
}

func TestClassQuery_StreamStopsEarly(t *testing.T) {
	t.Parallel()
	b := newFixtureBuild(t)

	n := 0
	for range b.Archive().Classes().Stream() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestClassQuery_ConfigureRequiresArchiveConfig(t *testing.T) {
	t.Parallel()
	b := newFixtureBuild(t)
	b.phase = PhaseEnhancement

	assert.Empty(t, b.Archive().Classes().Exactly("com.acme.Base").ConfigureList())
	assert.True(t, b.Diagnostics().HasErrors())

	cfgs := b.archiveConfig().Classes().Exactly("com.acme.Base").ConfigureList()
	require.Len(t, cfgs, 1)
	require.NoError(t, cfgs[0].AddAnnotation(annBinding))
	assert.True(t, cfgs[0].HasAnnotation(annBinding))
}

func TestClassQuery_ConfigureMatchesFixedAtStart(t *testing.T) {
	t.Parallel()
	b := newFixtureBuild(t)
	b.phase = PhaseEnhancement
	audit := b.archiveConfig().Classes().Exactly("com.acme.AuditService").ConfigureList()
	require.Len(t, audit, 1)

	q := b.archiveConfig().Classes().AnnotatedWith(annMarker, annSingleton)
	var yielded []string
	for cc := range q.Configure() {
		if len(yielded) == 0 {
			require.NoError(t, audit[0].RemoveAnnotation(AnnotationNamed(annSingleton)))
		}
		yielded = append(yielded, cc.Name())
	}
	assert.Equal(t, []string{"com.acme.OrderService", "com.acme.AuditService"}, yielded)
	assert.Equal(t, []string{"com.acme.OrderService"}, classNames(q.List()))
}

func TestClassQuery_String(t *testing.T) {
	t.Parallel()
	b := newFixtureBuild(t)
	q := b.Archive().Classes().Exactly("a.A").AnnotatedWith("a.M")
	assert.Equal(t, "classes().exactly(a.A).annotatedWith(a.M)", q.String())
	assert.Equal(t, 2, q.Constraints())
}

// =============================================================================
// MethodQuery / FieldQuery
// =============================================================================

func TestMethodQuery_DeclaredOn(t *testing.T) {
	t.Parallel()
	b := newFixtureBuild(t)
	a := b.Archive()

	methods := a.Methods().DeclaredOn(a.Classes().Exactly("com.acme.OrderService")).List()
	require.Len(t, methods, 2)
	assert.Equal(t, "place", methods[0].SimpleName())
	assert.Equal(t, "cancel", methods[1].SimpleName())

	ctors := a.Constructors().DeclaredOn(a.Classes().Exactly("com.acme.OrderService")).List()
	require.Len(t, ctors, 1)
	assert.True(t, ctors[0].IsConstructor())
	assert.True(t, ctors[0].HasAnnotation(annInject))
}

func TestMethodQuery_FiltersIntersect(t *testing.T) {
	t.Parallel()
	b := newFixtureBuild(t)
	a := b.Archive()
	types := a.Types()

	got := a.Methods().WithReturnType(types.OfVoid(), types.OfClass("java.lang.String")).List()
	require.Len(t, got, 2)

	got = a.Methods().WithReturnType(types.OfVoid()).AnnotatedWith(annMarker).List()
	require.Len(t, got, 1)
	assert.Equal(t, "com.acme.OrderService#cancel()", got[0].Name())

	got = a.Methods().WithReturnType(types.Parameterized("java.util.List", types.OfClass("java.lang.String"))).List()
	require.Len(t, got, 1)
	assert.Equal(t, "com.acme.Helper", got[0].DeclaringClass().Name())
}

func TestFieldQuery(t *testing.T) {
	t.Parallel()
	b := newFixtureBuild(t)
	a := b.Archive()

	got := a.Fields().OfType(a.Types().OfPrimitive(Int)).List()
	require.Len(t, got, 1)
	assert.Equal(t, "count", got[0].SimpleName())

	got = a.Fields().DeclaredOn(a.Classes().SubtypeOf("com.acme.Service")).AnnotatedWith(annInject).List()
	require.Len(t, got, 1)
	assert.Equal(t, "com.acme.OrderService#repo", got[0].Name())

	assert.Len(t, a.Fields().List(), 3)
}
