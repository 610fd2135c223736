package annex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	annMarker    = "com.acme.Marker"
	annInject    = "javax.inject.Inject"
	annBinding   = "com.acme.Binding"
	annSingleton = "javax.inject.Singleton"
)

// newFixtureIndex builds a small hierarchy:
//
//	com.lib.LibBase (library)
//	  com.acme.Base
//	    com.acme.AbstractService implements com.acme.Service
//	      com.acme.OrderService @Marker
//	        com.acme.FastOrderService
//	com.acme.Helper extends com.missing.Gone
//	com.acme.Service (interface)
//	  com.acme.AuditedService (interface)
//	    com.acme.AuditService implements com.acme.AuditedService @Singleton
func newFixtureIndex(t *testing.T) *Index {
	t.Helper()
	b := NewIndexBuilder()

	_, err := b.AddPackage("com.acme", NewAnnotation("com.acme.Module"))
	require.NoError(t, err)

	classes := []ClassDecl{
		{Name: "com.lib.LibBase", Library: true},
		{Name: "com.acme.Service", Kind: ClassInterface},
		{Name: "com.acme.Base", Superclass: "com.lib.LibBase"},
		{Name: "com.acme.AbstractService", Superclass: "com.acme.Base", Interfaces: []string{"com.acme.Service"}, Modifiers: []string{"public", "abstract"}},
		{Name: "com.acme.OrderService", Superclass: "com.acme.AbstractService", Annotations: []Annotation{NewAnnotation(annMarker)}},
		{Name: "com.acme.FastOrderService", Superclass: "com.acme.OrderService"},
		{Name: "com.acme.Helper", Superclass: "com.missing.Gone"},
		{Name: "com.acme.AuditedService", Kind: ClassInterface, Interfaces: []string{"com.acme.Service"}},
		{Name: "com.acme.AuditService", Interfaces: []string{"com.acme.AuditedService"}, Annotations: []Annotation{NewAnnotation(annSingleton)}},
		{Name: "com.acme.OrderService.Line", Enclosing: "com.acme.OrderService"},
	}
	for _, c := range classes {
		_, err := b.AddClass(c)
		require.NoError(t, err)
	}

	_, err = b.AddMethod(MethodDecl{Owner: "com.acme.OrderService", Name: ConstructorName, Annotations: []Annotation{NewAnnotation(annInject)}})
	require.NoError(t, err)
	_, err = b.AddMethod(MethodDecl{Owner: "com.acme.OrderService", Name: "place", ReturnType: "java.lang.String", Params: []string{"int"}})
	require.NoError(t, err)
	_, err = b.AddMethod(MethodDecl{Owner: "com.acme.OrderService", Name: "cancel", ReturnType: "void", Annotations: []Annotation{NewAnnotation(annMarker)}})
	require.NoError(t, err)
	_, err = b.AddMethod(MethodDecl{Owner: "com.acme.Helper", Name: "help", ReturnType: "java.util.List<java.lang.String>"})
	require.NoError(t, err)
	_, err = b.AddField(FieldDecl{Owner: "com.acme.OrderService", Name: "count", Type: "int"})
	require.NoError(t, err)
	_, err = b.AddField(FieldDecl{Owner: "com.acme.OrderService", Name: "repo", Type: "com.acme.Repo", Annotations: []Annotation{NewAnnotation(annInject)}})
	require.NoError(t, err)
	_, err = b.AddField(FieldDecl{Owner: "com.acme.Helper", Name: "name", Type: "java.lang.String"})
	require.NoError(t, err)

	return b.Build()
}

func newFixtureBuild(t *testing.T, opts ...BuildOption) *Build {
	t.Helper()
	return NewBuild(newFixtureIndex(t), opts...)
}

func classNames(infos []*ClassInfo) []string {
	out := make([]string, len(infos))
	for i, ci := range infos {
		out[i] = ci.Name()
	}
	return out
}

func annotationNames(anns []Annotation) []string {
	out := make([]string, len(anns))
	for i, a := range anns {
		out[i] = a.Name
	}
	return out
}

func mustClass(t *testing.T, b *Build, name string) *Class {
	t.Helper()
	c := b.classByName(name)
	require.NotNil(t, c, "class %s", name)
	return c
}
