package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/annex/internal/store"
)

const orderServiceSource = `package com.acme.orders;

import java.util.List;
import java.util.Map;
import java.util.concurrent.TimeUnit;
import javax.inject.Inject;
import org.eclipse.microprofile.faulttolerance.Retry;

@Retry(maxRetries = 3, delay = 1_000L, jitter = 0.5, abortOn = {IllegalStateException.class}, enabled = true)
public class OrderService extends BaseService<Order> implements Service, Comparable<OrderService> {

    @Inject
    private Repository repo;

    int count, total[];

    @Inject
    public OrderService(Repository repo) {
        this.repo = repo;
    }

    @Deprecated
    public Map<String, ? extends List<Order>> byCustomer(String customer, int... ids) {
        return null;
    }

    public <T> T convert(T value, TimeUnit unit) {
        return value;
    }

    static class Line {
        String sku;
    }

    public int compareTo(OrderService other) {
        return 0;
    }
}
`

func extract(t *testing.T, path, src string, archived bool) (*store.Batch, Stats) {
	t.Helper()
	b := store.NewBatch()
	stats, err := Java(context.Background(), b, Source{Path: path, FileID: 7, Content: []byte(src), Archived: archived})
	require.NoError(t, err)
	return b, stats
}

func declByName(t *testing.T, b *store.Batch, name string) store.Declaration {
	t.Helper()
	for _, d := range b.Declarations {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("declaration %q not extracted", name)
	return store.Declaration{}
}

func annotationsOf(b *store.Batch, id int64) []store.Annotation {
	var out []store.Annotation
	for _, a := range b.Annotations {
		if a.TargetID == id {
			out = append(out, a)
		}
	}
	return out
}

// =============================================================================
// Classes and supertypes
// =============================================================================

func TestJava_ClassAndSupertypes(t *testing.T) {
	t.Parallel()
	b, stats := extract(t, "src/OrderService.java", orderServiceSource, true)

	assert.Equal(t, 2, stats.Classes)
	cls := declByName(t, b, "com.acme.orders.OrderService")
	assert.Equal(t, store.KindClass, cls.Kind)
	assert.Equal(t, store.ClassKindClass, cls.ClassKind)
	assert.Equal(t, "com.acme.orders", cls.Package)
	assert.Equal(t, []string{"public"}, cls.Modifiers)
	assert.True(t, cls.Archived)
	require.NotNil(t, cls.FileID)
	assert.Equal(t, int64(7), *cls.FileID)

	var supers []string
	for _, st := range b.Supertypes {
		require.Equal(t, cls.ID, st.ClassID)
		supers = append(supers, st.Relation+" "+st.Name)
	}
	assert.Equal(t, []string{
		"extends com.acme.orders.BaseService",
		"implements com.acme.orders.Service",
		"implements java.lang.Comparable",
	}, supers)

	line := declByName(t, b, "com.acme.orders.OrderService.Line")
	require.NotNil(t, line.OwnerID)
	assert.Equal(t, cls.ID, *line.OwnerID)
	assert.Equal(t, []string{"static"}, line.Modifiers)
}

// =============================================================================
// Members
// =============================================================================

func TestJava_Members(t *testing.T) {
	t.Parallel()
	b, stats := extract(t, "src/OrderService.java", orderServiceSource, true)

	assert.Equal(t, 4, stats.Methods)
	assert.Equal(t, 4, stats.Fields)

	ctor := declByName(t, b, "com.acme.orders.OrderService#<init>(com.acme.orders.Repository)")
	assert.Equal(t, "<init>", ctor.SimpleName)
	assert.Equal(t, "void", ctor.TypeExpr)

	by := declByName(t, b, "com.acme.orders.OrderService#byCustomer(java.lang.String,int[])")
	assert.Equal(t, "java.util.Map<java.lang.String,? extends java.util.List<com.acme.orders.Order>>", by.TypeExpr)
	assert.Equal(t, []string{"java.lang.String", "int[]"}, by.Params)
	require.Len(t, annotationsOf(b, by.ID), 1)
	assert.Equal(t, "java.lang.Deprecated", annotationsOf(b, by.ID)[0].Name)

	conv := declByName(t, b, "com.acme.orders.OrderService#convert(T,java.util.concurrent.TimeUnit)")
	assert.Equal(t, "T", conv.TypeExpr)

	repo := declByName(t, b, "com.acme.orders.OrderService#repo")
	assert.Equal(t, "com.acme.orders.Repository", repo.TypeExpr)
	assert.Equal(t, []string{"private"}, repo.Modifiers)
	require.Len(t, annotationsOf(b, repo.ID), 1)
	assert.Equal(t, "javax.inject.Inject", annotationsOf(b, repo.ID)[0].Name)

	assert.Equal(t, "int", declByName(t, b, "com.acme.orders.OrderService#count").TypeExpr)
	assert.Equal(t, "int[]", declByName(t, b, "com.acme.orders.OrderService#total").TypeExpr)
	assert.Equal(t, "java.lang.String", declByName(t, b, "com.acme.orders.OrderService.Line#sku").TypeExpr)
}

func TestJava_OwnerBeforeMember(t *testing.T) {
	t.Parallel()
	b, _ := extract(t, "src/OrderService.java", orderServiceSource, true)

	seen := map[int64]bool{}
	for _, d := range b.Declarations {
		if d.OwnerID != nil {
			assert.True(t, seen[*d.OwnerID], "%s written before its owner", d.Name)
		}
		seen[d.ID] = true
	}
}

// =============================================================================
// Annotation attributes
// =============================================================================

func TestJava_AnnotationAttributes(t *testing.T) {
	t.Parallel()
	b, _ := extract(t, "src/OrderService.java", orderServiceSource, true)

	cls := declByName(t, b, "com.acme.orders.OrderService")
	anns := annotationsOf(b, cls.ID)
	require.Len(t, anns, 1)
	assert.Equal(t, "org.eclipse.microprofile.faulttolerance.Retry", anns[0].Name)

	attrs := map[string]any{}
	for _, a := range anns[0].Attributes {
		attrs[a.Name] = a.Value
	}
	assert.Equal(t, int64(3), attrs["maxRetries"])
	assert.Equal(t, int64(1000), attrs["delay"])
	assert.Equal(t, 0.5, attrs["jitter"])
	assert.Equal(t, true, attrs["enabled"])
	assert.Equal(t, []any{"IllegalStateException.class"}, attrs["abortOn"])
}

func TestJava_SingleValueAnnotation(t *testing.T) {
	t.Parallel()
	src := `package a;

@Named("orders")
@Priority(-5)
interface Api extends Base, Other<String> {
    String NAME = "api";
    void call();
}
`
	b, _ := extract(t, "Api.java", src, true)
	api := declByName(t, b, "a.Api")
	assert.Equal(t, store.ClassKindInterface, api.ClassKind)

	anns := annotationsOf(b, api.ID)
	require.Len(t, anns, 2)
	assert.Equal(t, "a.Named", anns[0].Name)
	assert.Equal(t, []store.Attribute{{Name: "value", Value: "orders"}}, anns[0].Attributes)
	assert.Equal(t, int64(-5), anns[1].Attributes[0].Value)
	assert.Equal(t, 1, anns[1].Ordinal)

	require.Len(t, b.Supertypes, 2)
	assert.Equal(t, store.RelationImplements, b.Supertypes[0].Relation)
	assert.Equal(t, "a.Other", b.Supertypes[1].Name)

	assert.Equal(t, "java.lang.String", declByName(t, b, "a.Api#NAME").TypeExpr)
	assert.Equal(t, "void", declByName(t, b, "a.Api#call()").TypeExpr)
}

// =============================================================================
// Other type kinds
// =============================================================================

func TestJava_EnumRecordAnnotationType(t *testing.T) {
	t.Parallel()
	src := `package a;

public enum Color implements Named {
    RED, @Deprecated GREEN;

    private final int code = 0;

    Color() {}
}

record Point(int x, @Positive int y) {}

@interface Tag {
    String value() default "";
    int[] weights();
}
`
	b, stats := extract(t, "Types.java", src, false)
	assert.Equal(t, 3, stats.Classes)

	color := declByName(t, b, "a.Color")
	assert.Equal(t, store.ClassKindEnum, color.ClassKind)
	assert.False(t, color.Archived)
	red := declByName(t, b, "a.Color#RED")
	assert.Equal(t, "a.Color", red.TypeExpr)
	assert.Len(t, annotationsOf(b, declByName(t, b, "a.Color#GREEN").ID), 1)
	declByName(t, b, "a.Color#code")
	declByName(t, b, "a.Color#<init>()")

	point := declByName(t, b, "a.Point")
	assert.Equal(t, store.ClassKindRecord, point.ClassKind)
	y := declByName(t, b, "a.Point#y")
	assert.Equal(t, "int", y.TypeExpr)
	assert.Len(t, annotationsOf(b, y.ID), 1)

	tag := declByName(t, b, "a.Tag")
	assert.Equal(t, store.ClassKindAnnotation, tag.ClassKind)
	assert.Equal(t, "int[]", declByName(t, b, "a.Tag#weights()").TypeExpr)
}

func TestJava_PackageInfo(t *testing.T) {
	t.Parallel()
	src := `@Module
@Version(2)
package com.acme;

import com.acme.meta.Module;
`
	b, stats := extract(t, "src/com/acme/package-info.java", src, true)
	assert.Zero(t, stats.Classes)

	pkg := declByName(t, b, "com.acme")
	assert.Equal(t, store.KindPackage, pkg.Kind)
	anns := annotationsOf(b, pkg.ID)
	require.Len(t, anns, 2)
	assert.Equal(t, "com.acme.meta.Module", anns[0].Name)
	assert.Equal(t, "com.acme.Version", anns[1].Name)
}

func TestJava_PackageClauseOutsidePackageInfo(t *testing.T) {
	t.Parallel()
	b, _ := extract(t, "Plain.java", "package a;\nclass Plain {}\n", true)
	for _, d := range b.Declarations {
		assert.NotEqual(t, store.KindPackage, d.Kind)
	}
}

func TestLanguageForFile(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"Main.java", "java", true},
		{"Main.JAVA", "java", true},
		{"main.go", "", false},
		{"README", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got, ok := LanguageForFile(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	_, ok := ParserForLanguage("java")
	assert.True(t, ok)
}
