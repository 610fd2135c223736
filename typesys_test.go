package annex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypes_Render(t *testing.T) {
	t.Parallel()
	ty := &Types{}
	str := ty.OfClass("java.lang.String")

	tests := []struct {
		name string
		typ  Type
		str  string
		kind TypeKind
		base string
	}{
		{"void", ty.OfVoid(), "void", TypeVoid, "void"},
		{"primitive", ty.OfPrimitive(Long), "long", TypePrimitive, "long"},
		{"class", str, "java.lang.String", TypeClass, "java.lang.String"},
		{"array", ty.OfArray(ty.OfPrimitive(Int), 2), "int[][]", TypeArray, "int[][]"},
		{"nested array", ty.OfArray(ty.OfArray(str, 1), 1), "java.lang.String[][]", TypeArray, "java.lang.String[][]"},
		{"parameterized", ty.Parameterized("java.util.Map", str, ty.WildcardWithUpperBound(ty.OfClass("a.B"))),
			"java.util.Map<java.lang.String,? extends a.B>", TypeParameterized, "java.util.Map"},
		{"unbounded", ty.WildcardUnbounded(), "?", TypeWildcard, "java.lang.Object"},
		{"lower", ty.WildcardWithLowerBound(str), "? super java.lang.String", TypeWildcard, "java.lang.Object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.str, tt.typ.String())
			assert.Equal(t, tt.kind, tt.typ.Kind())
			assert.Equal(t, tt.base, tt.typ.Name())
		})
	}
}

func TestType_MatchesIgnoresWhitespace(t *testing.T) {
	t.Parallel()
	ty := &Types{}
	m := ty.Parameterized("java.util.Map", ty.OfClass("a.K"), ty.WildcardUnbounded())

	assert.True(t, m.Matches("java.util.Map< a.K, ? >"))
	assert.False(t, m.Matches("java.util.Map<a.K,a.V>"))
	assert.Len(t, m.Arguments(), 2)

	arr := ty.OfArray(ty.OfPrimitive(Byte), 1)
	assert.Equal(t, "byte", arr.Component().String())
	assert.Equal(t, 1, arr.Dimensions())

	_, ok := ty.WildcardUnbounded().Bound()
	assert.False(t, ok)
	b, lower := ty.WildcardWithLowerBound(ty.OfClass("a.X")).Bound()
	assert.True(t, lower)
	assert.Equal(t, "a.X", b.Name())
}
