package annex

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/annex/internal/config"
	"github.com/jward/annex/internal/runtime"
)

func scriptRuntime(files map[string]string) *runtime.Runtime {
	fsys := fstest.MapFS{}
	for name, src := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(src)}
	}
	return runtime.NewRuntime("", runtime.WithRuntimeFS(fsys))
}

// =============================================================================
// ScriptCallback
// =============================================================================

func TestScriptCallback_EnhancementWrites(t *testing.T) {
	t.Parallel()
	rt := scriptRuntime(map[string]string{
		"bind.risor": `
for _, e := range elements {
    add_annotation(e["name"], "com.acme.Binding", {"value": "orders"})
    remove_annotation(e["name"], "com.acme.Marker")
}
`,
	})
	cb, err := ScriptCallback(rt, config.ExtensionConfig{
		Name:          "bind",
		Script:        "bind.risor",
		Phase:         "enhancement",
		Target:        "classes",
		Mode:          "each",
		AnnotatedWith: []string{annMarker},
	})
	require.NoError(t, err)

	b := newFixtureBuild(t)
	r := NewRegistry()
	r.Register(cb)
	res, err := b.Run(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Invocations[PhaseEnhancement])

	order := mustClass(t, b, "com.acme.OrderService")
	anns := res.Overlay.Effective(order)
	require.Len(t, anns, 1)
	assert.Equal(t, annBinding, anns[0].Name)
	v, ok := anns[0].Value()
	require.True(t, ok)
	assert.Equal(t, "orders", v)
}

func TestScriptCallback_ReadOnlyOutsideEnhancement(t *testing.T) {
	t.Parallel()
	rt := scriptRuntime(map[string]string{
		"check.risor": `add_annotation(elements[0]["name"], "com.acme.Binding")`,
	})
	cb, err := ScriptCallback(rt, config.ExtensionConfig{
		Name:   "check",
		Script: "check.risor",
		Phase:  "validation",
		Target: "classes",
		Exact:  []string{"com.acme.Helper"},
	})
	require.NoError(t, err)

	b := newFixtureBuild(t)
	r := NewRegistry()
	r.Register(cb)
	_, err = b.Run(context.Background(), r)
	require.ErrorIs(t, err, ErrCallback)
	assert.Contains(t, err.Error(), "read-only during validation")
	assert.False(t, b.Overlay().Has(mustClass(t, b, "com.acme.Helper"), annBinding))
}

func TestScriptCallback_ReportsWithoutTarget(t *testing.T) {
	t.Parallel()
	rt := scriptRuntime(map[string]string{
		"audit.risor": `
if len(elements) != 0 {
    error("unexpected elements")
}
warn("audited", "com.acme.Helper")
info("done")
`,
	})
	cb, err := ScriptCallback(rt, config.ExtensionConfig{Script: "audit.risor", Phase: "synthesis"})
	require.NoError(t, err)
	assert.Equal(t, "audit.risor", cb.Name())
	require.Len(t, cb.Params(), 1)

	b := newFixtureBuild(t)
	r := NewRegistry()
	r.Register(cb)
	res, err := b.Run(context.Background(), r)
	require.NoError(t, err)

	items := res.Diagnostics.Items()
	require.Len(t, items, 2)
	assert.Equal(t, SevWarning, items[0].Severity)
	assert.Equal(t, "com.acme.Helper", items[0].Target)
	assert.Equal(t, "audit.risor", items[0].Callback)
	assert.Equal(t, PhaseSynthesis, items[0].Phase)
	assert.Equal(t, "done", items[1].Message)
}

func TestScriptCallback_Priority(t *testing.T) {
	t.Parallel()
	prio := 50
	cb, err := ScriptCallback(scriptRuntime(nil), config.ExtensionConfig{
		Name: "p", Script: "p.risor", Phase: "enhancement", Priority: &prio,
	})
	require.NoError(t, err)
	got, ok := cb.Priority()
	assert.True(t, ok)
	assert.Equal(t, 50, got)
}

func TestScriptCallback_RejectsBadDescriptors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		ext  config.ExtensionConfig
		want string
	}{
		{"phase", config.ExtensionConfig{Script: "a.risor", Phase: "compile"}, "unknown phase"},
		{"target", config.ExtensionConfig{Script: "a.risor", Phase: "validation", Target: "packages"}, "unknown target"},
		{"mode one", config.ExtensionConfig{Script: "a.risor", Phase: "validation", Target: "classes", Mode: "one"}, "not supported"},
		{"mode", config.ExtensionConfig{Script: "a.risor", Phase: "validation", Target: "classes", Mode: "many"}, "unknown mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ScriptCallback(scriptRuntime(nil), tt.ext)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestScriptCallback_UnderSpecifiedTargetFailsRegistration(t *testing.T) {
	t.Parallel()
	cb, err := ScriptCallback(scriptRuntime(nil), config.ExtensionConfig{
		Name: "wide", Script: "wide.risor", Phase: "validation", Target: "methods",
	})
	require.NoError(t, err)

	r := NewRegistry()
	r.Register(cb)
	require.ErrorIs(t, r.Validate(), ErrRegistration)
}

// =============================================================================
// Engine.RegisterScripts
// =============================================================================

func TestEngine_RegisterScripts(t *testing.T) {
	t.Parallel()
	fsys := fstest.MapFS{
		"ok.risor": &fstest.MapFile{Data: []byte(`info("ok")`)},
	}
	e, err := New(filepath.Join(t.TempDir(), "annex.db"), WithScriptsFS(fsys))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	require.NoError(t, e.RegisterScripts(config.ExtensionConfig{Name: "ok", Script: "ok.risor", Phase: "validation"}))
	assert.Equal(t, 1, e.Registry().Len())

	err = e.RegisterScripts(config.ExtensionConfig{Name: "missing", Script: "missing.risor", Phase: "validation"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
	assert.Equal(t, 1, e.Registry().Len())
}
