package annex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "db", "test.db")
	e, err := New(dbPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

const (
	engineOrdersJava = `package com.acme;

import org.eclipse.microprofile.faulttolerance.Retry;

@Retry(maxRetries = 3)
public class Orders {
    private String region;

    public String place(int qty) { return region; }
}
`
	engineAuditJava = `package com.acme;

@Marker
public class Audit extends Orders {
}
`
	engineBaseJava = `package org.lib;

public abstract class Base {
}
`
)

// writeJava writes files (relative path to content) under a fresh directory.
func writeJava(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func acmeSources(t *testing.T) string {
	return writeJava(t, map[string]string{
		"com/acme/Orders.java": engineOrdersJava,
		"com/acme/Audit.java":  engineAuditJava,
		"build/Ignored.java":   "package ignored; public class Ignored {}",
		"README.md":            "not java",
	})
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_CreatesDatabaseDirectory(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "nested", "index.db")
	e, err := New(dbPath)
	require.NoError(t, err)
	defer e.Close()

	assert.FileExists(t, dbPath)
	assert.NotNil(t, e.Store())
	assert.Equal(t, 0, e.Registry().Len())
}

func TestNew_InvalidPath(t *testing.T) {
	t.Parallel()
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := New(filepath.Join(blocker, "db", "index.db"))
	require.Error(t, err)
}

// =============================================================================
// Indexing
// =============================================================================

func TestIndexDirectory_IndexesJavaFiles(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	stats, err := e.IndexDirectory(context.Background(), acmeSources(t), true)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 2, stats.Classes)
	assert.Equal(t, 1, stats.Methods)
	assert.Equal(t, 1, stats.Fields)

	idx, err := e.Snapshot()
	require.NoError(t, err)
	orders := idx.Class("com.acme.Orders")
	require.NotNil(t, orders)
	assert.True(t, orders.Archived)
	native := idx.NativeAnnotations(orders.ID())
	require.Len(t, native, 1)
	assert.Equal(t, "org.eclipse.microprofile.faulttolerance.Retry", native[0].Name)
	retries, ok := native[0].Attribute("maxRetries")
	require.True(t, ok)
	assert.Equal(t, int64(3), retries)

	audit := idx.Class("com.acme.Audit")
	require.NotNil(t, audit)
	assert.Equal(t, "com.acme.Orders", audit.Superclass)
	assert.Nil(t, idx.Class("ignored.Ignored"))
}

func TestIndexDirectory_SkipsUnchangedFiles(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	root := acmeSources(t)
	ctx := context.Background()

	_, err := e.IndexDirectory(ctx, root, true)
	require.NoError(t, err)

	stats, err := e.IndexDirectory(ctx, root, true)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Files)
	assert.Equal(t, 2, stats.Skipped)

	changed := "package com.acme;\n\npublic class Audit {\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "com", "acme", "Audit.java"), []byte(changed), 0o644))
	stats, err = e.IndexDirectory(ctx, root, true)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Skipped)

	idx, err := e.Snapshot()
	require.NoError(t, err)
	audit := idx.Class("com.acme.Audit")
	require.NotNil(t, audit)
	assert.Empty(t, audit.Superclass)
	assert.Empty(t, idx.NativeAnnotations(audit.ID()))
}

func TestIndexDirectory_LibrarySources(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx := context.Background()
	lib := writeJava(t, map[string]string{"org/lib/Base.java": engineBaseJava})

	_, err := e.IndexDirectory(ctx, acmeSources(t), true)
	require.NoError(t, err)
	_, err = e.IndexDirectory(ctx, lib, false)
	require.NoError(t, err)

	b, err := e.NewBuild()
	require.NoError(t, err)
	idx, ok := b.Index().(*Index)
	require.True(t, ok)
	base := idx.Class("org.lib.Base")
	require.NotNil(t, base)
	assert.False(t, base.Archived)

	names := make([]string, 0)
	for _, ci := range b.Archive().Classes().List() {
		names = append(names, ci.Name())
	}
	assert.ElementsMatch(t, []string{"com.acme.Orders", "com.acme.Audit"}, names)

	// Re-indexing the same file with a different archive flag replaces it.
	stats, err := e.IndexDirectory(ctx, lib, true)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	idx, err = e.Snapshot()
	require.NoError(t, err)
	assert.True(t, idx.Class("org.lib.Base").Archived)
}

func TestIndexFiles_SerialMatchesParallel(t *testing.T) {
	t.Parallel()
	root := acmeSources(t)
	ctx := context.Background()

	serial := newTestEngine(t, WithParallel(false))
	parallel := newTestEngine(t, WithWorkers(2))
	s1, err := serial.IndexDirectory(ctx, root, true)
	require.NoError(t, err)
	s2, err := parallel.IndexDirectory(ctx, root, true)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)

	i1, err := serial.Snapshot()
	require.NoError(t, err)
	i2, err := parallel.Snapshot()
	require.NoError(t, err)
	require.Equal(t, i1.Len(), i2.Len())
	for _, kind := range []Kind{KindPackage, KindClass, KindMethod, KindField} {
		names1 := declNames(i1.All(kind))
		names2 := declNames(i2.All(kind))
		assert.ElementsMatch(t, names1, names2, kind.String())
	}
}

func declNames(decls []Declaration) []string {
	out := make([]string, len(decls))
	for i, d := range decls {
		out[i] = d.Name()
	}
	return out
}

func TestIndexFiles_CancelledContext(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithParallel(false))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(acmeSources(t), "com", "acme", "Orders.java")
	_, err := e.IndexFiles(ctx, []string{path}, true)
	require.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Runs
// =============================================================================

func TestRun_PersistsEffectiveAnnotations(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	_, err := e.IndexDirectory(context.Background(), acmeSources(t), true)
	require.NoError(t, err)

	run, err := e.LastRun()
	require.NoError(t, err)
	assert.Nil(t, run)
	anns, err := e.EffectiveAnnotations("com.acme.Orders")
	require.NoError(t, err)
	assert.Nil(t, anns)

	e.Register(Func1(PhaseEnhancement, "audit", EachClassConfig(AnnotatedWith("com.acme.Marker")),
		func(_ context.Context, cc *ClassConfig) error {
			if err := cc.RemoveAllAnnotations(); err != nil {
				return err
			}
			return cc.AddAnnotation("com.acme.Audited", Attr("level", 2))
		}))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Invocations[PhaseEnhancement])

	run, err = e.LastRun()
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, res.BuildID, run.ID)
	assert.False(t, run.Failed)

	anns, err = e.EffectiveAnnotations("com.acme.Audit")
	require.NoError(t, err)
	require.Len(t, anns, 1)
	assert.Equal(t, "com.acme.Audited", anns[0].Name)
	level, ok := anns[0].Attribute("level")
	require.True(t, ok)
	assert.Equal(t, int64(2), level)

	anns, err = e.EffectiveAnnotations("com.acme.Orders")
	require.NoError(t, err)
	require.Len(t, anns, 1)
	assert.Equal(t, "org.eclipse.microprofile.faulttolerance.Retry", anns[0].Name)

	anns, err = e.EffectiveAnnotations("com.acme.Missing")
	require.NoError(t, err)
	assert.Empty(t, anns)
}

func TestRun_FailedRunIsPersisted(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	_, err := e.IndexDirectory(context.Background(), acmeSources(t), true)
	require.NoError(t, err)

	boom := errors.New("boom")
	e.Register(Func0(PhaseValidation, "fail", func(context.Context) error { return boom }))

	res, err := e.Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.NotNil(t, res)

	run, err := e.LastRun()
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, res.BuildID, run.ID)
	assert.True(t, run.Failed)
}

func TestRun_RegistrationErrorIsNotPersisted(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	e.Register(Func1(PhaseDiscovery, "bad", ClassConfigOf(Exact("com.acme.Orders")),
		func(context.Context, *ClassConfig) error { return nil }))

	_, err := e.Run(context.Background())
	require.ErrorIs(t, err, ErrRegistration)

	run, err := e.LastRun()
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestRun_EachRunSeesFreshOverlay(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	_, err := e.IndexDirectory(context.Background(), acmeSources(t), true)
	require.NoError(t, err)

	e.Register(Func1(PhaseEnhancement, "add", EachClassConfig(Exact("com.acme.Orders")),
		func(_ context.Context, cc *ClassConfig) error {
			return cc.AddAnnotation("com.acme.Extra")
		}))

	for range 2 {
		_, err := e.Run(context.Background())
		require.NoError(t, err)
	}
	anns, err := e.EffectiveAnnotations("com.acme.Orders")
	require.NoError(t, err)
	require.Len(t, anns, 2)
	assert.Equal(t, "com.acme.Extra", anns[1].Name)
}
