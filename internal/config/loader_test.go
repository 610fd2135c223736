package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	assert.NotNil(t, loader)
	assert.NotNil(t, loader.v)
}

func TestLoaderLoad(t *testing.T) {
	t.Run("loads config from file", func(t *testing.T) {
		configFile := filepath.Join(t.TempDir(), "annex.yaml")
		content := `
database: /tmp/index.db
max_diagnostics: 50
sources: [src/main/java]
libraries: [lib]
scripts_dir: scripts
extensions:
  - name: bind
    script: bind.risor
    phase: Enhancement
    priority: 100
    target: classes
    mode: each
    subtypes_of: [com.acme.Service]
    annotated_with: [com.acme.Marker]
fault_tolerance:
  interceptor_priority: 4010
`
		require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

		cfg, err := NewLoader().Load(configFile)
		require.NoError(t, err)
		assert.Equal(t, "/tmp/index.db", cfg.Database)
		assert.Equal(t, 50, cfg.MaxDiagnostics)
		assert.Equal(t, []string{"src/main/java"}, cfg.Sources)
		assert.Equal(t, []string{"lib"}, cfg.Libraries)
		require.Len(t, cfg.Extensions, 1)
		ext := cfg.Extensions[0]
		assert.Equal(t, "bind", ext.Name)
		require.NotNil(t, ext.Priority)
		assert.Equal(t, 100, *ext.Priority)
		assert.Equal(t, []string{"com.acme.Service"}, ext.SubtypesOf)
		assert.Equal(t, []string{"com.acme.Marker"}, ext.AnnotatedWith)
		require.NotNil(t, cfg.FaultTolerance.InterceptorPriority)
		assert.Equal(t, 4010, *cfg.FaultTolerance.InterceptorPriority)
	})

	t.Run("returns empty config for missing file", func(t *testing.T) {
		cfg, err := NewLoader().Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
		require.NoError(t, err)
		assert.Empty(t, cfg.Database)
		assert.Empty(t, cfg.Extensions)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		configFile := filepath.Join(t.TempDir(), "annex.yaml")
		require.NoError(t, os.WriteFile(configFile, []byte("database: from-file.db\n"), 0o644))
		t.Setenv("ANNEX_DATABASE", "from-env.db")
		t.Setenv("ANNEX_FAULT_TOLERANCE_INTERCEPTOR_PRIORITY", "7")

		cfg, err := NewLoader().Load(configFile)
		require.NoError(t, err)
		assert.Equal(t, "from-env.db", cfg.Database)
		require.NotNil(t, cfg.FaultTolerance.InterceptorPriority)
		assert.Equal(t, 7, *cfg.FaultTolerance.InterceptorPriority)
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		configFile := filepath.Join(t.TempDir(), "annex.yaml")
		require.NoError(t, os.WriteFile(configFile, []byte("extensions: [\n"), 0o644))
		_, err := NewLoader().Load(configFile)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading config file")
	})
}

func TestLoadWithDefaults(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "annex.yaml")
	content := `
extensions:
  - script: scripts/add_binding.risor
    phase: ENHANCEMENT
    target: Classes
    exact: [a.A]
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

	cfg, err := NewLoader().LoadWithDefaults(configFile)
	require.NoError(t, err)
	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.Equal(t, DefaultMaxDiagnostics, cfg.MaxDiagnostics)
	require.NotNil(t, cfg.FaultTolerance.Enabled)
	assert.True(t, *cfg.FaultTolerance.Enabled)

	ext := cfg.Extensions[0]
	assert.Equal(t, "add_binding", ext.Name)
	assert.Equal(t, "collection", ext.Mode)
	assert.Equal(t, "enhancement", ext.Phase)
	assert.Equal(t, "classes", ext.Target)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ext     ExtensionConfig
		wantErr string
	}{
		{"ok", ExtensionConfig{Name: "x", Script: "x.risor", Phase: "validation"}, ""},
		{"missing script", ExtensionConfig{Name: "x", Phase: "validation"}, "script is required"},
		{"bad phase", ExtensionConfig{Name: "x", Script: "x.risor", Phase: "later"}, `unknown phase "later"`},
		{"bad target", ExtensionConfig{Name: "x", Script: "x.risor", Phase: "enhancement", Target: "beans", Mode: "each"}, `unknown target "beans"`},
		{"bad mode", ExtensionConfig{Name: "x", Script: "x.risor", Phase: "enhancement", Target: "classes", Mode: "some"}, `unknown mode "some"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{Extensions: []ExtensionConfig{tt.ext}}
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
