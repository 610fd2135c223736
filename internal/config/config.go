// Package config provides configuration loading for the annex CLI.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Default values applied by WithDefaults.
const (
	DefaultDatabase       = ".annex/index.db"
	DefaultMaxDiagnostics = 1000
)

// ExtensionConfig describes one Risor script extension.
type ExtensionConfig struct {
	// Name identifies the callback in diagnostics. Default: script base name.
	Name string `mapstructure:"name"`

	// Script is the path to the .risor file, relative to ScriptsDir.
	Script string `mapstructure:"script"`

	// Phase is one of discovery, enhancement, synthesis, validation.
	Phase string `mapstructure:"phase"`

	// Priority orders callbacks within a phase; higher runs first.
	// Unset means "after every prioritized callback".
	Priority *int `mapstructure:"priority"`

	// Target is the element kind: classes, methods, constructors or fields.
	// Empty means the script takes no query parameter.
	Target string `mapstructure:"target"`

	// Mode is "each" (one invocation per match) or "collection" (one
	// invocation with every match). Default: collection.
	Mode string `mapstructure:"mode"`

	Exact         []string `mapstructure:"exact"`
	SubtypesOf    []string `mapstructure:"subtypes_of"`
	AnnotatedWith []string `mapstructure:"annotated_with"`
}

// FaultToleranceConfig controls the bundled fault-tolerance extension.
type FaultToleranceConfig struct {
	// Enabled defaults to true.
	Enabled *bool `mapstructure:"enabled"`

	// InterceptorPriority replaces the interceptor's priority annotation
	// when set. Env: ANNEX_FAULT_TOLERANCE_INTERCEPTOR_PRIORITY
	InterceptorPriority *int `mapstructure:"interceptor_priority"`
}

// Config represents the annex configuration loaded from annex.yaml.
type Config struct {
	// Database is the SQLite index path. Env: ANNEX_DATABASE
	Database string `mapstructure:"database"`

	// Verbose enables debug logging. Env: ANNEX_VERBOSE
	Verbose bool `mapstructure:"verbose"`

	// MaxDiagnostics caps the diagnostics kept per run. Env: ANNEX_MAX_DIAGNOSTICS
	MaxDiagnostics int `mapstructure:"max_diagnostics"`

	// Sources are application source roots (archived declarations).
	Sources []string `mapstructure:"sources"`

	// Libraries are source roots indexed as non-archived declarations.
	Libraries []string `mapstructure:"libraries"`

	// ScriptsDir is the base directory for extension scripts.
	ScriptsDir string `mapstructure:"scripts_dir"`

	Extensions []ExtensionConfig `mapstructure:"extensions"`

	FaultTolerance FaultToleranceConfig `mapstructure:"fault_tolerance"`
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
func (c *Config) WithDefaults() *Config {
	out := *c
	if out.Database == "" {
		out.Database = DefaultDatabase
	}
	if out.MaxDiagnostics <= 0 {
		out.MaxDiagnostics = DefaultMaxDiagnostics
	}
	if out.FaultTolerance.Enabled == nil {
		enabled := true
		out.FaultTolerance.Enabled = &enabled
	}
	out.Extensions = make([]ExtensionConfig, len(c.Extensions))
	for i, ext := range c.Extensions {
		if ext.Name == "" {
			ext.Name = strings.TrimSuffix(filepath.Base(ext.Script), filepath.Ext(ext.Script))
		}
		if ext.Mode == "" {
			ext.Mode = "collection"
		}
		ext.Phase = strings.ToLower(ext.Phase)
		ext.Target = strings.ToLower(ext.Target)
		out.Extensions[i] = ext
	}
	return &out
}

var (
	validPhases  = map[string]bool{"discovery": true, "enhancement": true, "synthesis": true, "validation": true}
	validTargets = map[string]bool{"": true, "classes": true, "methods": true, "constructors": true, "fields": true}
	validModes   = map[string]bool{"each": true, "collection": true}
)

// Validate reports every malformed extension entry.
func (c *Config) Validate() error {
	var errs []error
	for i, ext := range c.Extensions {
		label := ext.Name
		if label == "" {
			label = fmt.Sprintf("extensions[%d]", i)
		}
		if ext.Script == "" {
			errs = append(errs, fmt.Errorf("%s: script is required", label))
		}
		if !validPhases[ext.Phase] {
			errs = append(errs, fmt.Errorf("%s: unknown phase %q", label, ext.Phase))
		}
		if !validTargets[ext.Target] {
			errs = append(errs, fmt.Errorf("%s: unknown target %q", label, ext.Target))
		}
		if ext.Target != "" && !validModes[ext.Mode] {
			errs = append(errs, fmt.Errorf("%s: unknown mode %q", label, ext.Mode))
		}
	}
	return errors.Join(errs...)
}
