package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Environment variable prefix for annex configuration.
const envPrefix = "ANNEX"

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "annex.yaml"

// Loader handles loading and merging configuration from file and environment.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("database", "ANNEX_DATABASE")
	_ = v.BindEnv("verbose", "ANNEX_VERBOSE")
	_ = v.BindEnv("max_diagnostics", "ANNEX_MAX_DIAGNOSTICS")
	_ = v.BindEnv("scripts_dir", "ANNEX_SCRIPTS_DIR")
	_ = v.BindEnv("fault_tolerance.interceptor_priority", "ANNEX_FAULT_TOLERANCE_INTERCEPTOR_PRIORITY")

	return &Loader{v: v}
}

// Load reads configFile (DefaultConfigFile when empty). A missing file is
// not an error; environment variables take precedence over file values.
func (l *Loader) Load(configFile string) (*Config, error) {
	if configFile == "" {
		configFile = DefaultConfigFile
	}

	l.v.SetConfigFile(configFile)
	l.v.SetConfigType("yaml")

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// LoadWithDefaults loads configuration, applies defaults and validates it.
func (l *Loader) LoadWithDefaults(configFile string) (*Config, error) {
	cfg, err := l.Load(configFile)
	if err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
