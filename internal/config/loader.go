package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "RESPKV_"

type Loader struct {
	filePath  string
	envPrefix string
	overrides map[string]any
}

type Option func(*Loader)

func WithFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithOverrides applies dotted keys (e.g. "log.level") after every other
// source. Used for command-line flags.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		l.overrides = values
	}
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{envPrefix: EnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) FilePath() string {
	return l.filePath
}

// Load builds a validated Config from all sources.
func (l *Loader) Load() (*Config, error) {
	k := koanf.New(".")

	if l.filePath != "" {
		if err := k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}

	// RESPKV_LOG_LEVEL -> log.level
	transform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "_", ".")
	}
	if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	for key, val := range l.overrides {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("apply override %s: %w", key, err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
