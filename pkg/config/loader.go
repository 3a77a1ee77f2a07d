package config

import (
	"fmt"
	"log/slog"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoaderOptions controls where config is read from and whether changes are
// watched.
type LoaderOptions struct {
	Path string

	// Watch reloads the config when the file changes and invokes OnChange.
	Watch    bool
	OnChange func(*Config) error
}

// Loader reads, expands, and unmarshals the YAML config file.
type Loader struct {
	koanf    *koanf.Koanf
	options  LoaderOptions
	provider *file.File
}

func NewLoader(opts LoaderOptions) (*Loader, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}
	return &Loader{
		koanf:    koanf.New("."),
		options:  opts,
		provider: file.Provider(opts.Path),
	}, nil
}

func (l *Loader) Load() (*Config, error) {
	if err := l.koanf.Load(l.provider, yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", l.options.Path, err)
	}

	if err := l.expandEnvVarsInKoanf(); err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}

	if l.options.Watch {
		l.watch()
	}

	return cfg, nil
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := &Config{}
	if err := l.koanf.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (l *Loader) expandEnvVarsInKoanf() error {
	expanded, ok := ExpandEnvVarsInData(l.koanf.Raw()).(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected type after env var expansion")
	}

	fresh := koanf.New(".")
	if err := fresh.Load(confmap.Provider(expanded, "."), nil); err != nil {
		return fmt.Errorf("failed to load expanded config: %w", err)
	}
	l.koanf = fresh
	return nil
}

// watch reloads the file on change. The file provider's watcher is fsnotify
// based; a change that fails to parse keeps the previous config.
func (l *Loader) watch() {
	err := l.provider.Watch(func(event any, err error) {
		if err != nil {
			slog.Warn("config watch error", "error", err)
			return
		}

		l.koanf = koanf.New(".")
		if loadErr := l.koanf.Load(l.provider, yaml.Parser()); loadErr != nil {
			slog.Warn("config reload failed", "error", loadErr)
			return
		}
		if expandErr := l.expandEnvVarsInKoanf(); expandErr != nil {
			slog.Warn("config reload failed", "error", expandErr)
			return
		}

		cfg, cfgErr := l.unmarshal()
		if cfgErr != nil {
			slog.Warn("config reload rejected", "error", cfgErr)
			return
		}

		slog.Info("configuration reloaded", "path", l.options.Path)
		if l.options.OnChange != nil {
			if cbErr := l.options.OnChange(cfg); cbErr != nil {
				slog.Warn("config change handler failed", "error", cbErr)
			}
		}
	})
	if err != nil {
		slog.Warn("config watch unavailable", "error", err)
	}
}

// LoadConfig is the common entry point: load env files, then the config.
func LoadConfig(path string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	loader, err := NewLoader(LoaderOptions{Path: path})
	if err != nil {
		return nil, err
	}
	return loader.Load()
}
