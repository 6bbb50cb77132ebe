package config

import (
	"fmt"
	"time"
)

// DefaultIndexExtension is the barrel file extension used when none is configured.
const DefaultIndexExtension = ".ts"

// DefaultEventsSubject is the NATS subject build summaries are published on.
const DefaultEventsSubject = "specbuilder.builds"

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// OutputDefaultApplier handles output defaults.
type OutputDefaultApplier struct{}

func (OutputDefaultApplier) Domain() string { return "output" }

func (OutputDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Output.IndexExtension == "" {
		cfg.Output.IndexExtension = DefaultIndexExtension
	}
	if cfg.Output.IndexExtension[0] != '.' {
		cfg.Output.IndexExtension = "." + cfg.Output.IndexExtension
	}
	return nil
}

// LoggingDefaultApplier normalizes logging settings.
type LoggingDefaultApplier struct{}

func (LoggingDefaultApplier) Domain() string { return "logging" }

func (LoggingDefaultApplier) ApplyDefaults(cfg *Config) error {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}

// PluginDefaultApplier drops nil option maps so plugins can range safely.
type PluginDefaultApplier struct{}

func (PluginDefaultApplier) Domain() string { return "plugins" }

func (PluginDefaultApplier) ApplyDefaults(cfg *Config) error {
	for i := range cfg.Plugins {
		if cfg.Plugins[i].Options == nil {
			cfg.Plugins[i].Options = map[string]any{}
		}
	}
	return nil
}

// RuntimeDefaultApplier handles watch and events defaults.
type RuntimeDefaultApplier struct{}

func (RuntimeDefaultApplier) Domain() string { return "runtime" }

func (RuntimeDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.Interval < 0 {
		cfg.Watch.Interval = 0
	}
	if cfg.Events.NATSURL != "" && cfg.Events.Subject == "" {
		cfg.Events.Subject = DefaultEventsSubject
	}
	return nil
}

func defaultAppliers() []DefaultApplier {
	return []DefaultApplier{
		OutputDefaultApplier{},
		LoggingDefaultApplier{},
		PluginDefaultApplier{},
		RuntimeDefaultApplier{},
	}
}

func applyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers() {
		if err := a.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("apply %s defaults: %w", a.Domain(), err)
		}
	}
	return nil
}
