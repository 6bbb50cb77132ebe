package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration of one build.
type Config struct {
	// Root is the absolute directory every relative path resolves against.
	// Defaults to the directory holding the config file.
	Root    string         `yaml:"root,omitempty"`
	Input   InputConfig    `yaml:"input"`
	Output  OutputConfig   `yaml:"output"`
	Plugins []PluginConfig `yaml:"plugins"`
	Logging LoggingConfig  `yaml:"logging,omitempty"`
	Metrics MetricsConfig  `yaml:"metrics,omitempty"`
	History HistoryConfig  `yaml:"history,omitempty"`
	Events  EventsConfig   `yaml:"events,omitempty"`
	Watch   WatchConfig    `yaml:"watch,omitempty"`
}

// InputConfig locates the API description.
type InputConfig struct {
	// Path is a local file (relative to Root) or an http(s) URL.
	Path string    `yaml:"path,omitempty"`
	Git  *GitInput `yaml:"git,omitempty"`
}

// GitInput fetches the API description from a git repository.
type GitInput struct {
	URL  string `yaml:"url"`
	Ref  string `yaml:"ref,omitempty"`
	File string `yaml:"file"`
	// Token is used for HTTP basic auth when set.
	Token string `yaml:"token,omitempty"`
}

// OutputConfig controls where and how generated files land.
type OutputConfig struct {
	// Path is a directory, or a single file when it has an extension.
	Path  string `yaml:"path"`
	Clean bool   `yaml:"clean"`
	// Write disables the writeFile phase when false.
	Write bool `yaml:"write"`
	// Barrel disables the index post-pass when false.
	Barrel         bool   `yaml:"barrel"`
	IndexExtension string `yaml:"index_extension,omitempty"`
}

// PluginConfig selects one plugin instance.
type PluginConfig struct {
	Name    string         `yaml:"name"`
	Key     []string       `yaml:"key,omitempty"`
	Options map[string]any `yaml:"options,omitempty"`
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// MetricsConfig enables the Prometheus endpoint in watch mode.
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// HistoryConfig enables the SQLite build history.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
	// Keep bounds the history to the newest builds; zero keeps everything.
	Keep int `yaml:"keep,omitempty"`
}

// EventsConfig enables NATS build notifications.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	// Interval triggers periodic rebuilds for remote inputs; zero disables them.
	Interval time.Duration `yaml:"interval,omitempty"`
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{
		Output: OutputConfig{Write: true, Barrel: true},
	}
	_ = applyDefaults(cfg)
	return cfg
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	loadEnvFiles(filepath.Dir(absPath))

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data, filepath.Dir(absPath))
}

// Parse decodes, validates and normalizes a YAML document. Relative paths
// resolve against baseDir unless the document sets root.
func Parse(data []byte, baseDir string) (*Config, error) {
	expanded := []byte(os.ExpandEnv(string(data)))

	if err := validateSchema(expanded); err != nil {
		return nil, err
	}

	cfg := &Config{Output: OutputConfig{Write: true, Barrel: true}}
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if cfg.Root == "" {
		cfg.Root = baseDir
	} else if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(baseDir, cfg.Root)
	}
	if abs, err := filepath.Abs(cfg.Root); err == nil {
		cfg.Root = abs
	}

	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OutputPath returns the absolute output location.
func (c *Config) OutputPath() string {
	return c.resolve(c.Output.Path)
}

// InputPath returns the absolute input file, or the URL unchanged.
func (c *Config) InputPath() string {
	if IsURL(c.Input.Path) || c.Input.Path == "" {
		return c.Input.Path
	}
	return c.resolve(c.Input.Path)
}

// HistoryPath returns the absolute history database path, or "" when disabled.
func (c *Config) HistoryPath() string {
	if c.History.Path == "" || c.History.Path == ":memory:" {
		return c.History.Path
	}
	return c.resolve(c.History.Path)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// IsURL reports whether s is an http(s) URL.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Input: InputConfig{Path: "./petstore.yaml"},
		Output: OutputConfig{
			Path:           "./src/gen",
			Clean:          true,
			Write:          true,
			Barrel:         true,
			IndexExtension: ".ts",
		},
		Plugins: []PluginConfig{
			{Name: "oas"},
			{Name: "client", Options: map[string]any{
				"output":  "clients",
				"groupBy": map[string]any{"type": "tag", "output": "clients/{{tag}}Controller"},
				"client":  true,
			}},
			{Name: "mocks", Options: map[string]any{"output": "mocks"}},
			{Name: "docs", Options: map[string]any{"output": "docs", "html": false}},
		},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
		History: HistoryConfig{Path: ".specbuilder/history.db", Keep: 50},
		Watch:   WatchConfig{Debounce: 500 * time.Millisecond},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
