package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SPECBUILDER_"

// envOverrides are applied on top of the decoded file.
type envOverrides struct {
	Root          string `env:"ROOT"`
	Input         string `env:"INPUT"`
	Output        string `env:"OUTPUT"`
	OutputWrite   string `env:"OUTPUT_WRITE"`
	OutputClean   string `env:"OUTPUT_CLEAN"`
	LogLevel      string `env:"LOG_LEVEL"`
	LogFormat     string `env:"LOG_FORMAT"`
	MetricsListen string `env:"METRICS_LISTEN"`
	HistoryPath   string `env:"HISTORY_PATH"`
	NATSURL       string `env:"NATS_URL"`
	GitToken      string `env:"GIT_TOKEN"`
}

// loadEnvFiles loads .env.local then .env from dir. Existing process
// variables always win, so .env.local takes precedence over .env.
func loadEnvFiles(dir string) {
	for _, name := range []string{".env.local", ".env"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			fmt.Fprintf(os.Stderr, "Note: could not load %s: %v\n", p, err)
		}
	}
}

func applyEnvOverrides(cfg *Config) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	setIf := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setIf(&cfg.Root, o.Root)
	setIf(&cfg.Input.Path, o.Input)
	setIf(&cfg.Output.Path, o.Output)
	setIf(&cfg.Metrics.Listen, o.MetricsListen)
	setIf(&cfg.History.Path, o.HistoryPath)
	setIf(&cfg.Events.NATSURL, o.NATSURL)
	if o.LogLevel != "" {
		cfg.Logging.Level = LogLevel(o.LogLevel)
	}
	if o.LogFormat != "" {
		cfg.Logging.Format = LogFormat(o.LogFormat)
	}
	if o.GitToken != "" && cfg.Input.Git != nil {
		cfg.Input.Git.Token = o.GitToken
	}

	if err := parseBoolOverride(&cfg.Output.Write, EnvPrefix+"OUTPUT_WRITE", o.OutputWrite); err != nil {
		return err
	}
	return parseBoolOverride(&cfg.Output.Clean, EnvPrefix+"OUTPUT_CLEAN", o.OutputClean)
}

func parseBoolOverride(dst *bool, name, raw string) error {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", name, raw, err)
	}
	*dst = v
	return nil
}
