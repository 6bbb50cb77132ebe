package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateConfig performs the semantic checks the schema cannot express.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	v := &configurationValidator{config: cfg}
	return v.validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateInput(); err != nil {
		return err
	}
	if err := cv.validateOutput(); err != nil {
		return err
	}
	return cv.validatePlugins()
}

func (cv *configurationValidator) validateInput() error {
	in := cv.config.Input
	if in.Path != "" && in.Git != nil {
		return errors.New("input: path and git are mutually exclusive")
	}
	if in.Git != nil && IsURL(in.Git.File) {
		return errors.New("input.git.file must be a path inside the repository")
	}
	return nil
}

func (cv *configurationValidator) validateOutput() error {
	out := cv.config.Output
	if strings.TrimSpace(out.Path) == "" {
		return errors.New("output.path is required")
	}
	if cv.config.Root != "" && Contains(cv.config.OutputPath(), cv.config.Root) {
		return fmt.Errorf("output.path %q must not be the root or one of its parents", out.Path)
	}
	if !strings.HasPrefix(out.IndexExtension, ".") || len(out.IndexExtension) < 2 {
		return fmt.Errorf("output.index_extension %q must look like .ts", out.IndexExtension)
	}
	return nil
}

func (cv *configurationValidator) validatePlugins() error {
	keys := make(map[string]int)
	for i, p := range cv.config.Plugins {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("plugins[%d]: name is required", i)
		}
		if len(p.Key) == 0 {
			continue
		}
		k := strings.Join(p.Key, "/")
		if prev, dup := keys[k]; dup {
			return fmt.Errorf("plugins[%d]: key %q already used by plugins[%d]", i, k, prev)
		}
		keys[k] = i
	}
	return nil
}

// Contains reports whether child is parent or lies below it.
func Contains(parent, child string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(child))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
