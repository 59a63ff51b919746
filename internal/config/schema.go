package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stitchworks/atelier/internal/core/domain"
)

type schemaOverrideFile struct {
	Categories map[string][]string `yaml:"categories"`
}

// LoadSchemaOverrides reads a YAML category-schema file and applies it to
// the registry. An empty path is a no-op so deployments without custom
// categories need no file at all.
func LoadSchemaOverrides(path string, registry *domain.Registry) error {
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema overrides %s: %w", path, err)
	}

	var file schemaOverrideFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse schema overrides %s: %w", path, err)
	}
	if len(file.Categories) == 0 {
		return fmt.Errorf("schema overrides %s: no categories defined", path)
	}

	if err := registry.ApplyOverrides(file.Categories); err != nil {
		return fmt.Errorf("schema overrides %s: %w", path, err)
	}
	return nil
}
