package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/internal/domain/shared"
)

// schemaFileHeader is decoded first so a file can start from a preset and
// override only the fields that drifted.
type schemaFileHeader struct {
	Extends string `yaml:"extends"`
}

// LoadSchemaFile reads a SchemaMapping from a YAML file.
//
//	extends: multi_cycle
//	name: school-2025
//	student:
//	  year_group: field_900
//	cycles:
//	  3: {vision: field_901, effort: field_902, ...}
func LoadSchemaFile(path string) (results.SchemaMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return results.SchemaMapping{}, fmt.Errorf("read schema file: %w", err)
	}
	return ParseSchema(data)
}

// ParseSchema decodes a YAML SchemaMapping and validates it.
func ParseSchema(data []byte) (results.SchemaMapping, error) {
	var header schemaFileHeader
	if err := yaml.Unmarshal(data, &header); err != nil {
		return results.SchemaMapping{}, shared.WrapError("config", "LoadSchema", shared.ErrInvalidSchema, "malformed yaml", err)
	}

	var mapping results.SchemaMapping
	if header.Extends != "" {
		base, err := results.Preset(header.Extends)
		if err != nil {
			return results.SchemaMapping{}, shared.WrapError("config", "LoadSchema", shared.ErrInvalidSchema, "unknown base preset", err)
		}
		mapping = base
	}

	if err := yaml.Unmarshal(data, &mapping); err != nil {
		return results.SchemaMapping{}, shared.WrapError("config", "LoadSchema", shared.ErrInvalidSchema, "malformed yaml", err)
	}
	if err := mapping.Validate(); err != nil {
		return results.SchemaMapping{}, shared.WrapError("config", "LoadSchema", shared.ErrInvalidSchema, "invalid mapping", err)
	}
	return mapping, nil
}
