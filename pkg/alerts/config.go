package alerts

import (
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// RulesFile is the on-disk structure of an alert rules configuration file.
type RulesFile struct {
	Rules []Rule `yaml:"rules" json:"rules"`
}

// rulesSchema validates the shape of a rules file before the typed rules
// are checked individually; it keeps config mistakes (wrong key, wrong
// scalar type) readable instead of surfacing as zero-valued rules.
var rulesSchema = map[string]any{
	"type":                 "object",
	"required":             []any{"rules"},
	"additionalProperties": false,
	"properties": map[string]any{
		"rules": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"required":             []any{"id", "type"},
				"additionalProperties": false,
				"properties": map[string]any{
					"id":          map[string]any{"type": "string", "minLength": 1},
					"type":        map[string]any{"type": "string", "enum": []any{"failure_rate", "flow_inactivity", "execution_duration"}},
					"percent":     map[string]any{"type": "number"},
					"window_days": map[string]any{"type": "integer"},
					"days":        map[string]any{"type": "integer"},
					"seconds":     map[string]any{"type": "integer"},
				},
			},
		},
	},
}

// LoadRules reads, schema-checks and validates an alert rules YAML file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	if err := validateRulesDocument(raw); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}

	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	for _, rule := range file.Rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("invalid rule %q in %s: %w", rule.ID, path, err)
		}
	}

	return file.Rules, nil
}

func validateRulesDocument(document map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(rulesSchema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("schema violation: %s", errs[0].String())
		}

		return fmt.Errorf("schema violation")
	}

	return nil
}
