package validate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RulesFile is the on-disk validation rule set loaded from YAML.
type RulesFile struct {
	RequiredColumns []string         `yaml:"required_columns"`
	UniqueColumns   []string         `yaml:"unique_columns"`
	ValueRanges     map[string]Range `yaml:"value_ranges"`
}

// LoadRules reads a YAML rules file and merges it onto the given options.
func LoadRules(path string, opts Options) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read rules file: %w", err)
	}
	var rf RulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return opts, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	opts.RequiredColumns = rf.RequiredColumns
	opts.UniqueColumns = rf.UniqueColumns
	opts.ValueRanges = rf.ValueRanges
	return opts, nil
}
