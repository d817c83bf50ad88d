package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: an inline input table,
// an optional interpolation environment, and a pipeline script whose
// compiled plans and final output are snapshotted.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Input is the inline table the pipeline runs against.
	Input InputTable `yaml:"input"`

	// Env contains interpolation bindings visible to !! expressions.
	Env map[string]any `yaml:"env,omitempty"`

	// Pipeline is the script: verb calls separated by newlines or |>.
	Pipeline string `yaml:"pipeline"`

	// WantError, when non-empty, is a substring the pipeline error must
	// contain. Scenarios with WantError snapshot the plans emitted
	// before the failure plus the error text.
	WantError string `yaml:"want_error,omitempty"`
}

// InputTable is a column-oriented inline table. Cell values follow
// YAML typing; null cells read as missing.
type InputTable struct {
	Columns []InputColumn `yaml:"columns"`
}

// InputColumn is one named input column.
type InputColumn struct {
	Name  string `yaml:"name"`
	Cells []any  `yaml:"cells"`
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Input.Columns) == 0 {
		return fmt.Errorf("input.columns is required and must be non-empty")
	}
	n := len(s.Input.Columns[0].Cells)
	for i, c := range s.Input.Columns {
		if c.Name == "" {
			return fmt.Errorf("input.columns[%d]: name is required", i)
		}
		if len(c.Cells) != n {
			return fmt.Errorf("input.columns[%d]: %d cells, want %d", i, len(c.Cells), n)
		}
	}
	if s.Pipeline == "" {
		return fmt.Errorf("pipeline is required")
	}
	return nil
}
