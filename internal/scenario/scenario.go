// Package scenario loads and validates YAML scenario definitions for the
// loadsink driver.
package scenario

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definition is a whole test definition: identity fields plus the scenarios
// to execute.
type Definition struct {
	TestSuite string     `yaml:"test_suite"`
	TestName  string     `yaml:"test_name"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// Scenario groups a set of steps executed by a number of virtual users.
type Scenario struct {
	Name  string `yaml:"name"`
	Users int    `yaml:"users"`
	Steps []Step `yaml:"steps"`
}

// Step is one HTTP request within a scenario. A step may declare a gjson
// path extracting a numeric field from the response body, reported as an
// ad-hoc gauge alongside the standard statistics.
type Step struct {
	Name       string            `yaml:"name"`
	Method     string            `yaml:"method"`
	URL        string            `yaml:"url"`
	Headers    map[string]string `yaml:"headers"`
	Body       string            `yaml:"body"`
	MetricPath string            `yaml:"metric_path"`
	MetricName string            `yaml:"metric_name"`
	MetricUnit string            `yaml:"metric_unit"`
}

// Load reads and validates a scenario definition file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse scenario file: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the definition for structural problems.
func (d *Definition) Validate() error {
	var issues []string

	if strings.TrimSpace(d.TestSuite) == "" {
		issues = append(issues, "test_suite is required")
	}
	if strings.TrimSpace(d.TestName) == "" {
		issues = append(issues, "test_name is required")
	}
	if len(d.Scenarios) == 0 {
		issues = append(issues, "at least one scenario is required")
	}

	seenScenarios := map[string]int{}
	for idx, sc := range d.Scenarios {
		name := strings.TrimSpace(sc.Name)
		if name == "" {
			issues = append(issues, fmt.Sprintf("scenarios[%d]: name is required", idx))
		} else if prev, ok := seenScenarios[name]; ok {
			issues = append(issues, fmt.Sprintf("scenarios[%d]: duplicate name also defined at index %d", idx, prev))
		} else {
			seenScenarios[name] = idx
		}
		if sc.Users < 1 {
			issues = append(issues, fmt.Sprintf("scenarios[%d]: users must be >= 1", idx))
		}
		if len(sc.Steps) == 0 {
			issues = append(issues, fmt.Sprintf("scenarios[%d]: at least one step is required", idx))
		}

		seenSteps := map[string]int{}
		for stepIdx, step := range sc.Steps {
			stepName := strings.TrimSpace(step.Name)
			if stepName == "" {
				issues = append(issues, fmt.Sprintf("scenarios[%d].steps[%d]: name is required", idx, stepIdx))
			} else if prev, ok := seenSteps[stepName]; ok {
				issues = append(issues, fmt.Sprintf("scenarios[%d].steps[%d]: duplicate name also defined at index %d", idx, stepIdx, prev))
			} else {
				seenSteps[stepName] = stepIdx
			}
			if strings.TrimSpace(step.URL) == "" {
				issues = append(issues, fmt.Sprintf("scenarios[%d].steps[%d]: url is required", idx, stepIdx))
			}
			if step.MetricPath != "" && strings.TrimSpace(step.MetricName) == "" {
				issues = append(issues, fmt.Sprintf("scenarios[%d].steps[%d]: metric_name is required when metric_path is set", idx, stepIdx))
			}
		}
	}

	if len(issues) > 0 {
		return fmt.Errorf("invalid scenario definition: %s", strings.Join(issues, "; "))
	}
	return nil
}
