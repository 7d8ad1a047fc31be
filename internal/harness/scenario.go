package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines one end-to-end reconciliation scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// FlowToken is stamped on every dispatch. Defaults to
	// "test-flow-default".
	FlowToken string `yaml:"flow_token,omitempty"`

	// Setup seeds the store before the first step.
	Setup Setup `yaml:"setup,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and store.
	Assertions []Assertion `yaml:"assertions"`
}

// Setup seeds the store. Seeding is not traced.
type Setup struct {
	Grants []SeedGrant `yaml:"grants,omitempty"`
}

// SeedGrant is a share that exists before the scenario starts, as if
// added by hand.
type SeedGrant struct {
	Record string `yaml:"record"`
	User   string `yaml:"user"`
}

// Step is exactly one of save, delete or reconcile.
type Step struct {
	// Save is a record document, validated like any other.
	Save map[string]any `yaml:"save,omitempty"`

	// Delete names an IWO Number to delete.
	Delete string `yaml:"delete,omitempty"`

	// Reconcile names an IWO Number whose on_update hook is re-run.
	Reconcile string `yaml:"reconcile,omitempty"`

	// ExpectGrants is the set of users that must hold a grant on the
	// step's record afterwards. Order does not matter.
	ExpectGrants *[]string `yaml:"expect_grants,omitempty"`

	// ExpectError, when set, must be a substring of the step's error.
	// A step without it must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// kind returns the step's operation name.
func (s Step) kind() string {
	switch {
	case s.Save != nil:
		return "save"
	case s.Delete != "":
		return "delete"
	case s.Reconcile != "":
		return "reconcile"
	}
	return ""
}

// Assertion validates the trace or the final store.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op is a store method (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Args are matched as a subset of the call's args (trace_contains).
	Args map[string]any `yaml:"args,omitempty"`

	// Count is the expected number of calls or notifications.
	Count int `yaml:"count,omitempty"`

	// Ops must first occur in this order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Record and Users describe the expected grant set (grants).
	Record string   `yaml:"record,omitempty"`
	Users  []string `yaml:"users,omitempty"`

	// User owns the notifications being counted (notifications).
	User string `yaml:"user,omitempty"`
}

// Assertion type constants.
const (
	AssertGrants        = "grants"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertNotifications = "notifications"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict fields catch typos like "assertion:" vs "assertions:"
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

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(s.Name, `/\`) {
		return fmt.Errorf("name %q must not contain path separators", s.Name)
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, g := range s.Setup.Grants {
		if g.Record == "" || g.User == "" {
			return fmt.Errorf("setup.grants[%d]: record and user are required", i)
		}
	}

	for i, step := range s.Steps {
		set := 0
		if step.Save != nil {
			set++
		}
		if step.Delete != "" {
			set++
		}
		if step.Reconcile != "" {
			set++
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one of save, delete or reconcile is required", i)
		}
		if step.ExpectError != "" && step.ExpectGrants != nil {
			return fmt.Errorf("steps[%d]: expect_error and expect_grants are exclusive", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertGrants:
		if a.Record == "" {
			return fmt.Errorf("assertions[%d]: record is required for grants", index)
		}
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertNotifications:
		if a.User == "" {
			return fmt.Errorf("assertions[%d]: user is required for notifications", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
