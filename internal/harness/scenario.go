package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/membrane/internal/policy"
)

// Scenario defines one membrane conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario (and its golden file).
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session is the fixed session id recorded in the audit log.
	// Defaults to "test-session".
	Session string `yaml:"session,omitempty"`

	// World is the host object graph reachable from the root record.
	World World `yaml:"world"`

	// Policy is an inline whitelist table applied before the steps.
	Policy *policy.Table `yaml:"policy,omitempty"`

	// PolicyFile names a CUE or YAML table, relative to the scenario file.
	// Applied after Policy.
	PolicyFile string `yaml:"policy_file,omitempty"`

	// Steps are the operations to run, in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked against the audit log after the steps.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// World describes the host objects of a scenario.
type World struct {
	// Records are literal root slots.
	Records map[string]any `yaml:"records,omitempty"`

	// Functions are host functions placed at dotted paths. Missing
	// intermediate records are created.
	Functions []FuncDef `yaml:"functions,omitempty"`
}

// FuncDef places one builtin host function in the world.
type FuncDef struct {
	Path    string `yaml:"path"`
	Builtin string `yaml:"builtin"`

	// Prototype gives the function a prototype holding the named builtin
	// methods.
	Prototype map[string]string `yaml:"prototype,omitempty"`
}

// Step is one operation against the membrane.
type Step struct {
	Op     string     `yaml:"op"`
	Target string     `yaml:"target,omitempty"`
	Name   string     `yaml:"name,omitempty"`
	Value  *yaml.Node `yaml:"value,omitempty"`
	Args   []any      `yaml:"args,omitempty"`

	// All lists inherited names too (keys).
	All bool `yaml:"all,omitempty"`

	// Stamps names saved trademarks whose stamps are applied (stamp).
	Stamps []string `yaml:"stamps,omitempty"`

	// Guard names a saved trademark whose guard is checked (guard).
	Guard string `yaml:"guard,omitempty"`

	// Module names a builtin module (load); ID overrides its module id.
	Module string `yaml:"module,omitempty"`
	ID     string `yaml:"id,omitempty"`

	// Save stores the step result under a variable name.
	Save string `yaml:"save,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks a step result.
type Expect struct {
	// Value is compared against the rendered result.
	Value *yaml.Node `yaml:"value,omitempty"`

	// Same names a reference the result must be identical to.
	Same string `yaml:"same,omitempty"`

	// Error is the expected error code; "" expects success.
	Error string `yaml:"error,omitempty"`

	// Frozen checks whether the result is frozen.
	Frozen *bool `yaml:"frozen,omitempty"`
}

// Assertion validates the audit log after all steps ran.
type Assertion struct {
	// Type is one of fault_contains, fault_count, outcome.
	Type string `yaml:"type"`

	// Op, Name and Code filter faults (fault_contains, fault_count).
	Op   string `yaml:"op,omitempty"`
	Name string `yaml:"name,omitempty"`
	Code string `yaml:"code,omitempty"`

	// Count is the expected number of matching faults (fault_count).
	Count int `yaml:"count,omitempty"`

	// Module and Success check a recorded outcome (outcome).
	Module  string `yaml:"module,omitempty"`
	Success bool   `yaml:"success,omitempty"`
}

// Step operations.
const (
	OpRead      = "read"
	OpWrite     = "write"
	OpDelete    = "delete"
	OpHas       = "has"
	OpCall      = "call"
	OpConstruct = "construct"
	OpKeys      = "keys"
	OpFreeze    = "freeze"
	OpTame      = "tame"
	OpUntame    = "untame"
	OpTrademark = "trademark"
	OpStamp     = "stamp"
	OpGuard     = "guard"
	OpLoad      = "load"
)

// Assertion types.
const (
	AssertFaultContains = "fault_contains"
	AssertFaultCount    = "fault_count"
	AssertOutcome       = "outcome"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// PolicyFile is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.PolicyFile != "" && !filepath.IsAbs(s.PolicyFile) {
		s.PolicyFile = filepath.Join(filepath.Dir(path), s.PolicyFile)
	}
	return s, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
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
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, f := range s.World.Functions {
		if f.Path == "" {
			return fmt.Errorf("world.functions[%d]: path is required", i)
		}
		if _, ok := builtinFuncs[f.Builtin]; !ok {
			return fmt.Errorf("world.functions[%d]: unknown builtin %q", i, f.Builtin)
		}
		for name, b := range f.Prototype {
			if _, ok := builtinFuncs[b]; !ok {
				return fmt.Errorf("world.functions[%d].prototype.%s: unknown builtin %q", i, name, b)
			}
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	need := func(ok bool, field string) error {
		if !ok {
			return fmt.Errorf("%s is required for %s", field, step.Op)
		}
		return nil
	}
	switch step.Op {
	case OpRead, OpDelete, OpHas:
		if err := need(step.Target != "", "target"); err != nil {
			return err
		}
		return need(step.Name != "", "name")
	case OpWrite:
		if err := need(step.Target != "" && step.Name != "", "target and name"); err != nil {
			return err
		}
		return need(step.Value != nil, "value")
	case OpCall, OpConstruct, OpKeys, OpFreeze:
		return need(step.Target != "", "target")
	case OpTame, OpUntame:
		return need(step.Value != nil, "value")
	case OpTrademark:
		if err := need(step.Name != "", "name"); err != nil {
			return err
		}
		return need(step.Save != "", "save")
	case OpStamp:
		if err := need(step.Target != "", "target"); err != nil {
			return err
		}
		return need(len(step.Stamps) > 0, "stamps")
	case OpGuard:
		if err := need(step.Guard != "", "guard"); err != nil {
			return err
		}
		return need(step.Value != nil, "value")
	case OpLoad:
		if _, ok := builtinModules[step.Module]; !ok {
			return fmt.Errorf("unknown module %q", step.Module)
		}
		return nil
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertFaultContains:
		if a.Op == "" && a.Name == "" && a.Code == "" {
			return fmt.Errorf("fault_contains needs op, name or code")
		}
	case AssertFaultCount:
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for fault_count")
		}
	case AssertOutcome:
		if a.Module == "" {
			return fmt.Errorf("module is required for outcome")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// Ops lists every step operation, sorted.
func Ops() []string {
	ops := []string{OpRead, OpWrite, OpDelete, OpHas, OpCall, OpConstruct, OpKeys,
		OpFreeze, OpTame, OpUntame, OpTrademark, OpStamp, OpGuard, OpLoad}
	slices.Sort(ops)
	return ops
}
