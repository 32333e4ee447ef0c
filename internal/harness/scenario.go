package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario for the scheduler.
//
// A scenario declares roots, drives a sequence of scheduling steps against
// a real scheduler (with a manually fired deferred callback, so Async
// behavior is deterministic), and asserts on the final container contents.
// The recorded trace is what golden files compare against.
type Scenario struct {
	// Name uniquely identifies this scenario; it is also the golden file
	// name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Roots declares the containers available to the steps.
	Roots []RootDecl `yaml:"roots"`

	// Steps is the scheduling sequence to execute.
	Steps []Step `yaml:"steps"`

	// Expect maps container names to the contents they must hold after all
	// steps ran. Containers not listed are not checked.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// RootDecl declares one root.
type RootDecl struct {
	// Container is the host handle the root renders into.
	Container string `yaml:"container"`

	// Mode is "legacy" (sync by default) or "async".
	Mode string `yaml:"mode"`
}

// Step is one scheduling action. Exactly one directive must be set.
//
// Nested step lists (batch, flush_sync, controlled, async_zone) execute
// inside the corresponding scheduler scope.
type Step struct {
	Render       *RenderStep   `yaml:"render,omitempty"`
	Dispatch     *DispatchStep `yaml:"dispatch,omitempty"`
	Batch        []Step        `yaml:"batch,omitempty"`
	FlushSync    []Step        `yaml:"flush_sync,omitempty"`
	Controlled   []Step        `yaml:"controlled,omitempty"`
	AsyncZone    []Step        `yaml:"async_zone,omitempty"`
	FireDeferred bool          `yaml:"fire_deferred,omitempty"`
	Unmount      string        `yaml:"unmount,omitempty"`
}

// RenderStep replaces a container's state wholesale.
type RenderStep struct {
	Container string `yaml:"container"`
	Value     any    `yaml:"value"`
}

// DispatchStep requests a state transformation: the scenario model is
// string state, and each dispatch appends a suffix. Folding several
// dispatches into one pass is therefore directly visible in the trace.
type DispatchStep struct {
	Container string `yaml:"container"`
	Append    string `yaml:"append"`
}

// LoadScenario reads and parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &s, nil
}

// Validate checks the scenario for structural problems: missing name or
// roots, duplicate or unknown containers, invalid modes, and steps that set
// zero or several directives.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario has no name")
	}
	if len(s.Roots) == 0 {
		return fmt.Errorf("scenario %q declares no roots", s.Name)
	}

	declared := make(map[string]bool, len(s.Roots))
	for _, r := range s.Roots {
		if r.Container == "" {
			return fmt.Errorf("scenario %q: root with empty container", s.Name)
		}
		if declared[r.Container] {
			return fmt.Errorf("scenario %q: duplicate container %q", s.Name, r.Container)
		}
		if r.Mode != "legacy" && r.Mode != "async" {
			return fmt.Errorf("scenario %q: container %q has invalid mode %q (want legacy or async)", s.Name, r.Container, r.Mode)
		}
		declared[r.Container] = true
	}

	if err := validateSteps(s.Name, s.Steps, declared); err != nil {
		return err
	}

	for container := range s.Expect {
		if !declared[container] {
			return fmt.Errorf("scenario %q: expect references undeclared container %q", s.Name, container)
		}
	}

	return nil
}

func validateSteps(name string, steps []Step, declared map[string]bool) error {
	for i, st := range steps {
		directives := 0
		if st.Render != nil {
			directives++
			if !declared[st.Render.Container] {
				return fmt.Errorf("scenario %q: step %d renders to undeclared container %q", name, i, st.Render.Container)
			}
		}
		if st.Dispatch != nil {
			directives++
			if !declared[st.Dispatch.Container] {
				return fmt.Errorf("scenario %q: step %d dispatches to undeclared container %q", name, i, st.Dispatch.Container)
			}
		}
		for _, nested := range [][]Step{st.Batch, st.FlushSync, st.Controlled, st.AsyncZone} {
			if nested != nil {
				directives++
				if err := validateSteps(name, nested, declared); err != nil {
					return err
				}
			}
		}
		if st.FireDeferred {
			directives++
		}
		if st.Unmount != "" {
			directives++
			if !declared[st.Unmount] {
				return fmt.Errorf("scenario %q: step %d unmounts undeclared container %q", name, i, st.Unmount)
			}
		}
		if directives != 1 {
			return fmt.Errorf("scenario %q: step %d must set exactly one directive, has %d", name, i, directives)
		}
	}
	return nil
}
