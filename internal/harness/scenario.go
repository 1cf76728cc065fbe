package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/classweave/internal/artifact"
	"github.com/roach88/classweave/internal/classname"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Sentinel overrides the default sentinel class.
	Sentinel string `yaml:"sentinel,omitempty"`

	// Companions overrides the default companion templates.
	Companions []string `yaml:"companions,omitempty"`

	// Debug is the diagnostic level of every run.
	Debug int `yaml:"debug,omitempty"`

	// Classes are compiled into the output root before the first run.
	Classes []ClassSpec `yaml:"classes"`

	// Library classes are only visible through the classpath fallback.
	Library []ClassSpec `yaml:"library,omitempty"`

	// BrokenJars are unreadable archives placed on the classpath after the
	// library directory.
	BrokenJars []string `yaml:"broken_jars,omitempty"`

	// Files are extra files under the output root (manifests, companions
	// with raw content, corrupt classes).
	Files []FileSpec `yaml:"files,omitempty"`

	// Passes are applied in order.
	Passes []PassSpec `yaml:"passes"`

	// Runs execute one after another against the same output root.
	Runs []RunStep `yaml:"runs"`
}

// ClassSpec describes a generated class file.
type ClassSpec struct {
	Name       string   `yaml:"name"`
	Super      string   `yaml:"super,omitempty"`
	Interfaces []string `yaml:"interfaces,omitempty"`
	Interface  bool     `yaml:"interface,omitempty"`
}

// FileSpec is a raw file relative to the output root.
type FileSpec struct {
	Path    string `yaml:"path"`
	Content string `yaml:"content"`
}

// PassSpec describes one pass.
type PassSpec struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind"`
	Marker  string   `yaml:"marker,omitempty"`
	Extends []string `yaml:"extends,omitempty"`

	// Classes limits fail and panic passes to these classes.
	Classes []string `yaml:"classes,omitempty"`
}

// Pass kinds.
const (
	PassMarker = "marker"
	PassNoop   = "noop"
	PassFail   = "fail"
	PassPanic  = "panic"
)

// RunStep is one enhancement run.
type RunStep struct {
	// Inputs are the class names the build reports as freshly compiled.
	Inputs []string `yaml:"inputs"`

	// Cancel requests cancellation before the run starts.
	Cancel bool `yaml:"cancel,omitempty"`

	// Expect is checked after the run. If nil only the trace is recorded.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a run.
// Every field is optional; only the fields given are checked.
type ExpectClause struct {
	// Status is completed, aborted or cancelled.
	Status string `yaml:"status,omitempty"`

	// Working and Considered are the set sizes after expansion and after the
	// manifest filter.
	Working    *int `yaml:"working,omitempty"`
	Considered *int `yaml:"considered,omitempty"`

	// Outcomes maps class name to enhanced, unchanged or failed.
	Outcomes map[string]string `yaml:"outcomes,omitempty"`

	// Absent lists classes that must have no outcome.
	Absent []string `yaml:"absent,omitempty"`

	// Passes maps class name to the passes that changed it, in order.
	Passes map[string][]string `yaml:"passes,omitempty"`

	// Untouched lists classes whose file must be byte-identical after the run.
	Untouched []string `yaml:"untouched,omitempty"`

	// Diagnostics lists substrings that must each appear in some diagnostic.
	Diagnostics []string `yaml:"diagnostics,omitempty"`

	// NoErrors requires that no error diagnostic was reported.
	NoErrors bool `yaml:"no_errors,omitempty"`

	// FallbackHits is the expected number of fallback resolutions.
	FallbackHits *int64 `yaml:"fallback_hits,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "output:" vs "outcomes:"
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
	if len(s.Classes) == 0 {
		return fmt.Errorf("classes list is required and must be non-empty")
	}
	if len(s.Runs) == 0 {
		return fmt.Errorf("runs list is required and must be non-empty")
	}

	declared := make(map[classname.Name]bool)
	for i, c := range s.Classes {
		if c.Name == "" {
			return fmt.Errorf("classes[%d]: name is required", i)
		}
		declared[classname.Parse(c.Name)] = true
	}
	for i, c := range s.Library {
		if c.Name == "" {
			return fmt.Errorf("library[%d]: name is required", i)
		}
	}
	for i, f := range s.Files {
		if f.Path == "" {
			return fmt.Errorf("files[%d]: path is required", i)
		}
		if name := classname.FromRelativePath(f.Path); name != "" {
			declared[name] = true
		}
	}
	for i, t := range s.Companions {
		if err := artifact.Template(t).Validate(); err != nil {
			return fmt.Errorf("companions[%d]: %w", i, err)
		}
	}

	for i, p := range s.Passes {
		if p.Name == "" {
			return fmt.Errorf("passes[%d]: name is required", i)
		}
		switch p.Kind {
		case PassMarker, PassNoop, PassFail, PassPanic:
		default:
			return fmt.Errorf("passes[%d]: unknown kind %q", i, p.Kind)
		}
	}

	for i, r := range s.Runs {
		if len(r.Inputs) == 0 {
			return fmt.Errorf("runs[%d]: inputs list is required and must be non-empty", i)
		}
		for _, in := range r.Inputs {
			if !declared[classname.Parse(in)] {
				return fmt.Errorf("runs[%d]: input %s is not a declared class", i, in)
			}
		}
		if r.Expect != nil {
			for class, status := range r.Expect.Outcomes {
				switch status {
				case "enhanced", "unchanged", "failed":
				default:
					return fmt.Errorf("runs[%d].expect.outcomes[%s]: unknown status %q", i, class, status)
				}
			}
		}
	}
	return nil
}
