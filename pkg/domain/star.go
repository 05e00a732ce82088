package domain

// StarType defines the execution behavior of a star.
type StarType string

const (
	// StarWorker performs a single directive-driven model task.
	StarWorker StarType = "worker"
	// StarPlanning produces a plan for downstream stars.
	StarPlanning StarType = "planning"
	// StarEval decides between its continue and loop edges.
	StarEval StarType = "eval"
	// StarSynthesis combines upstream outputs into one result.
	StarSynthesis StarType = "synthesis"
	// StarExecution invokes an external probe instead of a model.
	StarExecution StarType = "execution"
	// StarDocex extracts structured content from documents.
	StarDocex StarType = "docex"
)

// StarTypes lists every valid star type, in display order.
var StarTypes = []StarType{StarWorker, StarPlanning, StarEval, StarSynthesis, StarExecution, StarDocex}

// ValidStarType reports whether t names a known star type.
func ValidStarType(t StarType) bool {
	for _, known := range StarTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Star is a typed execution unit. Its Directive defines what it does; an
// execution star additionally names the probe it calls.
type Star struct {
	ID   string   `json:"id" yaml:"id"`
	Name string   `json:"name" yaml:"name"`
	Type StarType `json:"type" yaml:"type"`

	Directive Directive `json:"directive" yaml:"directive"`

	// Probe names the external tool an execution star invokes. Ignored for
	// other star types.
	Probe string `json:"probe,omitempty" yaml:"probe,omitempty"`

	// Config carries star-type specific settings as loose key-value pairs.
	// Adapters decode it into typed structs where needed.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Directive is a prompt template bound to a star. The template may contain
// an {{input}} placeholder replaced with the star's input at execution time.
type Directive struct {
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	System   string `json:"system,omitempty" yaml:"system,omitempty"`
	Template string `json:"template" yaml:"template"`
}

// ProbeSpec describes an external tool an execution star may call. Args are
// loose key-value pairs decoded by the probe implementation.
type ProbeSpec struct {
	Name string         `json:"name" yaml:"name"`
	Kind string         `json:"kind" yaml:"kind"`
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
}
