package model

// Provenance records how an artifact came to exist: which variant matched a
// raw record, or which operation combined which dependency artifacts.
type Provenance struct {
	Kind      string   `yaml:"kind" json:"kind"` // "match" or "derive"
	Variant   int      `yaml:"variant,omitempty" json:"variant,omitempty"`
	Record    string   `yaml:"record,omitempty" json:"record,omitempty"`
	Operation string   `yaml:"operation,omitempty" json:"operation,omitempty"`
	Inputs    []string `yaml:"inputs,omitempty" json:"inputs,omitempty"` // dependency fingerprints, in dependency order
}

const (
	ProvenanceMatch  = "match"
	ProvenanceDerive = "derive"
)

// Artifact binds one (input, model, reftime, step) key to a concrete data
// handle. Created once per key; value object thereafter.
type Artifact struct {
	Input      string     `yaml:"input" json:"input"`
	Coordinate Coordinate `yaml:"-" json:"-"`
	Path       string     `yaml:"path" json:"path"`
	// Fingerprint identifies the artifact's content lineage; derived-cache
	// validity across rescans is keyed by it, not by wall-clock time.
	Fingerprint string     `yaml:"fingerprint" json:"fingerprint"`
	Provenance  Provenance `yaml:"provenance" json:"provenance"`
}
