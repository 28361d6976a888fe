package model

import (
	"sort"

	"github.com/mapchef/mapchef/internal/matcher"
)

// ValueTransform is an optional post-match transform applied to a raw
// payload before it is bound as an artifact.
type ValueTransform struct {
	Operation string
	Params    map[string]interface{}
}

// InputVariant is one model-specific way of satisfying a raw input.
// Variants are evaluated in declared order; the first match wins.
type InputVariant struct {
	Model     string
	Matcher   matcher.Matcher
	Transform *ValueTransform
}

// InputDef describes one named input. It is either raw (matched from
// records via Variants) or derived (computed by Operation over Depends),
// never both.
type InputDef struct {
	Name      string
	DefinedIn string

	// Raw inputs
	Variants []InputVariant

	// Derived inputs
	Operation string
	Depends   []string
}

// Derived reports whether this input is computed rather than matched.
func (d *InputDef) Derived() bool {
	return d.Operation != ""
}

// InputTable is the read-only set of input definitions, shared by reference
// across all resolution calls. The topological order is established at load
// time so derived inputs always follow their dependencies.
type InputTable struct {
	defs  map[string]*InputDef
	names []string // sorted
	topo  []string // dependencies first
}

// NewInputTable builds a table from validated definitions and their
// topological order.
func NewInputTable(defs map[string]*InputDef, topo []string) *InputTable {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return &InputTable{defs: defs, names: names, topo: topo}
}

// Get returns the definition for name, or nil.
func (t *InputTable) Get(name string) *InputDef {
	return t.defs[name]
}

// Names returns all input names in sorted order.
func (t *InputTable) Names() []string {
	return t.names
}

// TopoOrder returns input names with every dependency before its dependents.
func (t *InputTable) TopoOrder() []string {
	return t.topo
}

func (t *InputTable) Len() int {
	return len(t.defs)
}
