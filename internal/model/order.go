package model

import (
	"fmt"
	"time"
)

// OrderStep is one pipeline step of an order with its fully merged
// arguments.
type OrderStep struct {
	Kind  string
	Input string
	Args  map[string]interface{}
}

// Order is a fully resolved, ready-to-render unit of work. Immutable once
// built; consumed exactly once by the external renderer.
type Order struct {
	Recipe  string
	Flavour string
	Mixer   string
	Model   string
	RefTime time.Time
	Step    int
	// Sources maps each required input name to its resolved artifact.
	Sources map[string]Artifact
	Steps   []OrderStep
}

// Basename is the destination file name, without path or extension.
func (o Order) Basename() string {
	return fmt.Sprintf("%s+%03d", o.Recipe, o.Step)
}

// Coordinate returns the order's position in the resolution space.
func (o Order) Coordinate() Coordinate {
	return Coordinate{Model: o.Model, RefTime: o.RefTime, Step: o.Step}
}

func (o Order) String() string {
	return fmt.Sprintf("%s %s", o.Basename(), o.Coordinate())
}
