package model

import (
	"fmt"
	"time"
)

// RefTimeLayout is the canonical hour-granularity format for forecast
// reference times, used in cache keys, manifests and CLI flags.
const RefTimeLayout = "2006-01-02T15"

// Record is one raw data unit with its identifying metadata.
// Immutable once ingested.
type Record struct {
	Model   string            `yaml:"model" json:"model"`
	RefTime time.Time         `yaml:"reftime" json:"reftime"`
	Step    int               `yaml:"step" json:"step"`
	Meta    map[string]string `yaml:"meta" json:"meta"`
	Path    string            `yaml:"data" json:"data"`
}

// Coordinate returns the (model, reftime, step) position of this record.
func (r Record) Coordinate() Coordinate {
	return Coordinate{Model: r.Model, RefTime: r.RefTime, Step: r.Step}
}

// Coordinate identifies one position in the resolution space.
type Coordinate struct {
	Model   string
	RefTime time.Time
	Step    int
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%s %s +%03d", c.Model, c.RefTime.Format(RefTimeLayout), c.Step)
}

// Less orders coordinates by model, then reference time, then step.
func (c Coordinate) Less(other Coordinate) bool {
	if c.Model != other.Model {
		return c.Model < other.Model
	}
	if !c.RefTime.Equal(other.RefTime) {
		return c.RefTime.Before(other.RefTime)
	}
	return c.Step < other.Step
}
