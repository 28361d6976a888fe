// Package render materializes enumerated orders into a manifest for the
// external renderer, serialized as JSON or YAML.
package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mapchef/mapchef/internal/model"
)

// Manifest is the serializable form of one enumeration run.
type Manifest struct {
	RunID   string      `yaml:"runId" json:"runId"`
	Flavour string      `yaml:"flavour" json:"flavour"`
	Created time.Time   `yaml:"created" json:"created"`
	Orders  []OrderView `yaml:"orders" json:"orders"`
}

// OrderView is the manifest form of one order.
type OrderView struct {
	Basename string                `yaml:"basename" json:"basename"`
	Recipe   string                `yaml:"recipe" json:"recipe"`
	Mixer    string                `yaml:"mixer" json:"mixer"`
	Model    string                `yaml:"model" json:"model"`
	RefTime  string                `yaml:"reftime" json:"reftime"`
	Step     int                   `yaml:"step" json:"step"`
	Sources  map[string]SourceView `yaml:"sources" json:"sources"`
	Steps    []StepView            `yaml:"steps" json:"steps"`
}

// SourceView references one resolved artifact.
type SourceView struct {
	Path        string `yaml:"path" json:"path"`
	Fingerprint string `yaml:"fingerprint" json:"fingerprint"`
}

// StepView is one pipeline step with its merged arguments.
type StepView struct {
	Step  string                 `yaml:"step" json:"step"`
	Input string                 `yaml:"input,omitempty" json:"input,omitempty"`
	Args  map[string]interface{} `yaml:"args,omitempty" json:"args,omitempty"`
}

// BuildManifest converts orders into a manifest with a fresh run ID.
func BuildManifest(flavour string, orders []model.Order) *Manifest {
	m := &Manifest{
		RunID:   uuid.NewString(),
		Flavour: flavour,
		Created: time.Now().UTC(),
		Orders:  make([]OrderView, 0, len(orders)),
	}
	for _, order := range orders {
		m.Orders = append(m.Orders, viewOrder(order))
	}
	return m
}

func viewOrder(order model.Order) OrderView {
	view := OrderView{
		Basename: order.Basename(),
		Recipe:   order.Recipe,
		Mixer:    order.Mixer,
		Model:    order.Model,
		RefTime:  order.RefTime.Format(model.RefTimeLayout),
		Step:     order.Step,
		Sources:  make(map[string]SourceView, len(order.Sources)),
	}
	for name, art := range order.Sources {
		view.Sources[name] = SourceView{Path: art.Path, Fingerprint: art.Fingerprint}
	}
	for _, step := range order.Steps {
		view.Steps = append(view.Steps, StepView{Step: step.Kind, Input: step.Input, Args: step.Args})
	}
	return view
}

// WriteManifest writes the manifest to path, choosing the format from the
// file extension (JSON unless .yaml/.yml).
func WriteManifest(m *Manifest, path string) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	var data []byte
	var err error
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(m)
	default:
		data, err = json.MarshalIndent(m, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to render manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
