// Package bundle packages the by-products of an enumeration run: the input
// summary and the processing artifacts the pantry computed. It consumes the
// pantry's reporting hooks; it plays no part in resolution correctness.
package bundle

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mapchef/mapchef/internal/model"
	"github.com/mapchef/mapchef/internal/pantry"
)

// Bundle is one output directory for a run's reporting artifacts.
type Bundle struct {
	ID  string
	Dir string
	log *zap.Logger
}

// New creates the bundle directory under root, named by a fresh run ID.
func New(root string, log *zap.Logger) (*Bundle, error) {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create bundle directory")
	}
	return &Bundle{ID: id, Dir: dir, log: log}, nil
}

// SummarizeInputs writes the pantry's input summary for the given orders to
// inputs.yaml in the bundle.
func (b *Bundle) SummarizeInputs(p *pantry.Pantry, orders []model.Order) error {
	summary := p.SummarizeInputs(orders)
	return b.writeYAML("inputs.yaml", summary)
}

// StoreProcessingArtifacts copies the pantry's derived artifacts into the
// bundle and records them, with any transform failures, in processing.yaml.
func (b *Bundle) StoreProcessingArtifacts(p *pantry.Pantry) error {
	arts := p.ProcessingArtifacts()

	type storedArtifact struct {
		Input       string           `yaml:"input"`
		Coordinate  string           `yaml:"coordinate"`
		File        string           `yaml:"file"`
		Fingerprint string           `yaml:"fingerprint"`
		Provenance  model.Provenance `yaml:"provenance"`
	}
	type processingReport struct {
		Stored   []storedArtifact `yaml:"stored"`
		Failures []pantry.Failure `yaml:"failures,omitempty"`
		Created  time.Time        `yaml:"created"`
	}

	report := processingReport{Created: time.Now().UTC()}
	dataDir := filepath.Join(b.Dir, "processing")
	if len(arts) > 0 {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return errors.Wrap(err, "create processing directory")
		}
	}

	for _, art := range arts {
		name := filepath.Base(art.Path)
		if err := copyFile(art.Path, filepath.Join(dataDir, name)); err != nil {
			b.log.Warn("could not store processing artifact",
				zap.String("input", art.Input), zap.Error(err))
			continue
		}
		report.Stored = append(report.Stored, storedArtifact{
			Input:       art.Input,
			Coordinate:  art.Coordinate.String(),
			File:        filepath.Join("processing", name),
			Fingerprint: art.Fingerprint,
			Provenance:  art.Provenance,
		})
	}
	report.Failures = p.Failures()

	return b.writeYAML("processing.yaml", report)
}

func (b *Bundle) writeYAML(name string, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", name)
	}
	if err := os.WriteFile(filepath.Join(b.Dir, name), data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
