package pantry

import (
	"sort"

	"github.com/mapchef/mapchef/internal/model"
)

// InputSummary describes which artifacts fed a set of orders. Consumed by
// the output-packaging collaborator; not resolution logic.
type InputSummary struct {
	Inputs map[string]InputReport `yaml:"inputs" json:"inputs"`
}

// InputReport lists the distinct artifacts one input contributed.
type InputReport struct {
	Artifacts []ArtifactUse `yaml:"artifacts" json:"artifacts"`
}

// ArtifactUse is one artifact reference together with how many orders used
// it.
type ArtifactUse struct {
	Coordinate  string           `yaml:"coordinate" json:"coordinate"`
	Path        string           `yaml:"path" json:"path"`
	Fingerprint string           `yaml:"fingerprint" json:"fingerprint"`
	Provenance  model.Provenance `yaml:"provenance" json:"provenance"`
	Orders      int              `yaml:"orders" json:"orders"`
}

// SummarizeInputs aggregates the input artifacts referenced by the given
// orders, grouped by input name with stable ordering.
func (p *Pantry) SummarizeInputs(orders []model.Order) InputSummary {
	type useKey struct {
		input, fingerprint string
	}
	uses := make(map[useKey]*ArtifactUse)

	for _, order := range orders {
		for name, art := range order.Sources {
			k := useKey{input: name, fingerprint: art.Fingerprint}
			if u, ok := uses[k]; ok {
				u.Orders++
				continue
			}
			uses[k] = &ArtifactUse{
				Coordinate:  art.Coordinate.String(),
				Path:        art.Path,
				Fingerprint: art.Fingerprint,
				Provenance:  art.Provenance,
				Orders:      1,
			}
		}
	}

	summary := InputSummary{Inputs: make(map[string]InputReport)}
	for k, u := range uses {
		report := summary.Inputs[k.input]
		report.Artifacts = append(report.Artifacts, *u)
		summary.Inputs[k.input] = report
	}
	for name, report := range summary.Inputs {
		sort.Slice(report.Artifacts, func(i, j int) bool {
			return report.Artifacts[i].Coordinate < report.Artifacts[j].Coordinate
		})
		summary.Inputs[name] = report
	}
	return summary
}

// ProcessingArtifacts returns every derived artifact computed so far,
// sorted by input then coordinate. The packaging collaborator stores them
// alongside the rendered products.
func (p *Pantry) ProcessingArtifacts() []model.Artifact {
	p.mu.Lock()
	arts := make([]model.Artifact, 0, len(p.derived))
	for _, art := range p.derived {
		arts = append(arts, art)
	}
	p.mu.Unlock()

	sort.Slice(arts, func(i, j int) bool {
		if arts[i].Input != arts[j].Input {
			return arts[i].Input < arts[j].Input
		}
		return arts[i].Coordinate.Less(arts[j].Coordinate)
	})
	return arts
}
