// Package pantry is the resolution store: it binds raw records to named
// input slots, computes derived inputs on demand through the external
// transform capability, and caches results so repeated resolution is
// idempotent.
package pantry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mapchef/mapchef/internal/model"
	"github.com/mapchef/mapchef/internal/transform"
)

// ErrUnavailable marks a feasibility fact, not a fault: the input has no
// artifact at the requested coordinate. Callers check it with errors.Is.
var ErrUnavailable = errors.New("input unavailable")

// Failure is a recorded transform invocation error. Failures make the
// affected input unavailable at that coordinate; they never abort the
// resolution of other coordinates.
type Failure struct {
	Input      string           `yaml:"input" json:"input"`
	Coordinate model.Coordinate `yaml:"-" json:"-"`
	Operation  string           `yaml:"operation" json:"operation"`
	Reason     string           `yaml:"reason" json:"reason"`
	When       time.Time        `yaml:"when" json:"when"`
}

type key struct {
	input   string
	model   string
	reftime int64
	step    int
}

func newKey(input string, c model.Coordinate) key {
	return key{input: input, model: c.Model, reftime: c.RefTime.UTC().Unix(), step: c.Step}
}

func (k key) String() string {
	return fmt.Sprintf("%s/%s/%d/%d", k.input, k.model, k.reftime, k.step)
}

type coordKey struct {
	model   string
	reftime int64
	step    int
}

// Pantry exclusively owns the resolved-artifact cache. All other tables it
// holds are read-only after load.
type Pantry struct {
	inputs  *model.InputTable
	invoker transform.Invoker
	workDir string
	log     *zap.Logger

	mu       sync.Mutex
	raw      map[key]model.Artifact
	derived  map[key]model.Artifact
	failed   map[key]string // sticky per key until Rescan
	coords   map[coordKey]model.Coordinate
	failures []Failure
	// transformed caches ingest-time value transforms by fingerprint so a
	// rescan does not re-invoke them for unchanged records.
	transformed map[string]string

	flight singleflight.Group
}

// New creates a pantry over the given input table. Derived and transformed
// artifacts are written under workDir.
func New(inputs *model.InputTable, invoker transform.Invoker, workDir string, log *zap.Logger) *Pantry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pantry{
		inputs:      inputs,
		invoker:     invoker,
		workDir:     workDir,
		log:         log,
		raw:         make(map[key]model.Artifact),
		derived:     make(map[key]model.Artifact),
		failed:      make(map[key]string),
		coords:      make(map[coordKey]model.Coordinate),
		transformed: make(map[string]string),
	}
}

// Ingest matches one record against every raw input definition and binds an
// artifact on the first matching variant per definition. Re-ingesting a
// record for an already-bound key is a no-op: the first writer wins, so
// ingestion order never changes which keys exist. Returns whether the
// record bound at least one slot.
func (p *Pantry) Ingest(ctx context.Context, rec model.Record) bool {
	bound := false
	for _, name := range p.inputs.Names() {
		def := p.inputs.Get(name)
		if def.Derived() {
			continue
		}
		if p.bindRecord(ctx, def, rec) {
			bound = true
		}
	}

	p.mu.Lock()
	c := rec.Coordinate()
	p.coords[coordKey{model: c.Model, reftime: c.RefTime.UTC().Unix(), step: c.Step}] = c
	p.mu.Unlock()

	return bound
}

// IngestAll matches records concurrently. Matching is a pure predicate
// evaluation; binding itself is serialized on the pantry lock. Returns how
// many records bound at least one slot.
func (p *Pantry) IngestAll(ctx context.Context, records []model.Record, workers int) int {
	if workers < 1 {
		workers = 1
	}
	var mu sync.Mutex
	count := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			if p.Ingest(gctx, rec) {
				mu.Lock()
				count++
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors
	return count
}

// bindRecord evaluates def's variants in declared order against rec and
// binds the first match, unless the key is already bound.
func (p *Pantry) bindRecord(ctx context.Context, def *model.InputDef, rec model.Record) bool {
	for i, variant := range def.Variants {
		if variant.Model != rec.Model {
			continue
		}
		if !variant.Matcher.Matches(rec.Meta) {
			continue
		}

		k := newKey(def.Name, rec.Coordinate())
		p.mu.Lock()
		_, taken := p.raw[k]
		p.mu.Unlock()
		if taken {
			p.log.Debug("record shadowed by earlier bind",
				zap.String("input", def.Name),
				zap.String("coordinate", rec.Coordinate().String()),
				zap.String("record", rec.Path))
			return false
		}

		art, err := p.materializeRaw(ctx, def, i, variant, rec)
		if err != nil {
			p.recordFailure(def.Name, rec.Coordinate(), variant.Transform.Operation, err)
			return false
		}

		p.mu.Lock()
		if _, taken := p.raw[k]; !taken {
			p.raw[k] = art
		}
		p.mu.Unlock()
		return true
	}
	return false
}

// materializeRaw turns a matched record into an artifact, applying the
// variant's optional value transform.
func (p *Pantry) materializeRaw(ctx context.Context, def *model.InputDef, variantIdx int, variant model.InputVariant, rec model.Record) (model.Artifact, error) {
	fp := fingerprint("match", def.Name, rec.Coordinate().String(),
		fmt.Sprintf("%d", variantIdx), rec.Path, transformTag(variant.Transform))

	art := model.Artifact{
		Input:       def.Name,
		Coordinate:  rec.Coordinate(),
		Path:        rec.Path,
		Fingerprint: fp,
		Provenance: model.Provenance{
			Kind:    model.ProvenanceMatch,
			Variant: variantIdx,
			Record:  rec.Path,
		},
	}

	if variant.Transform == nil {
		return art, nil
	}

	p.mu.Lock()
	cached, ok := p.transformed[fp]
	p.mu.Unlock()
	if ok {
		art.Path = cached
		art.Provenance.Operation = variant.Transform.Operation
		return art, nil
	}

	path, err := p.runTransform(ctx, variant.Transform.Operation, variant.Transform.Params,
		[]string{rec.Path}, "raw", def.Name, rec.Coordinate())
	if err != nil {
		return model.Artifact{}, err
	}

	p.mu.Lock()
	p.transformed[fp] = path
	p.mu.Unlock()

	art.Path = path
	art.Provenance.Operation = variant.Transform.Operation
	return art, nil
}

// Coordinates returns every (model, reftime, step) observed during
// ingestion, sorted.
func (p *Pantry) Coordinates() []model.Coordinate {
	p.mu.Lock()
	coords := make([]model.Coordinate, 0, len(p.coords))
	for _, c := range p.coords {
		coords = append(coords, c)
	}
	p.mu.Unlock()

	sort.Slice(coords, func(i, j int) bool { return coords[i].Less(coords[j]) })
	return coords
}

// Failures returns the transform failures recorded so far, oldest first.
func (p *Pantry) Failures() []Failure {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Failure, len(p.failures))
	copy(out, p.failures)
	return out
}

func (p *Pantry) recordFailure(input string, c model.Coordinate, operation string, err error) {
	p.log.Warn("transform failed, input unavailable",
		zap.String("input", input),
		zap.String("coordinate", c.String()),
		zap.String("operation", operation),
		zap.Error(err))

	p.mu.Lock()
	p.failures = append(p.failures, Failure{
		Input:      input,
		Coordinate: c,
		Operation:  operation,
		Reason:     err.Error(),
		When:       time.Now().UTC(),
	})
	p.mu.Unlock()
}

func transformTag(t *model.ValueTransform) string {
	if t == nil {
		return ""
	}
	return t.Operation
}

func fingerprint(parts ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
