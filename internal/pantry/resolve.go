package pantry

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mapchef/mapchef/internal/model"
)

// Resolve returns the artifact bound to (name, coordinate). Raw inputs are
// a cache lookup. Derived inputs resolve every dependency at the same
// coordinate first; if any is unavailable the derived input is unavailable
// and the transform is not invoked. Concurrent callers for the same key
// share a single in-flight computation.
func (p *Pantry) Resolve(ctx context.Context, name string, c model.Coordinate) (model.Artifact, error) {
	def := p.inputs.Get(name)
	if def == nil {
		return model.Artifact{}, errors.Errorf("unknown input %q", name)
	}

	k := newKey(name, c)

	if !def.Derived() {
		p.mu.Lock()
		art, ok := p.raw[k]
		p.mu.Unlock()
		if !ok {
			return model.Artifact{}, errors.Wrapf(ErrUnavailable, "input %s at %s", name, c)
		}
		return art, nil
	}

	p.mu.Lock()
	if art, ok := p.derived[k]; ok {
		p.mu.Unlock()
		return art, nil
	}
	if reason, ok := p.failed[k]; ok {
		p.mu.Unlock()
		return model.Artifact{}, errors.Wrapf(ErrUnavailable, "input %s at %s: %s", name, c, reason)
	}
	p.mu.Unlock()

	v, err, _ := p.flight.Do(k.String(), func() (interface{}, error) {
		// A waiter may have arrived after a previous flight completed.
		p.mu.Lock()
		if art, ok := p.derived[k]; ok {
			p.mu.Unlock()
			return art, nil
		}
		p.mu.Unlock()
		return p.derive(ctx, def, c)
	})
	if err != nil {
		return model.Artifact{}, err
	}
	return v.(model.Artifact), nil
}

// derive computes one derived artifact. Runs at most once per key; the
// singleflight group serializes concurrent requesters.
func (p *Pantry) derive(ctx context.Context, def *model.InputDef, c model.Coordinate) (model.Artifact, error) {
	k := newKey(def.Name, c)

	deps := make([]model.Artifact, 0, len(def.Depends))
	for _, depName := range def.Depends {
		dep, err := p.Resolve(ctx, depName, c)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				return model.Artifact{}, errors.Wrapf(ErrUnavailable, "input %s at %s: dependency %s", def.Name, c, depName)
			}
			return model.Artifact{}, err
		}
		deps = append(deps, dep)
	}

	sources := make([]string, len(deps))
	depFPs := make([]string, len(deps))
	for i, dep := range deps {
		sources[i] = dep.Path
		depFPs[i] = dep.Fingerprint
	}

	path, err := p.runTransform(ctx, def.Operation, nil, sources, "derived", def.Name, c)
	if err != nil {
		p.recordFailure(def.Name, c, def.Operation, err)
		p.mu.Lock()
		p.failed[k] = err.Error()
		p.mu.Unlock()
		return model.Artifact{}, errors.Wrapf(ErrUnavailable, "input %s at %s: %s failed", def.Name, c, def.Operation)
	}

	art := model.Artifact{
		Input:       def.Name,
		Coordinate:  c,
		Path:        path,
		Fingerprint: derivedFingerprint(def.Operation, depFPs),
		Provenance: model.Provenance{
			Kind:      model.ProvenanceDerive,
			Operation: def.Operation,
			Inputs:    depFPs,
		},
	}

	p.mu.Lock()
	p.derived[k] = art
	p.mu.Unlock()

	p.log.Debug("derived input computed",
		zap.String("input", def.Name),
		zap.String("coordinate", c.String()),
		zap.String("operation", def.Operation))
	return art, nil
}

// runTransform invokes the external capability over the given source files
// and spools the result under the pantry work directory.
func (p *Pantry) runTransform(ctx context.Context, operation string, params map[string]interface{}, sources []string, class, input string, c model.Coordinate) (string, error) {
	readers := make([]io.Reader, 0, len(sources))
	closers := make([]io.Closer, 0, len(sources))
	defer func() {
		for _, cl := range closers {
			cl.Close()
		}
	}()
	for _, src := range sources {
		f, err := os.Open(src)
		if err != nil {
			return "", errors.Wrapf(err, "open source for %s", operation)
		}
		readers = append(readers, f)
		closers = append(closers, f)
	}

	out, err := p.invoker.Invoke(ctx, operation, params, readers)
	if err != nil {
		return "", err
	}
	defer out.Close()

	dir := filepath.Join(p.workDir, class)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create pantry work dir")
	}
	dest := filepath.Join(dir, artifactFileName(input, c))
	f, err := os.Create(dest)
	if err != nil {
		return "", errors.Wrap(err, "create artifact file")
	}
	if _, err := io.Copy(f, out); err != nil {
		f.Close()
		return "", errors.Wrap(err, "write artifact file")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "write artifact file")
	}
	return dest, nil
}

// Rescan rebuilds the raw bindings from a refreshed record pool. Derived
// artifacts are kept when the fingerprints of their dependency artifacts
// are unchanged, so unchanged derivations are not recomputed.
func (p *Pantry) Rescan(ctx context.Context, records []model.Record) {
	p.mu.Lock()
	oldDerived := p.derived
	p.raw = make(map[key]model.Artifact)
	p.derived = make(map[key]model.Artifact)
	p.failed = make(map[key]string)
	p.coords = make(map[coordKey]model.Coordinate)
	p.failures = nil
	p.mu.Unlock()

	for _, rec := range records {
		p.Ingest(ctx, rec)
	}

	// Revalidate derived artifacts in topological order so that a kept
	// derivation can support its dependents.
	kept := 0
	for _, name := range p.inputs.TopoOrder() {
		def := p.inputs.Get(name)
		if !def.Derived() {
			continue
		}
		for k, art := range oldDerived {
			if k.input != name {
				continue
			}
			expected, ok := p.expectedFingerprint(def, art.Coordinate)
			if !ok || expected != art.Fingerprint {
				continue
			}
			p.mu.Lock()
			p.derived[k] = art
			p.mu.Unlock()
			kept++
		}
	}

	p.log.Info("pantry rescanned",
		zap.Int("records", len(records)),
		zap.Int("derived_kept", kept),
		zap.Int("derived_dropped", len(oldDerived)-kept))
}

// expectedFingerprint computes what a derivation's fingerprint would be
// against the current caches, without invoking anything.
func (p *Pantry) expectedFingerprint(def *model.InputDef, c model.Coordinate) (string, bool) {
	depFPs := make([]string, 0, len(def.Depends))
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, depName := range def.Depends {
		k := newKey(depName, c)
		if art, ok := p.raw[k]; ok {
			depFPs = append(depFPs, art.Fingerprint)
			continue
		}
		if art, ok := p.derived[k]; ok {
			depFPs = append(depFPs, art.Fingerprint)
			continue
		}
		return "", false
	}
	return derivedFingerprint(def.Operation, depFPs), true
}

func derivedFingerprint(operation string, depFPs []string) string {
	return fingerprint(append([]string{"derive", operation}, depFPs...)...)
}

func artifactFileName(input string, c model.Coordinate) string {
	reftime := strings.ReplaceAll(c.RefTime.UTC().Format(model.RefTimeLayout), ":", "")
	return fmt.Sprintf("%s_%s_%s+%03d", input, c.Model, reftime, c.Step)
}
