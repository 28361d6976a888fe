// Package transform is the boundary to the external transform capability:
// a named operation applied to an ordered list of artifact byte-streams,
// producing a new artifact byte-stream. The engine treats an operation as a
// pure function of its inputs for caching purposes.
package transform

import (
	"context"
	"io"
)

// Invoker runs one external transform operation. Implementations must be
// safe for concurrent use; the pantry serializes calls per resolution key
// but distinct keys may invoke in parallel.
type Invoker interface {
	Invoke(ctx context.Context, operation string, params map[string]interface{}, sources []io.Reader) (io.ReadCloser, error)
}

// Func adapts a function to the Invoker interface.
type Func func(ctx context.Context, operation string, params map[string]interface{}, sources []io.Reader) (io.ReadCloser, error)

func (f Func) Invoke(ctx context.Context, operation string, params map[string]interface{}, sources []io.Reader) (io.ReadCloser, error) {
	return f(ctx, operation, params, sources)
}
