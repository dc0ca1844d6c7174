package ports

import (
	"context"
	"io"

	"go.trai.ch/kiln/internal/core/domain"
)

// Telemetry is the entry point for recording build progress. Tests use the
// NoOp implementation in adapters/telemetry rather than a generated mock.
type Telemetry interface {
	// Record starts recording a new vertex for a unit of work.
	Record(ctx context.Context, name string, opts ...VertexOption) (context.Context, Vertex)
	// Close flushes any buffered progress output.
	Close() error
}

// Vertex represents one unit of work being recorded.
type Vertex interface {
	// Stdout returns a writer capturing the unit's standard output.
	Stdout() io.Writer
	// Stderr returns a writer capturing the unit's error output.
	Stderr() io.Writer
	// Log records a structured log message associated with this vertex.
	Log(level domain.LogLevel, msg string)
	// Complete marks the vertex as finished, successfully or with an error.
	Complete(err error)
	// Cached marks the vertex as served from the artifact store.
	Cached()
}

// VertexConfig holds configuration for a starting vertex.
type VertexConfig struct {
	// Internal marks vertices for bookkeeping work that renderers may hide.
	Internal bool
}

// VertexOption is a functional option for configuring a vertex.
type VertexOption func(*VertexConfig)

// WithInternal marks the vertex as internal bookkeeping work.
func WithInternal() VertexOption {
	return func(c *VertexConfig) { c.Internal = true }
}

type vertexCtxKey struct{}

// ContextWithVertex attaches a vertex to the context so nested work can log
// against it.
func ContextWithVertex(ctx context.Context, v Vertex) context.Context {
	return context.WithValue(ctx, vertexCtxKey{}, v)
}

// VertexFromContext returns the vertex attached to the context, or nil.
func VertexFromContext(ctx context.Context) Vertex {
	v, _ := ctx.Value(vertexCtxKey{}).(Vertex)
	return v
}
