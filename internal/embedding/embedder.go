// Package embedding provides text embedding via an external provider, plus
// the textual vector codec used for storage.
package embedding

import "context"

// Embedder produces a vector embedding for one text. One call per chunk;
// no batching or caching (a documented cost/latency limitation).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Error is returned when the provider is unreachable, responds with a
// non-success status, or omits the expected vector field. A chunk without a
// vector is useless, so callers must treat this as fatal for the document
// being processed.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "embedding: " + e.Msg + ": " + e.Err.Error()
	}
	return "embedding: " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }
