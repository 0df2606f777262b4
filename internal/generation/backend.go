package generation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Credentials are supplied by the caller for one run and never persisted.
type Credentials struct {
	APIKey string
}

// LogValue keeps the key out of structured logs.
func (c Credentials) LogValue() slog.Value {
	if c.APIKey == "" {
		return slog.StringValue("none")
	}
	return slog.StringValue("[REDACTED]")
}

// String keeps the key out of formatted output.
func (c Credentials) String() string {
	return c.LogValue().String()
}

// Request is one call to a model backend.
type Request struct {
	ModelID      string
	SystemPrompt string
	UserPrompt   string
	Credentials  Credentials
}

// Backend produces the raw text answer of a model. Implementations must honor
// ctx cancellation and report provider failures as *APICallError or
// *RetryError so that ClassifyFailure can surface the provider's message.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f BackendFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Router dispatches a request to the backend registered for the longest
// matching model ID prefix, falling back to a default backend.
type Router struct {
	prefixes []string
	backends map[string]Backend
	fallback Backend
}

// NewRouter creates a Router whose unmatched requests go to fallback.
// fallback may be nil, in which case unmatched models are unsupported.
func NewRouter(fallback Backend) *Router {
	return &Router{
		backends: make(map[string]Backend),
		fallback: fallback,
	}
}

// Handle registers b for model IDs starting with prefix.
func (r *Router) Handle(prefix string, b Backend) {
	if _, exists := r.backends[prefix]; !exists {
		r.prefixes = append(r.prefixes, prefix)
		sort.Slice(r.prefixes, func(i, j int) bool {
			return len(r.prefixes[i]) > len(r.prefixes[j])
		})
	}
	r.backends[prefix] = b
}

// Generate implements Backend.
func (r *Router) Generate(ctx context.Context, req Request) (string, error) {
	for _, prefix := range r.prefixes {
		if strings.HasPrefix(req.ModelID, prefix) {
			return r.backends[prefix].Generate(ctx, req)
		}
	}
	if r.fallback == nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedModel, req.ModelID)
	}
	return r.fallback.Generate(ctx, req)
}

var _ Backend = (*Router)(nil)
