package llm

import (
	"context"
	"errors"
	"strings"
)

// Client abstracts chat-completion providers.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is a single system+user exchange.
type Request struct {
	System string
	User   string
	// JSON asks the provider to constrain output to a JSON object.
	JSON bool
	// Stage labels the call in logs and metrics.
	Stage string
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is used when no provider is configured.
type PlaceholderClient struct{}

// Complete returns ErrNotImplemented.
func (PlaceholderClient) Complete(ctx context.Context, req Request) (string, error) {
	return "", ErrNotImplemented
}

// Sanitize strips NUL bytes, which Postgres TEXT columns reject, and trims whitespace.
func Sanitize(content string) string {
	return strings.TrimSpace(strings.ReplaceAll(content, "\x00", ""))
}
