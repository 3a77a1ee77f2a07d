// Package llms provides a uniform interface over language model providers.
// Providers speak raw HTTP to their APIs through the retrying httpclient;
// callers see one request and one response shape regardless of provider.
package llms

import (
	"context"
)

// ToolDefinition describes one callable tool in function-calling mode.
// Parameters is a JSON Schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a structured tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Request is one model invocation. Tools may be nil for plain completion.
type Request struct {
	Prompt       string
	SystemPrompt string
	Tools        []ToolDefinition
}

// Response carries the model's output. Exactly these fields; callers never
// probe alternates.
type Response struct {
	Text      string
	ToolCalls []ToolCall
	Tokens    int
}

// Provider is an opaque language model capability.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	ModelName() string
	Close() error
}
