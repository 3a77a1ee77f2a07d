// Package tools defines the callable tool contract specialists and the
// dispatcher expose to the model, plus the built-in domain tools.
package tools

import (
	"context"
	"time"

	"github.com/kaplanbora/sage/pkg/llms"
	"github.com/kaplanbora/sage/pkg/registry"
)

// ToolInfo describes a tool to the model. Parameters is a JSON Schema
// object.
type ToolInfo struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolResult is the outcome of one tool execution. Failures are results,
// not errors: the model sees the Error text and can correct itself. Error is
// diagnostic; a failed result carries text meant for the user in Content
// only when the tool authored one, so callers relaying failures to people
// show Content or their own message, never Error.
type ToolResult struct {
	Success       bool
	Content       string
	Data          map[string]any
	Error         string
	ToolName      string
	ExecutionTime time.Duration
}

type Tool interface {
	GetInfo() ToolInfo
	Execute(ctx context.Context, args map[string]any) (ToolResult, error)
}

// Registry holds named tools.
type Registry struct {
	*registry.BaseRegistry[Tool]
}

func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Tool]()}
}

// Definitions converts tools into the model-call adapter's tool shape.
func Definitions(toolList []Tool) []llms.ToolDefinition {
	defs := make([]llms.ToolDefinition, 0, len(toolList))
	for _, t := range toolList {
		info := t.GetInfo()
		defs = append(defs, llms.ToolDefinition{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  info.Parameters,
		})
	}
	return defs
}

// Failure builds a failed result in one line.
func Failure(toolName, message string) ToolResult {
	return ToolResult{Success: false, Error: message, ToolName: toolName}
}
