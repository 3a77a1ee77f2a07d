package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/kaplanbora/sage/pkg/registry"
)

// Specialist handles one category of request. Each specialist owns a private
// tool set invisible to the dispatcher; the dispatcher only sees specialists
// through their delegation wrappers.
type Specialist interface {
	Name() string
	Description() string
	GetSystemPrompt(actx *AgentContext) string
	Process(ctx context.Context, message string, actx *AgentContext) AgentResult
}

// Registry holds the registered specialists. Populated at startup, read-only
// afterwards.
type Registry struct {
	*registry.BaseRegistry[Specialist]
}

func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Specialist]()}
}

// RegisterSpecialist registers under the specialist's own name.
func (r *Registry) RegisterSpecialist(s Specialist) error {
	return r.Register(s.Name(), s)
}

// Descriptions renders one bullet line per specialist, in registration
// order, for the dispatcher's system prompt.
func (r *Registry) Descriptions() string {
	var sb strings.Builder
	for _, s := range r.List() {
		fmt.Fprintf(&sb, "- **%s**: %s\n", s.Name(), s.Description())
	}
	return sb.String()
}

// failureResult builds a user-safe failure without leaking internals.
func failureResult(agentName, userMessage string, actx *AgentContext, elapsedMS float64) AgentResult {
	return AgentResult{
		Success:          false,
		ResponseText:     userMessage,
		AgentName:        agentName,
		TraceID:          actx.TraceID(),
		ProcessingTimeMS: elapsedMS,
	}
}
