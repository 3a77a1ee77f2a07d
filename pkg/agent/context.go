// Copyright 2025 Bora Kaplan
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package agent implements the dispatcher and the specialists it routes to.
// The dispatcher classifies each message once and delegates to exactly one
// specialist through its tool wrapper; specialists never see each other.
package agent

import (
	"context"

	"github.com/kaplanbora/sage/pkg/session"
	"github.com/kaplanbora/sage/pkg/trace"
)

// AgentContext is the per-request state threaded through the dispatcher and
// specialists. Each delegation derives a child context; mutations in the
// child never reach the parent.
type AgentContext struct {
	ChatID         string
	UserID         string
	SessionID      string
	MessageHistory []session.Message
	Metadata       map[string]any
	Trace          *trace.Trace
}

// TraceID returns the id of the attached trace, or empty when untraced.
func (c *AgentContext) TraceID() string {
	if c == nil || c.Trace == nil {
		return ""
	}
	return c.Trace.ID()
}

// Child derives the context for a delegation: a fresh trace linked to the
// parent's, every other field copied by value.
func (c *AgentContext) Child() *AgentContext {
	if c == nil {
		return &AgentContext{}
	}

	child := &AgentContext{
		ChatID:    c.ChatID,
		UserID:    c.UserID,
		SessionID: c.SessionID,
	}
	if c.MessageHistory != nil {
		child.MessageHistory = make([]session.Message, len(c.MessageHistory))
		copy(child.MessageHistory, c.MessageHistory)
	}
	if c.Metadata != nil {
		child.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			child.Metadata[k] = v
		}
	}
	if c.Trace != nil {
		child.Trace = trace.NewChild(c.Trace)
	}
	return child
}

// AgentResult is the uniform outcome shape every specialist and the
// dispatcher return.
type AgentResult struct {
	Success          bool           `json:"success"`
	ResponseText     string         `json:"response_text"`
	StructuredData   map[string]any `json:"structured_data,omitempty"`
	AgentName        string         `json:"agent_name"`
	TraceID          string         `json:"trace_id,omitempty"`
	ToolCallsMade    []string       `json:"tool_calls_made,omitempty"`
	ProcessingTimeMS float64        `json:"processing_time_ms"`
}

type agentContextKey struct{}

// WithContext attaches an AgentContext to a context.Context so tool wrappers
// can recover it across the uniform tool interface. The attached trace also
// rides along under its own key so model-call adapters and pipeline stages
// can append events without knowing about agents.
func WithContext(ctx context.Context, actx *AgentContext) context.Context {
	ctx = context.WithValue(ctx, agentContextKey{}, actx)
	if actx != nil && actx.Trace != nil {
		ctx = trace.NewContext(ctx, actx.Trace)
	}
	return ctx
}

// FromContext recovers the AgentContext, or nil when absent.
func FromContext(ctx context.Context) *AgentContext {
	actx, _ := ctx.Value(agentContextKey{}).(*AgentContext)
	return actx
}
