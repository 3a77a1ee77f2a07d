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

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kaplanbora/sage/pkg/llms"
	"github.com/kaplanbora/sage/pkg/observability"
	"github.com/kaplanbora/sage/pkg/tools"
	"github.com/kaplanbora/sage/pkg/trace"
)

const dispatchErrorMessage = "I'm having trouble processing your request. Please try again."

// Dispatcher classifies each message once and routes it to exactly one
// specialist through its delegation tool. There is no retry loop: the model
// either calls one delegation tool (whose result text becomes the response
// verbatim) or answers trivial turns directly.
type Dispatcher struct {
	llm       llms.Provider
	registry  *Registry
	delegates []tools.Tool
	timezone  *time.Location
	logger    *slog.Logger
}

func NewDispatcher(llm llms.Provider, reg *Registry, delegates []tools.Tool, tz *time.Location) *Dispatcher {
	if tz == nil {
		tz = time.Local
	}
	return &Dispatcher{
		llm:       llm,
		registry:  reg,
		delegates: delegates,
		timezone:  tz,
		logger:    slog.Default(),
	}
}

func (d *Dispatcher) systemPrompt() string {
	now := time.Now().In(d.timezone)
	return fmt.Sprintf(`You are a router for a personal assistant. Delegate each request to
exactly one specialist by calling its delegation tool:

%s
Routing rules:
- Questions about documents, notes, or stored knowledge go to knowledge.
- Anything about events, meetings, or scheduling goes to scheduler.
- "What did I say earlier" style requests go to recall.
- Greetings and small talk go to chitchat.
- If the request is ambiguous, ask a clarifying question instead of guessing.
- Never answer document or calendar questions yourself.

Current date and time: %s
Timezone: %s`,
		d.registry.Descriptions(),
		now.Format("Monday, January 2, 2006 15:04"),
		d.timezone.String())
}

// Process handles one user message end to end. Any failure is converted into
// a user-safe apology; Process never panics through to the transport.
func (d *Dispatcher) Process(ctx context.Context, message string, actx *AgentContext) AgentResult {
	start := time.Now()

	tracer := observability.GetTracer("dispatcher")
	ctx, span := tracer.Start(ctx, observability.SpanDispatch)
	defer span.End()

	if actx == nil {
		actx = &AgentContext{}
	}
	if actx.Trace != nil {
		actx.Trace.AddEvent(trace.EventRequest, "user", "dispatcher", summarize(message), nil, nil)
	}

	result := d.classify(ctx, message, actx)
	result.ProcessingTimeMS = float64(time.Since(start)) / float64(time.Millisecond)

	if actx.Trace != nil {
		actx.Trace.AddEvent(trace.EventResponse, "dispatcher", "user", summarize(result.ResponseText),
			&result.ProcessingTimeMS, map[string]any{"success": result.Success, "agent": result.AgentName})
		actx.Trace.SetResponse(result.ResponseText)
	}
	return result
}

func (d *Dispatcher) classify(ctx context.Context, message string, actx *AgentContext) AgentResult {
	ctx = WithContext(ctx, actx)

	resp, err := d.llm.Generate(ctx, llms.Request{
		SystemPrompt: d.systemPrompt(),
		Prompt:       message,
		Tools:        tools.Definitions(d.delegates),
	})
	if err != nil {
		d.logger.Error("Dispatch classification failed", "error", err)
		observability.GetGlobalMetrics().RecordDispatch("none", false)
		if actx.Trace != nil {
			actx.Trace.AddEvent(trace.EventError, "dispatcher", "user", summarize(err.Error()), nil, nil)
		}
		return AgentResult{
			Success:      false,
			ResponseText: dispatchErrorMessage,
			AgentName:    "dispatcher",
			TraceID:      actx.TraceID(),
		}
	}

	// No tool call means the model answered the trivial turn directly.
	if len(resp.ToolCalls) == 0 {
		observability.GetGlobalMetrics().RecordDispatch("direct", true)
		return AgentResult{
			Success:      true,
			ResponseText: resp.Text,
			AgentName:    "dispatcher",
			TraceID:      actx.TraceID(),
		}
	}

	call := resp.ToolCalls[0]
	delegate := d.findDelegate(call.Name)
	if delegate == nil {
		d.logger.Warn("Model called an unknown delegation tool", "tool", call.Name)
		observability.GetGlobalMetrics().RecordDispatch(call.Name, false)
		return AgentResult{
			Success:      false,
			ResponseText: dispatchErrorMessage,
			AgentName:    "dispatcher",
			TraceID:      actx.TraceID(),
		}
	}

	if actx.Trace != nil {
		actx.Trace.AddEvent(trace.EventDelegation, "dispatcher", call.Name, summarize(message), nil, nil)
	}

	result, err := delegate.Execute(ctx, call.Arguments)
	specialist := strings.TrimPrefix(call.Name, "delegate_to_")
	if err != nil || !result.Success {
		if err != nil {
			d.logger.Error("Delegation failed", "specialist", specialist, "error", err)
		} else {
			d.logger.Warn("Delegation returned failure", "specialist", specialist, "error", result.Error)
		}
		observability.GetGlobalMetrics().RecordDispatch(specialist, false)
		// result.Error is diagnostic (validation detail, panic text); only
		// specialist-authored Content is safe to show the user.
		text := result.Content
		if text == "" {
			text = dispatchErrorMessage
		}
		return AgentResult{
			Success:      false,
			ResponseText: text,
			AgentName:    specialist,
			TraceID:      actx.TraceID(),
		}
	}

	observability.GetGlobalMetrics().RecordDispatch(specialist, true)

	// The specialist's text is the response verbatim, no added commentary.
	return AgentResult{
		Success:        true,
		ResponseText:   result.Content,
		StructuredData: result.Data,
		AgentName:      specialist,
		TraceID:        actx.TraceID(),
		ToolCallsMade:  []string{call.Name},
	}
}

func (d *Dispatcher) findDelegate(name string) tools.Tool {
	for _, t := range d.delegates {
		if t.GetInfo().Name == name {
			return t
		}
	}
	return nil
}

func summarize(text string) string {
	if len(text) > 200 {
		return text[:200]
	}
	return text
}
