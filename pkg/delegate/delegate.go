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

// Package delegate wraps specialists as tools the dispatcher's model can
// call. The wrapper is the only component that sees both the tool shape and
// the specialist shape: it validates arguments, derives the child trace
// scope, and converts results. Specialists stay blind to dispatcher tools
// and vice versa.
package delegate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/kaplanbora/sage/pkg/agent"
	"github.com/kaplanbora/sage/pkg/tools"
	"github.com/kaplanbora/sage/pkg/trace"
)

// AgentTool exposes one specialist as a delegation tool named
// delegate_to_<specialist>.
type AgentTool struct {
	specialist agent.Specialist
	schema     map[string]any
}

// Wrap builds the delegation tool for a specialist. requestShape is an
// instance of the request struct whose reflected JSON schema becomes the
// tool's parameter schema; the wrapper owns the schema, not the specialist.
func Wrap(specialist agent.Specialist, requestShape any) (*AgentTool, error) {
	schema, err := reflectSchema(requestShape)
	if err != nil {
		return nil, fmt.Errorf("failed to reflect schema for %s: %w", specialist.Name(), err)
	}
	return &AgentTool{specialist: specialist, schema: schema}, nil
}

// MustWrap is Wrap for startup wiring, where a schema failure is a
// programming error.
func MustWrap(specialist agent.Specialist, requestShape any) *AgentTool {
	t, err := Wrap(specialist, requestShape)
	if err != nil {
		panic(err)
	}
	return t
}

func reflectSchema(shape any) (map[string]any, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	raw, err := json.Marshal(reflector.Reflect(shape))
	if err != nil {
		return nil, err
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, err
	}
	// The version marker is noise in a tool parameter schema.
	delete(schema, "$schema")
	return schema, nil
}

func (t *AgentTool) toolName() string {
	return "delegate_to_" + t.specialist.Name()
}

func (t *AgentTool) GetInfo() tools.ToolInfo {
	return tools.ToolInfo{
		Name: t.toolName(),
		Description: fmt.Sprintf("Delegate this request to the %s specialist. %s",
			t.specialist.Name(), t.specialist.Description()),
		Parameters: t.schema,
	}
}

// Execute validates the arguments, derives a child context, runs the
// specialist, and converts its result back to a tool result. Validation
// failures and specialist panics become failed results, never errors.
func (t *AgentTool) Execute(ctx context.Context, args map[string]any) (result tools.ToolResult, err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = tools.Failure(t.toolName(), fmt.Sprintf("Agent delegation failed: %v", r))
			err = nil
		}
	}()

	parent := agent.FromContext(ctx)

	if verr := validateArgs(t.schema, args); verr != nil {
		if parent != nil && parent.Trace != nil {
			parent.Trace.AddEvent(trace.EventError, t.toolName(), "dispatcher", verr.Error(), nil, nil)
		}
		return tools.Failure(t.toolName(), verr.Error()), nil
	}

	message, merr := json.Marshal(args)
	if merr != nil {
		return tools.Failure(t.toolName(), fmt.Sprintf("Agent delegation failed: %v", merr)), nil
	}

	child := parent.Child()
	if child.Trace != nil {
		child.Trace.AddEvent(trace.EventRequest, "dispatcher", t.specialist.Name(),
			t.toolName(), nil, map[string]any{"parent_trace_id": child.Trace.ParentID()})
	}

	// Rebind the context so model calls and tool loops inside the specialist
	// land on the child scope, not the dispatcher's.
	agentResult := t.specialist.Process(agent.WithContext(ctx, child), string(message), child)

	if child.Trace != nil {
		child.Trace.Complete()
	}

	if !agentResult.Success {
		// The specialist authored this text for the user, so it rides in
		// Content too; wrapper-level failures leave Content empty.
		return tools.ToolResult{
			Success:       false,
			Content:       agentResult.ResponseText,
			Error:         agentResult.ResponseText,
			Data:          agentResult.StructuredData,
			ToolName:      t.toolName(),
			ExecutionTime: time.Since(start),
		}, nil
	}

	return tools.ToolResult{
		Success:       true,
		Content:       agentResult.ResponseText,
		Data:          agentResult.StructuredData,
		ToolName:      t.toolName(),
		ExecutionTime: time.Since(start),
	}, nil
}
