package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kaplanbora/sage/pkg/llms"
	"github.com/kaplanbora/sage/pkg/tools"
	"github.com/kaplanbora/sage/pkg/trace"
)

// maxToolRounds bounds the generate/execute cycle so a model that keeps
// requesting tools cannot loop forever.
const maxToolRounds = 4

// runToolLoop drives a model through its tool calls: generate, execute every
// requested tool, feed the results back, repeat until the model answers in
// text or the round budget runs out. Returns the final text and the names of
// the tools that ran.
func runToolLoop(ctx context.Context, llm llms.Provider, systemPrompt, message string, toolSet []tools.Tool, actx *AgentContext) (string, []string, error) {
	defs := tools.Definitions(toolSet)
	byName := make(map[string]tools.Tool, len(toolSet))
	for _, t := range toolSet {
		byName[t.GetInfo().Name] = t
	}

	var called []string
	prompt := message

	for round := 0; round < maxToolRounds; round++ {
		resp, err := llm.Generate(ctx, llms.Request{
			SystemPrompt: systemPrompt,
			Prompt:       prompt,
			Tools:        defs,
		})
		if err != nil {
			return "", called, err
		}
		if len(resp.ToolCalls) == 0 {
			return resp.Text, called, nil
		}

		var sb strings.Builder
		sb.WriteString(prompt)
		sb.WriteString("\n\n")

		for _, call := range resp.ToolCalls {
			tool, ok := byName[call.Name]
			if !ok {
				fmt.Fprintf(&sb, "Tool %s is not available.\n", call.Name)
				continue
			}

			start := time.Now()
			result, err := tool.Execute(ctx, call.Arguments)
			called = append(called, call.Name)
			recordToolCall(actx, call.Name, result, time.Since(start))

			switch {
			case err != nil:
				fmt.Fprintf(&sb, "Tool %s failed: %v\n", call.Name, err)
			case !result.Success:
				fmt.Fprintf(&sb, "Tool %s failed: %s\n", call.Name, result.Error)
			default:
				fmt.Fprintf(&sb, "Tool %s returned: %s\n", call.Name, result.Content)
			}
		}

		sb.WriteString("\nUse the tool results above to answer the original request in plain text.")
		prompt = sb.String()
	}

	return "", called, fmt.Errorf("tool loop exceeded %d rounds", maxToolRounds)
}

func recordToolCall(actx *AgentContext, toolName string, result tools.ToolResult, elapsed time.Duration) {
	if actx == nil || actx.Trace == nil {
		return
	}
	summary := result.Content
	if !result.Success {
		summary = result.Error
	}
	if len(summary) > 200 {
		summary = summary[:200]
	}
	durationMS := float64(elapsed) / float64(time.Millisecond)
	actx.Trace.AddEvent(trace.EventToolCall, "specialist", toolName, summary, &durationMS,
		map[string]any{"success": result.Success})
}
