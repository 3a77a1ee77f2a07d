package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/kaplanbora/sage/pkg/session"
)

// ConversationHistoryTool reads recent messages from the session store.
type ConversationHistoryTool struct {
	store session.Store
}

type historyArgs struct {
	SessionID   string `mapstructure:"session_id"`
	MaxMessages int    `mapstructure:"max_messages"`
}

func NewConversationHistoryTool(store session.Store) *ConversationHistoryTool {
	return &ConversationHistoryTool{store: store}
}

func (t *ConversationHistoryTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "conversation_history",
		Description: "Retrieve recent messages from a conversation session.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"session_id": map[string]any{
					"type":        "string",
					"description": "Session to read",
				},
				"max_messages": map[string]any{
					"type":        "integer",
					"description": "Maximum messages to return (default 20, max 50)",
				},
			},
			"required": []string{"session_id"},
		},
	}
}

func (t *ConversationHistoryTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	start := time.Now()

	var params historyArgs
	if err := mapstructure.Decode(args, &params); err != nil {
		return Failure("conversation_history", fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if params.SessionID == "" {
		return Failure("conversation_history", "session_id is required"), nil
	}
	if params.MaxMessages <= 0 {
		params.MaxMessages = 20
	}
	if params.MaxMessages > 50 {
		params.MaxMessages = 50
	}

	messages, err := t.store.History(ctx, params.SessionID, params.MaxMessages)
	if err != nil {
		return Failure("conversation_history", fmt.Sprintf("failed to read history: %v", err)), nil
	}

	if len(messages) == 0 {
		return ToolResult{
			Success:       true,
			Content:       "No conversation history found.",
			ToolName:      "conversation_history",
			ExecutionTime: time.Since(start),
		}, nil
	}

	var sb strings.Builder
	for _, msg := range messages {
		fmt.Fprintf(&sb, "[%s] %s\n", msg.Role, msg.Content)
	}

	return ToolResult{
		Success:       true,
		Content:       sb.String(),
		Data:          map[string]any{"message_count": len(messages)},
		ToolName:      "conversation_history",
		ExecutionTime: time.Since(start),
	}, nil
}
