package llms

import (
	"testing"

	"github.com/kaplanbora/sage/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToolArguments(t *testing.T) {
	args, err := parseToolArguments(`{"query": "deadline", "max_results": 5}`)
	require.NoError(t, err)
	assert.Equal(t, "deadline", args["query"])
	assert.Equal(t, float64(5), args["max_results"])

	args, err = parseToolArguments("")
	require.NoError(t, err)
	assert.Empty(t, args)

	// Models sometimes wrap arguments in fences; the extractor recovers it.
	args, err = parseToolArguments("```json\n{\"a\": 1}\n```")
	require.NoError(t, err)
	assert.Equal(t, float64(1), args["a"])

	_, err = parseToolArguments("not json at all")
	assert.Error(t, err)
}

func TestOpenAIBuildRequest(t *testing.T) {
	cfg := &config.LLMProviderConfig{
		Type:      "openai",
		Model:     "gpt-4o-mini",
		APIKey:    "sk-test",
		MaxTokens: 512,
	}
	cfg.SetDefaults()

	p, err := NewOpenAIProvider(cfg)
	require.NoError(t, err)

	req := p.buildRequest(Request{
		Prompt:       "hello",
		SystemPrompt: "be brief",
		Tools: []ToolDefinition{{
			Name:        "delegate_to_knowledge",
			Description: "search the workspace",
			Parameters:  map[string]any{"type": "object"},
		}},
	})

	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "user", req.Messages[1].Role)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "function", req.Tools[0].Type)
	assert.Equal(t, "delegate_to_knowledge", req.Tools[0].Function.Name)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 512, *req.MaxTokens)
}

func TestNewProviderFactory(t *testing.T) {
	_, err := NewProvider(&config.LLMProviderConfig{Type: "unknown"})
	assert.Error(t, err)

	p, err := NewProvider(&config.LLMProviderConfig{Type: "ollama", Model: "llama3.2"})
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", p.ModelName())
}
