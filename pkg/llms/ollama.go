package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kaplanbora/sage/pkg/config"
	"github.com/kaplanbora/sage/pkg/httpclient"
)

// OllamaProvider talks to a local Ollama server via its /api/chat endpoint.
type OllamaProvider struct {
	config     *config.LLMProviderConfig
	httpClient *httpclient.Client
}

type OllamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []OllamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []OllamaTool    `json:"tools,omitempty"`
	Options  *OllamaOptions  `json:"options,omitempty"`
}

type OllamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type OllamaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type OllamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type OllamaChatResponse struct {
	Message struct {
		Role      string `json:"role"`
		Content   string `json:"content"`
		ToolCalls []struct {
			Function struct {
				Name      string         `json:"name"`
				Arguments map[string]any `json:"arguments"`
			} `json:"function"`
		} `json:"tool_calls,omitempty"`
	} `json:"message"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

func NewOllamaProvider(cfg *config.LLMProviderConfig) (*OllamaProvider, error) {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}

	return &OllamaProvider{
		config: cfg,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.Timeout) * time.Second,
			}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithBaseDelay(time.Duration(cfg.RetryDelay)*time.Second),
		),
	}, nil
}

func (p *OllamaProvider) ModelName() string {
	return p.config.Model
}

func (p *OllamaProvider) Close() error {
	return nil
}

func (p *OllamaProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, finish := startLLMSpan(ctx, "ollama", p.config.Model, req)

	request := p.buildRequest(req)

	body, err := json.Marshal(request)
	if err != nil {
		finish(0, err)
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.Host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		finish(0, err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		finish(0, err)
		return nil, fmt.Errorf("failed to send request to Ollama: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		finish(0, err)
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response OllamaChatResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		finish(0, err)
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if response.Error != "" {
		apiErr := fmt.Errorf("ollama API error: %s", response.Error)
		finish(0, apiErr)
		return nil, apiErr
	}

	result := &Response{
		Text:   response.Message.Content,
		Tokens: response.PromptEvalCount + response.EvalCount,
	}
	for i, tc := range response.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        fmt.Sprintf("call_%d", i),
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	finish(result.Tokens, nil)
	return result, nil
}

func (p *OllamaProvider) buildRequest(req Request) OllamaChatRequest {
	messages := make([]OllamaMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, OllamaMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, OllamaMessage{Role: "user", Content: req.Prompt})

	out := OllamaChatRequest{
		Model:    p.config.Model,
		Messages: messages,
		Stream:   false,
	}

	var opts OllamaOptions
	if p.config.Temperature != nil {
		opts.Temperature = *p.config.Temperature
	}
	if p.config.MaxTokens > 0 {
		opts.NumPredict = p.config.MaxTokens
	}
	if opts != (OllamaOptions{}) {
		out.Options = &opts
	}

	for _, tool := range req.Tools {
		var t OllamaTool
		t.Type = "function"
		t.Function.Name = tool.Name
		t.Function.Description = tool.Description
		t.Function.Parameters = tool.Parameters
		out.Tools = append(out.Tools, t)
	}
	return out
}
