package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  type: ollama
`)

	loader, err := NewLoader(LoaderOptions{Path: path})
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Type)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "chromem", cfg.Vector.Type)
	assert.Equal(t, 3, cfg.Engine.MaxQueries)
	assert.Equal(t, 10, cfg.Engine.RerankTopN)
	assert.True(t, cfg.Engine.IsEnabled())
	assert.True(t, cfg.Engine.UseSynthesis())
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_SAGE_KEY", "sk-test-123")

	path := writeConfig(t, `
llm:
  type: openai
  api_key: ${TEST_SAGE_KEY}
engine:
  max_queries: ${UNSET_SAGE_VAR:-2}
`)

	loader, err := NewLoader(LoaderOptions{Path: path})
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test-123", cfg.LLM.APIKey)
	assert.Equal(t, 2, cfg.Engine.MaxQueries)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing api key", "llm:\n  type: openai\n"},
		{"unknown provider", "llm:\n  type: martian\n"},
		{"max_queries out of range", "llm:\n  type: ollama\nengine:\n  max_queries: 9\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, err := NewLoader(LoaderOptions{Path: writeConfig(t, tt.content)})
			require.NoError(t, err)

			_, err = loader.Load()
			assert.Error(t, err)
		})
	}
}

func TestEngineToggleOverride(t *testing.T) {
	path := writeConfig(t, `
llm:
  type: ollama
engine:
  enabled: false
  llm_reranking: false
`)

	loader, err := NewLoader(LoaderOptions{Path: path})
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.False(t, cfg.Engine.IsEnabled())
	assert.False(t, cfg.Engine.UseReranking())
	assert.True(t, cfg.Engine.UseQueryExpansion())
}
