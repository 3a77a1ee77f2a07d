// Package config holds the typed configuration for every subsystem plus the
// koanf-based loader. Each config struct owns its defaults and validation.
package config

import (
	"fmt"
)

// Config is the root configuration document.
type Config struct {
	Log           LogConfig           `yaml:"log"`
	LLM           LLMProviderConfig   `yaml:"llm"`
	Embedder      EmbedderConfig      `yaml:"embedder"`
	Vector        VectorConfig        `yaml:"vector"`
	Pages         PagesConfig         `yaml:"pages"`
	Engine        EngineConfig        `yaml:"engine"`
	Session       SessionConfig       `yaml:"session"`
	Calendar      CalendarConfig      `yaml:"calendar"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`

	// Timezone is the IANA zone name used when a session carries none.
	Timezone string `yaml:"timezone"`
}

func (c *Config) SetDefaults() {
	c.Log.SetDefaults()
	c.LLM.SetDefaults()
	c.Embedder.SetDefaults()
	c.Vector.SetDefaults()
	c.Pages.SetDefaults()
	c.Engine.SetDefaults()
	c.Session.SetDefaults()
	c.Calendar.SetDefaults()
	c.Server.SetDefaults()
	c.Observability.SetDefaults()
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
}

func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Embedder.Validate(); err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	if err := c.Vector.Validate(); err != nil {
		return fmt.Errorf("vector: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *LogConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// LLMProviderConfig configures one model provider.
type LLMProviderConfig struct {
	// Type is the provider: openai, anthropic, or ollama.
	Type string `yaml:"type"`

	Model string `yaml:"model"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty"`

	// Host overrides the provider's default API endpoint.
	Host string `yaml:"host,omitempty"`

	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`

	// Timeout in seconds for one request.
	Timeout    int `yaml:"timeout,omitempty"`
	MaxRetries int `yaml:"max_retries,omitempty"`
	RetryDelay int `yaml:"retry_delay,omitempty"`
}

func (c *LLMProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "openai"
	}
	if c.Model == "" {
		switch c.Type {
		case "anthropic":
			c.Model = "claude-sonnet-4-20250514"
		case "ollama":
			c.Model = "llama3.2"
		default:
			c.Model = "gpt-4o-mini"
		}
	}
	if c.Timeout == 0 {
		c.Timeout = 120
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 2
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
}

func (c *LLMProviderConfig) Validate() error {
	switch c.Type {
	case "openai", "anthropic":
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for provider %s", c.Type)
		}
	case "ollama":
	default:
		return fmt.Errorf("unknown provider type: %s", c.Type)
	}
	return nil
}

// EmbedderConfig configures the embedding provider backing vector search.
type EmbedderConfig struct {
	Type       string `yaml:"type"`
	Model      string `yaml:"model,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	Host       string `yaml:"host,omitempty"`
	Dimension  int    `yaml:"dimension,omitempty"`
	Timeout    int    `yaml:"timeout,omitempty"`
	MaxRetries int    `yaml:"max_retries,omitempty"`
	BatchSize  int    `yaml:"batch_size,omitempty"`
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "ollama"
	}
	if c.Model == "" {
		switch c.Type {
		case "openai":
			c.Model = "text-embedding-3-small"
		default:
			c.Model = "nomic-embed-text"
		}
	}
	if c.Dimension == 0 {
		switch c.Model {
		case "text-embedding-3-large":
			c.Dimension = 3072
		case "text-embedding-3-small", "text-embedding-ada-002":
			c.Dimension = 1536
		default:
			c.Dimension = 768
		}
	}
	if c.Host == "" && c.Type == "ollama" {
		c.Host = "http://localhost:11434"
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
}

func (c *EmbedderConfig) Validate() error {
	switch c.Type {
	case "openai":
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for openai embedder")
		}
	case "ollama":
	default:
		return fmt.Errorf("unknown embedder type: %s", c.Type)
	}
	return nil
}

// VectorConfig selects and configures the vector index backend.
type VectorConfig struct {
	// Type is the backend: chromem (embedded, default) or qdrant.
	Type       string       `yaml:"type"`
	Collection string       `yaml:"collection,omitempty"`
	Chromem    ChromemConfig `yaml:"chromem,omitempty"`
	Qdrant     QdrantConfig  `yaml:"qdrant,omitempty"`
}

type ChromemConfig struct {
	// Path is the persistence directory; empty means in-memory only.
	Path string `yaml:"path,omitempty"`
}

type QdrantConfig struct {
	Host   string `yaml:"host,omitempty"`
	Port   int    `yaml:"port,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
	UseTLS bool   `yaml:"use_tls,omitempty"`
}

func (c *VectorConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "chromem"
	}
	if c.Collection == "" {
		c.Collection = "pages"
	}
	if c.Qdrant.Host == "" {
		c.Qdrant.Host = "localhost"
	}
	if c.Qdrant.Port == 0 {
		c.Qdrant.Port = 6334
	}
}

func (c *VectorConfig) Validate() error {
	switch c.Type {
	case "chromem", "qdrant":
		return nil
	default:
		return fmt.Errorf("unknown vector backend: %s", c.Type)
	}
}

// DatabaseConfig points at a SQL database. Driver is one of sqlite3,
// postgres, mysql.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

func (c *DatabaseConfig) SetDefaults(defaultDSN string) {
	if c.Driver == "" {
		c.Driver = "sqlite3"
	}
	if c.DSN == "" {
		c.DSN = defaultDSN
	}
}

// PagesConfig configures the document store the pipeline searches.
type PagesConfig struct {
	// WorkspaceContext is a short description of the indexed corpus,
	// supplied to intent analysis as grounding.
	WorkspaceContext string `yaml:"workspace_context,omitempty"`

	Database DatabaseConfig `yaml:"database"`
}

func (c *PagesConfig) SetDefaults() {
	if c.WorkspaceContext == "" {
		c.WorkspaceContext = "A personal knowledge base of notes, project pages, and reference documents."
	}
	c.Database.SetDefaults("sage_pages.db")
}

// EngineConfig controls the retrieval pipeline. The stage toggles default to
// enabled; nil means "not set".
type EngineConfig struct {
	Enabled         *bool `yaml:"enabled,omitempty"`
	QueryExpansion  *bool `yaml:"query_expansion,omitempty"`
	LLMReranking    *bool `yaml:"llm_reranking,omitempty"`
	AnswerSynthesis *bool `yaml:"answer_synthesis,omitempty"`

	// MaxQueries caps primary queries per run (1-5).
	MaxQueries int `yaml:"max_queries,omitempty"`

	// RerankTopN is both the per-query result budget and the rerank
	// candidate cap.
	RerankTopN int `yaml:"rerank_top_n,omitempty"`

	// FetchTopN caps how many ranked pages get full content fetched.
	FetchTopN int `yaml:"fetch_top_n,omitempty"`
}

func (c *EngineConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = boolPtr(true)
	}
	if c.QueryExpansion == nil {
		c.QueryExpansion = boolPtr(true)
	}
	if c.LLMReranking == nil {
		c.LLMReranking = boolPtr(true)
	}
	if c.AnswerSynthesis == nil {
		c.AnswerSynthesis = boolPtr(true)
	}
	if c.MaxQueries == 0 {
		c.MaxQueries = 3
	}
	if c.RerankTopN == 0 {
		c.RerankTopN = 10
	}
	if c.FetchTopN == 0 {
		c.FetchTopN = 3
	}
}

func (c *EngineConfig) Validate() error {
	if c.MaxQueries < 1 || c.MaxQueries > 5 {
		return fmt.Errorf("max_queries must be between 1 and 5, got %d", c.MaxQueries)
	}
	if c.RerankTopN < 1 {
		return fmt.Errorf("rerank_top_n must be positive")
	}
	if c.FetchTopN < 1 {
		return fmt.Errorf("fetch_top_n must be positive")
	}
	return nil
}

func (c *EngineConfig) IsEnabled() bool         { return c.Enabled != nil && *c.Enabled }
func (c *EngineConfig) UseQueryExpansion() bool { return c.QueryExpansion != nil && *c.QueryExpansion }
func (c *EngineConfig) UseReranking() bool      { return c.LLMReranking != nil && *c.LLMReranking }
func (c *EngineConfig) UseSynthesis() bool      { return c.AnswerSynthesis != nil && *c.AnswerSynthesis }

// SessionConfig configures conversation history storage.
type SessionConfig struct {
	// Store is memory or sql.
	Store    string         `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`

	// MaxHistory caps messages kept per session in the memory store.
	MaxHistory int `yaml:"max_history,omitempty"`
}

func (c *SessionConfig) SetDefaults() {
	if c.Store == "" {
		c.Store = "memory"
	}
	if c.MaxHistory == 0 {
		c.MaxHistory = 200
	}
	c.Database.SetDefaults("sage_sessions.db")
}

// CalendarConfig configures the local scheduling store.
type CalendarConfig struct {
	Database DatabaseConfig `yaml:"database"`
}

func (c *CalendarConfig) SetDefaults() {
	c.Database.SetDefaults("sage_calendar.db")
}

// ServerConfig configures the debug/ops HTTP surface.
type ServerConfig struct {
	Address string `yaml:"address"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8600"
	}
}

type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`

	// LogBufferSize is the ring buffer capacity for the debug log feed.
	LogBufferSize int `yaml:"log_buffer_size,omitempty"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	EndpointURL  string  `yaml:"endpoint_url,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate,omitempty"`
	ServiceName  string  `yaml:"service_name,omitempty"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

func (c *ObservabilityConfig) SetDefaults() {
	if c.LogBufferSize == 0 {
		c.LogBufferSize = 256
	}
}

func boolPtr(v bool) *bool { return &v }
