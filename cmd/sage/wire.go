package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kaplanbora/sage/pkg/agent"
	"github.com/kaplanbora/sage/pkg/calendar"
	"github.com/kaplanbora/sage/pkg/config"
	"github.com/kaplanbora/sage/pkg/delegate"
	"github.com/kaplanbora/sage/pkg/embedders"
	"github.com/kaplanbora/sage/pkg/engine"
	"github.com/kaplanbora/sage/pkg/llms"
	"github.com/kaplanbora/sage/pkg/logger"
	"github.com/kaplanbora/sage/pkg/observability"
	"github.com/kaplanbora/sage/pkg/pages"
	"github.com/kaplanbora/sage/pkg/server"
	"github.com/kaplanbora/sage/pkg/session"
	"github.com/kaplanbora/sage/pkg/tools"
	"github.com/kaplanbora/sage/pkg/vector"
)

// app holds every wired subsystem plus the handles needed to shut them down.
type app struct {
	cfg        *config.Config
	llm        llms.Provider
	embedder   embedders.Embedder
	vectors    vector.Provider
	source     *pages.SQLContentSource
	store      *pages.IndexStore
	sessions   session.Store
	calendar   calendar.Store
	dispatcher *agent.Dispatcher
	traces     *server.TraceStore
	logs       *observability.LogBuffer
	timezone   *time.Location
}

// buildApp wires config into the full dependency graph: providers, stores,
// specialists, dispatcher.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	a.timezone = tz

	if cfg.Observability.Metrics.Enabled {
		observability.SetGlobalMetrics(observability.NewMetrics(prometheus.DefaultRegisterer))
	}
	if _, err := observability.InitGlobalTracer(ctx, observability.TracerConfig{
		Enabled:      cfg.Observability.Tracing.Enabled,
		EndpointURL:  cfg.Observability.Tracing.EndpointURL,
		SamplingRate: cfg.Observability.Tracing.SamplingRate,
		ServiceName:  cfg.Observability.Tracing.ServiceName,
	}); err != nil {
		return nil, fmt.Errorf("failed to init tracer: %w", err)
	}

	a.llm, err = llms.NewProvider(&cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}

	a.embedder, err = embedders.NewEmbedder(&cfg.Embedder)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	a.vectors, err = vector.NewProvider(&cfg.Vector)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create vector provider: %w", err)
	}

	a.source, err = pages.NewSQLContentSource(cfg.Pages.Database)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open page store: %w", err)
	}
	a.store = pages.NewIndexStore(a.embedder, a.vectors, a.source, cfg.Vector.Collection)

	a.sessions, err = session.NewStore(&cfg.Session)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	a.calendar, err = calendar.NewSQLStore(cfg.Calendar.Database)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open calendar store: %w", err)
	}

	eng := engine.New(a.llm, a.store, &cfg.Engine, cfg.Pages.WorkspaceContext)

	knowledge := agent.NewKnowledgeSpecialist(eng)
	scheduler := agent.NewSchedulerSpecialist(a.llm, a.calendar, tz)
	recall := agent.NewRecallSpecialist(a.llm, a.sessions)
	chitchat := agent.NewChitchatSpecialist(a.llm)

	registry := agent.NewRegistry()
	for _, s := range []agent.Specialist{knowledge, scheduler, recall, chitchat} {
		if err := registry.RegisterSpecialist(s); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to register specialist: %w", err)
		}
	}

	delegates := []tools.Tool{
		delegate.MustWrap(knowledge, &agent.KnowledgeQuery{}),
		delegate.MustWrap(scheduler, &agent.CalendarQuery{}),
		delegate.MustWrap(recall, &agent.RecallQuery{}),
		delegate.MustWrap(chitchat, &agent.ChitchatQuery{}),
	}

	a.dispatcher = agent.NewDispatcher(a.llm, registry, delegates, tz)
	a.traces = server.NewTraceStore(100)
	a.logs = observability.NewLogBuffer(cfg.Observability.LogBufferSize, nil)

	// Mirror log records into the ring buffer behind the debug endpoint.
	level, _ := logger.ParseLevel(cfg.Log.Level)
	slog.SetDefault(slog.New(fanoutHandler{
		slog.Default().Handler(),
		a.logs.Handler(level),
	}))

	return a, nil
}

func (a *app) Close() {
	if a.llm != nil {
		a.llm.Close()
	}
	if a.embedder != nil {
		a.embedder.Close()
	}
	if a.vectors != nil {
		a.vectors.Close()
	}
	if a.source != nil {
		a.source.Close()
	}
	if a.sessions != nil {
		a.sessions.Close()
	}
	if a.calendar != nil {
		a.calendar.Close()
	}
}

// fanoutHandler duplicates every record to all wrapped handlers.
type fanoutHandler []slog.Handler

func (h fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, inner := range h {
		if inner.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, inner := range h {
		if !inner.Enabled(ctx, record.Level) {
			continue
		}
		if err := inner.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(h))
	for i, inner := range h {
		out[i] = inner.WithAttrs(attrs)
	}
	return out
}

func (h fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(h))
	for i, inner := range h {
		out[i] = inner.WithGroup(name)
	}
	return out
}

// initLogging configures the default logger from CLI flags and config.
func initLogging(levelStr, format, logFile string) (func(), error) {
	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}

	output := os.Stderr
	cleanup := func() {}
	if logFile != "" {
		file, closeFile, err := logger.OpenLogFile(logFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = closeFile
	}

	logger.Init(level, output, format)
	return cleanup, nil
}
