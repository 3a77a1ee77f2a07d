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

// Package server exposes the HTTP surface: a chat endpoint for local
// integration, the debug trace export, recent logs, health, and Prometheus
// metrics. The chat transport proper (Telegram et al.) is an external
// collaborator; this server is for development and operations.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kaplanbora/sage/pkg/agent"
	"github.com/kaplanbora/sage/pkg/observability"
	"github.com/kaplanbora/sage/pkg/session"
	"github.com/kaplanbora/sage/pkg/trace"
)

// Server wires the dispatcher and observability surfaces into one router.
type Server struct {
	dispatcher *agent.Dispatcher
	sessions   session.Store
	traces     *TraceStore
	logs       *observability.LogBuffer
	httpServer *http.Server
	logger     *slog.Logger
}

func New(address string, dispatcher *agent.Dispatcher, sessions session.Store, traces *TraceStore, logs *observability.LogBuffer) *Server {
	s := &Server{
		dispatcher: dispatcher,
		sessions:   sessions,
		traces:     traces,
		logs:       logs,
		logger:     slog.Default(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/v1/chat", s.handleChat)
	r.Get("/debug/traces", s.handleTraceList)
	r.Get("/debug/traces/{id}", s.handleTraceGet)
	r.Get("/debug/logs", s.handleLogs)

	s.httpServer = &http.Server{
		Addr:              address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "address", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Response  string `json:"response"`
	Agent     string `json:"agent"`
	Success   bool   `json:"success"`
	TraceID   string `json:"trace_id,omitempty"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx := r.Context()

	history, err := s.sessions.History(ctx, req.SessionID, 20)
	if err != nil {
		s.logger.Warn("Failed to load session history", "session_id", req.SessionID, "error", err)
	}

	// Delegation traces register through the sink as they are created, so
	// specialist-side events stay reachable under their own trace ids.
	tr := trace.New(trace.WithUserMessage(req.Message), trace.WithChildSink(s.traces.Add))
	actx := &agent.AgentContext{
		SessionID:      req.SessionID,
		UserID:         req.UserID,
		MessageHistory: history,
		Trace:          tr,
	}

	result := s.dispatcher.Process(ctx, req.Message, actx)

	tr.Complete()
	s.traces.Add(tr)

	now := time.Now().UTC()
	if err := s.sessions.AppendMessage(ctx, req.SessionID, session.Message{Role: "user", Content: req.Message, Timestamp: now}); err != nil {
		s.logger.Warn("Failed to persist user message", "error", err)
	}
	if err := s.sessions.AppendMessage(ctx, req.SessionID, session.Message{Role: "assistant", Content: result.ResponseText, Timestamp: now}); err != nil {
		s.logger.Warn("Failed to persist assistant message", "error", err)
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:  result.ResponseText,
		Agent:     result.AgentName,
		Success:   result.Success,
		TraceID:   tr.ID(),
		SessionID: req.SessionID,
	})
}

func (s *Server) handleTraceList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"trace_ids": s.traces.RecentIDs()})
}

func (s *Server) handleTraceGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tr, ok := s.traces.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "trace not found"})
		return
	}
	writeJSON(w, http.StatusOK, tr.Export())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, map[string]any{"entries": []observability.LogEntry{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.logs.Recent()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}
