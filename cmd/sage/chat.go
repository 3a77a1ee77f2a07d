package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kaplanbora/sage/pkg/agent"
	"github.com/kaplanbora/sage/pkg/session"
	"github.com/kaplanbora/sage/pkg/trace"
)

// ChatCmd runs a terminal REPL against the dispatcher. It is a development
// transport; production chat surfaces talk to the HTTP server instead.
type ChatCmd struct {
	SessionID string `help:"Resume an existing session id."`
	Debug     bool   `help:"Save a trace export for every turn under .sage/traces/."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}

	ctx := context.Background()
	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	sessionID := c.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	fmt.Printf("sage chat (session %s). Type 'exit' to quit.\n\n", sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if message == "exit" || message == "quit" {
			break
		}

		history, err := app.sessions.History(ctx, sessionID, 20)
		if err != nil {
			slog.Warn("Failed to load history", "error", err)
		}

		var children []*trace.Trace
		tr := trace.New(trace.WithUserMessage(message), trace.WithChildSink(func(t *trace.Trace) {
			app.traces.Add(t)
			children = append(children, t)
		}))
		actx := &agent.AgentContext{
			SessionID:      sessionID,
			MessageHistory: history,
			Trace:          tr,
		}

		result := app.dispatcher.Process(ctx, message, actx)
		tr.Complete()
		app.traces.Add(tr)

		fmt.Printf("\n%s\n\n", result.ResponseText)

		now := time.Now().UTC()
		app.sessions.AppendMessage(ctx, sessionID, session.Message{Role: "user", Content: message, Timestamp: now})
		app.sessions.AppendMessage(ctx, sessionID, session.Message{Role: "assistant", Content: result.ResponseText, Timestamp: now})

		if c.Debug {
			for _, t := range append([]*trace.Trace{tr}, children...) {
				if err := saveTrace(t); err != nil {
					slog.Warn("Failed to save trace", "error", err)
				}
			}
		}
	}
	return scanner.Err()
}

func saveTrace(tr *trace.Trace) error {
	dir := filepath.Join(".sage", "traces")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := tr.ExportJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, tr.ID()+".json"), data, 0644)
}
