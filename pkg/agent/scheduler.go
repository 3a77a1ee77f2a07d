package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kaplanbora/sage/pkg/calendar"
	"github.com/kaplanbora/sage/pkg/llms"
	"github.com/kaplanbora/sage/pkg/tools"
)

// SchedulerSpecialist reads and writes the calendar. Structured write
// queries go straight to the store; everything else runs through the model
// with the calendar tools attached.
type SchedulerSpecialist struct {
	llm      llms.Provider
	store    calendar.Store
	tools    []tools.Tool
	timezone *time.Location
}

func NewSchedulerSpecialist(llm llms.Provider, store calendar.Store, tz *time.Location) *SchedulerSpecialist {
	if tz == nil {
		tz = time.Local
	}
	return &SchedulerSpecialist{
		llm:   llm,
		store: store,
		tools: []tools.Tool{
			tools.NewCalendarReaderTool(store),
			tools.NewCalendarWriterTool(store),
		},
		timezone: tz,
	}
}

func (s *SchedulerSpecialist) Name() string { return "scheduler" }

func (s *SchedulerSpecialist) Description() string {
	return "Manages the calendar: lists upcoming events and creates new ones."
}

func (s *SchedulerSpecialist) GetSystemPrompt(actx *AgentContext) string {
	now := time.Now().In(s.timezone)
	return fmt.Sprintf(`You manage the user's calendar with the calendar_reader and
calendar_writer tools. Today is %s (%s). Resolve relative dates like
"tomorrow" or "next Tuesday" against today before calling a tool. Always
confirm what you did in plain language.`,
		now.Format("Monday, January 2, 2006 15:04"), s.timezone.String())
}

func (s *SchedulerSpecialist) Process(ctx context.Context, message string, actx *AgentContext) AgentResult {
	start := time.Now()

	// Structured write requests skip the model entirely.
	var query CalendarQuery
	if err := json.Unmarshal([]byte(message), &query); err == nil && query.Action == "write" && query.Title != "" && query.StartTime != "" {
		return s.directWrite(ctx, query, actx, start)
	}

	text, called, err := runToolLoop(ctx, s.llm, s.GetSystemPrompt(actx), message, s.tools, actx)
	if err != nil {
		return failureResult(s.Name(), "I couldn't reach the calendar right now. Please try again.",
			actx, float64(time.Since(start))/float64(time.Millisecond))
	}

	return AgentResult{
		Success:          true,
		ResponseText:     text,
		AgentName:        s.Name(),
		TraceID:          actx.TraceID(),
		ToolCallsMade:    called,
		ProcessingTimeMS: float64(time.Since(start)) / float64(time.Millisecond),
	}
}

func (s *SchedulerSpecialist) directWrite(ctx context.Context, query CalendarQuery, actx *AgentContext, start time.Time) AgentResult {
	writer := tools.NewCalendarWriterTool(s.store)
	result, err := writer.Execute(ctx, map[string]any{
		"title":            query.Title,
		"start_time":       query.StartTime,
		"duration_minutes": query.DurationMinutes,
		"description":      query.Description,
		"location":         query.Location,
	})
	if err != nil || !result.Success {
		return failureResult(s.Name(), "I couldn't create that event. Please check the details and try again.",
			actx, float64(time.Since(start))/float64(time.Millisecond))
	}

	return AgentResult{
		Success:          true,
		ResponseText:     result.Content,
		StructuredData:   result.Data,
		AgentName:        s.Name(),
		TraceID:          actx.TraceID(),
		ToolCallsMade:    []string{"calendar_writer"},
		ProcessingTimeMS: float64(time.Since(start)) / float64(time.Millisecond),
	}
}
