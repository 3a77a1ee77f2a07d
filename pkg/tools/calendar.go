package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/kaplanbora/sage/pkg/calendar"
)

// CalendarReaderTool lists upcoming events.
type CalendarReaderTool struct {
	store calendar.Store
}

type calendarReaderArgs struct {
	DaysAhead int    `mapstructure:"days_ahead"`
	DaysBack  int    `mapstructure:"days_back"`
}

func NewCalendarReaderTool(store calendar.Store) *CalendarReaderTool {
	return &CalendarReaderTool{store: store}
}

func (t *CalendarReaderTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "calendar_reader",
		Description: "List calendar events in a window around today.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"days_ahead": map[string]any{
					"type":        "integer",
					"description": "How many days forward to include (default 7)",
				},
				"days_back": map[string]any{
					"type":        "integer",
					"description": "How many days back to include (default 0)",
				},
			},
		},
	}
}

func (t *CalendarReaderTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	start := time.Now()

	var params calendarReaderArgs
	if err := mapstructure.Decode(args, &params); err != nil {
		return Failure("calendar_reader", fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if params.DaysAhead <= 0 {
		params.DaysAhead = 7
	}

	now := time.Now()
	from := now.AddDate(0, 0, -params.DaysBack)
	to := now.AddDate(0, 0, params.DaysAhead)

	events, err := t.store.ListEvents(ctx, from, to)
	if err != nil {
		return Failure("calendar_reader", fmt.Sprintf("failed to list events: %v", err)), nil
	}

	if len(events) == 0 {
		return ToolResult{
			Success:       true,
			Content:       "No events found in that window.",
			ToolName:      "calendar_reader",
			ExecutionTime: time.Since(start),
		}, nil
	}

	var sb strings.Builder
	for _, event := range events {
		fmt.Fprintf(&sb, "- %s at %s", event.Title, event.StartTime.Format("Mon Jan 2 15:04"))
		if event.Location != "" {
			fmt.Fprintf(&sb, " (%s)", event.Location)
		}
		sb.WriteString("\n")
	}

	return ToolResult{
		Success:       true,
		Content:       sb.String(),
		Data:          map[string]any{"event_count": len(events)},
		ToolName:      "calendar_reader",
		ExecutionTime: time.Since(start),
	}, nil
}

// CalendarWriterTool creates an event.
type CalendarWriterTool struct {
	store calendar.Store
}

type calendarWriterArgs struct {
	Title           string `mapstructure:"title"`
	StartTime       string `mapstructure:"start_time"`
	DurationMinutes int    `mapstructure:"duration_minutes"`
	Description     string `mapstructure:"description"`
	Location        string `mapstructure:"location"`
}

func NewCalendarWriterTool(store calendar.Store) *CalendarWriterTool {
	return &CalendarWriterTool{store: store}
}

func (t *CalendarWriterTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "calendar_writer",
		Description: "Create a calendar event.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Event title",
				},
				"start_time": map[string]any{
					"type":        "string",
					"description": "Event start in RFC3339 format",
				},
				"duration_minutes": map[string]any{
					"type":        "integer",
					"description": "Event length in minutes (default 60)",
				},
				"description": map[string]any{
					"type": "string",
				},
				"location": map[string]any{
					"type": "string",
				},
			},
			"required": []string{"title", "start_time"},
		},
	}
}

func (t *CalendarWriterTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	start := time.Now()

	var params calendarWriterArgs
	if err := mapstructure.Decode(args, &params); err != nil {
		return Failure("calendar_writer", fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if params.Title == "" || params.StartTime == "" {
		return Failure("calendar_writer", "title and start_time are required"), nil
	}

	startTime, err := time.Parse(time.RFC3339, params.StartTime)
	if err != nil {
		return Failure("calendar_writer", fmt.Sprintf("start_time must be RFC3339: %v", err)), nil
	}
	if params.DurationMinutes <= 0 {
		params.DurationMinutes = 60
	}

	event, err := t.store.CreateEvent(ctx, calendar.Event{
		Title:       params.Title,
		StartTime:   startTime,
		EndTime:     startTime.Add(time.Duration(params.DurationMinutes) * time.Minute),
		Description: params.Description,
		Location:    params.Location,
	})
	if err != nil {
		return Failure("calendar_writer", fmt.Sprintf("failed to create event: %v", err)), nil
	}

	return ToolResult{
		Success:       true,
		Content:       fmt.Sprintf("Created event %q at %s.", event.Title, event.StartTime.Format("Mon Jan 2 15:04")),
		Data:          map[string]any{"event_id": event.ID},
		ToolName:      "calendar_writer",
		ExecutionTime: time.Since(start),
	}, nil
}
