package llms

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/kaplanbora/sage/pkg/observability"
	"github.com/kaplanbora/sage/pkg/trace"
)

// startLLMSpan opens a span for one model call and returns a finish func
// that records status, token usage, and metrics. When the context carries a
// request trace, the call is also appended to it: a model_request event up
// front, then a model_response or error event from the finish func.
func startLLMSpan(ctx context.Context, providerName, model string, req Request) (context.Context, func(tokens int, err error)) {
	tracer := observability.GetTracer("sage.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		oteltrace.WithAttributes(
			attribute.String(observability.AttrLLMModel, model),
			attribute.String("provider", providerName),
		),
	)
	start := time.Now()

	reqTrace := trace.FromContext(ctx)
	if reqTrace != nil {
		reqTrace.AddEvent(trace.EventModelRequest, providerName, model, clip(req.Prompt, 200), nil,
			map[string]any{"tools": len(req.Tools)})
	}

	return ctx, func(tokens int, err error) {
		duration := time.Since(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int(observability.AttrLLMTokensTotal, tokens))
			span.SetStatus(codes.Ok, "success")
		}
		span.End()

		if reqTrace != nil {
			durationMS := float64(duration) / float64(time.Millisecond)
			if err != nil {
				reqTrace.AddEvent(trace.EventError, providerName, model, clip(err.Error(), 200), &durationMS, nil)
			} else {
				reqTrace.AddEvent(trace.EventModelResponse, providerName, model,
					fmt.Sprintf("%d tokens", tokens), &durationMS, map[string]any{"tokens": tokens})
			}
		}

		observability.GetGlobalMetrics().RecordLLMCall(providerName, duration, tokens, err)
	}
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
