package trace

import "context"

type traceKey struct{}

// NewContext returns a context carrying the trace so components deep in the
// call graph (model-call adapters, pipeline stages) can append events without
// every signature threading a trace parameter through.
func NewContext(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

// FromContext returns the trace carried by ctx, or nil when the request is
// untraced.
func FromContext(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceKey{}).(*Trace)
	return t
}
