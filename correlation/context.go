package correlation

import (
	"context"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"

	"github.com/rainbow-me/gateway-correlation/common/logger"
)

// IDKey names the correlation id in log fields, span tags and baggage.
const IDKey = "correlation_id"

type idContextKey struct{}

// ContextWithID stores id in ctx. The context logger gains a correlation_id field and an
// active Datadog span is tagged with the id, which also travels on as baggage.
// An empty id returns ctx unchanged.
func ContextWithID(ctx context.Context, id string) context.Context {
	return contextWithID(ctx, id, nil)
}

// contextWithID uses base as the logger to enrich when ctx carries none.
func contextWithID(ctx context.Context, id string, base *logger.Logger) context.Context {
	if id == "" {
		return ctx
	}
	if current, ok := IDFromContext(ctx); ok && current == id {
		return ctx
	}

	if span, ok := tracer.SpanFromContext(ctx); ok {
		span.SetTag(IDKey, id)
		span.SetBaggageItem(IDKey, id)
	}

	ctx = context.WithValue(ctx, idContextKey{}, id)
	return logger.ContextWithLogger(ctx, logger.FromContextOr(ctx, base).With(LogField(id)))
}

// IDFromContext returns the id stored by ContextWithID.
func IDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(idContextKey{}).(string)
	return id, ok && id != ""
}

func LogField(id string) logger.Field {
	return logger.String(IDKey, id)
}
