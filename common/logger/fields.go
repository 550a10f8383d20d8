package logger

import (
	"fmt"
	"strconv"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
)

// WithTrace returns the fields that let Datadog link a log line to its span.
func WithTrace(sc *tracer.SpanContext) []Field {
	if sc == nil {
		return nil
	}
	return []Field{
		String("dd.trace_id", sc.TraceID()),
		String("dd.span_id", strconv.FormatUint(sc.SpanID(), 10)),
	}
}

// WithPanic describes a recovered panic value.
func WithPanic(r any) []Field {
	return []Field{
		String("panic_value", fmt.Sprintf("%v", r)),
		String("panic_type", fmt.Sprintf("%T", r)),
		Stack("stack_trace"),
	}
}
