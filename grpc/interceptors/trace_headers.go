package interceptors

import (
	"context"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/rainbow-me/gateway-correlation/common/headers"
)

// UnaryTraceHeadersServerInterceptor returns the Datadog trace id and the caller's request
// id as response headers, next to the correlation id, so a client can quote all three.
func UnaryTraceHeadersServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		_ *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if md := traceHeaders(ctx); md.Len() > 0 {
			_ = grpc.SetHeader(ctx, md)
		}
		return handler(ctx, req)
	}
}

func traceHeaders(ctx context.Context) metadata.MD {
	md := metadata.MD{}
	if span, ok := tracer.SpanFromContext(ctx); ok {
		md.Set(headers.HeaderXTraceID, span.Context().TraceID())
	}
	if incoming, ok := metadata.FromIncomingContext(ctx); ok {
		if v := incoming.Get(headers.HeaderXRequestID); len(v) > 0 && v[0] != "" {
			md.Set(headers.HeaderXRequestID, v[0])
		}
	}
	return md
}
