package interceptors

import (
	"context"
	"time"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"google.golang.org/grpc"
)

// UnaryDeadlineServerInterceptor caps the time a call may run. A shorter deadline set by
// the client still wins. A non-positive timeout disables the cap.
func UnaryDeadlineServerInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		_ *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if timeout <= 0 {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return handler(ctx, req)
	}
}

// StreamDeadlineServerInterceptor is the streaming counterpart of
// UnaryDeadlineServerInterceptor; the cap covers the whole stream.
func StreamDeadlineServerInterceptor(timeout time.Duration) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if timeout <= 0 {
			return handler(srv, ss)
		}
		ctx, cancel := context.WithTimeout(ss.Context(), timeout)
		defer cancel()
		wrapped := grpcmiddleware.WrapServerStream(ss)
		wrapped.WrappedContext = ctx
		return handler(srv, wrapped)
	}
}
