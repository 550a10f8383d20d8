package interceptors

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/ext"
	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	grpcrecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rainbow-me/gateway-correlation/common/env"
	"github.com/rainbow-me/gateway-correlation/common/logger"
)

// UnaryPanicRecoveryServerInterceptor recovers from panics in unary handlers, logs them
// with the call's context logger (falling back to log) and answers with codes.Internal.
// The panic value never reaches the client.
func UnaryPanicRecoveryServerInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return grpcrecovery.UnaryServerInterceptor(
		grpcrecovery.WithRecoveryHandlerContext(recoveryHandler(log)),
	)
}

// StreamPanicRecoveryServerInterceptor is the streaming counterpart of
// UnaryPanicRecoveryServerInterceptor.
func StreamPanicRecoveryServerInterceptor(log *logger.Logger) grpc.StreamServerInterceptor {
	return grpcrecovery.StreamServerInterceptor(
		grpcrecovery.WithRecoveryHandlerContext(recoveryHandler(log)),
	)
}

func recoveryHandler(log *logger.Logger) grpcrecovery.RecoveryHandlerFuncContext {
	return func(ctx context.Context, panicValue any) error {
		logger.FromContextOr(ctx, log).Error("Recovered from panic in gRPC handler", logger.WithPanic(panicValue)...)
		if env.IsLocalApplicationEnv() {
			// pretty print the stack trace to the local console to make it human-readable
			_, _ = fmt.Fprintf(os.Stderr, "%s\n", debug.Stack())
		}

		span, ok := tracer.SpanFromContext(ctx)
		if ok {
			span.SetTag(ext.Error, true)
			span.SetTag(ext.ErrorType, "panic")
			span.SetTag(ext.ErrorMsg, codes.Internal.String())
		}

		return status.Error(codes.Internal, "Internal server error occurred")
	}
}
