package interceptors

import (
	"context"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	statusCanceled         = status.New(codes.Canceled, "context canceled")
	statusDeadlineExceeded = status.New(codes.DeadlineExceeded, "deadline exceeded")
)

// contextStatusError wraps a gRPC status with the original context error.
type contextStatusError struct {
	*status.Status
	error
}

// GRPCStatus allows grpc/status.FromError to extract the correct gRPC status code.
func (e *contextStatusError) GRPCStatus() *status.Status {
	return e.Status
}

// Unwrap allows error unwrapping with errors.Is or errors.As.
func (e *contextStatusError) Unwrap() error {
	return e.error
}

// UnaryContextStatusInterceptor maps context-related errors to proper gRPC status codes.
//
// Specifically:
//   - context.Canceled → codes.Canceled
//   - context.DeadlineExceeded → codes.DeadlineExceeded
func UnaryContextStatusInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		_ *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		resp, err := handler(ctx, req)
		return resp, contextStatus(err)
	}
}

// StreamContextStatusInterceptor is the streaming counterpart of UnaryContextStatusInterceptor.
func StreamContextStatusInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		_ *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		return contextStatus(handler(srv, ss))
	}
}

func contextStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return &contextStatusError{Status: statusCanceled, error: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &contextStatusError{Status: statusDeadlineExceeded, error: err}
	default:
		return err
	}
}
