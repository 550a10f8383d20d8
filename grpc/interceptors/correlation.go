package interceptors

import (
	"context"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/rainbow-me/gateway-correlation/common/logger"
	internalmetadata "github.com/rainbow-me/gateway-correlation/common/metadata"
	"github.com/rainbow-me/gateway-correlation/correlation"
	"github.com/rainbow-me/gateway-correlation/exchange"
	"github.com/rainbow-me/gateway-correlation/filter"
	grpcerrors "github.com/rainbow-me/gateway-correlation/grpc/errors"
)

// grpcMethod is the method recorded on exchanges built from gRPC calls; every call is an
// HTTP/2 POST.
const grpcMethod = "POST"

// UnaryCorrelationServerInterceptor runs the incoming metadata of every unary call through
// pipeline. The handler sees the metadata and context produced by the filters, and the
// correlation id is sent back as a response header.
// Failures of the pipeline itself are converted with grpcerrors.ToStatus; handler errors
// are returned unchanged.
func UnaryCorrelationServerInterceptor(pipeline *filter.Pipeline, accessor *correlation.Accessor) grpc.UnaryServerInterceptor {
	if accessor == nil {
		accessor = correlation.DefaultAccessor()
	}
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		var resp interface{}
		err := serveCall(ctx, info.FullMethod, pipeline, accessor,
			func(ctx context.Context, md metadata.MD) error {
				sendHeader(ctx, md, func(md metadata.MD) error { return grpc.SetHeader(ctx, md) })
				var err error
				resp, err = handler(ctx, req)
				return err
			},
		)
		return resp, err
	}
}

// StreamCorrelationServerInterceptor is the streaming counterpart of
// UnaryCorrelationServerInterceptor.
func StreamCorrelationServerInterceptor(pipeline *filter.Pipeline, accessor *correlation.Accessor) grpc.StreamServerInterceptor {
	if accessor == nil {
		accessor = correlation.DefaultAccessor()
	}
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		return serveCall(ss.Context(), info.FullMethod, pipeline, accessor,
			func(ctx context.Context, md metadata.MD) error {
				sendHeader(ctx, md, ss.SetHeader)
				wrapped := grpcmiddleware.WrapServerStream(ss)
				wrapped.WrappedContext = ctx
				return handler(srv, wrapped)
			},
		)
	}
}

// sendHeader queues the correlation echo. A call whose headers cannot be set is still
// served, without the echo.
func sendHeader(ctx context.Context, md metadata.MD, set func(metadata.MD) error) {
	if err := set(md); err != nil {
		logger.FromContext(ctx).Debug("failed to set correlation response header", logger.Error(err))
	}
}

// serveCall runs pipeline with next as its last stage. next receives the context for the
// handler and the response header to send.
func serveCall(
	ctx context.Context,
	method string,
	pipeline *filter.Pipeline,
	accessor *correlation.Accessor,
	next func(ctx context.Context, header metadata.MD) error,
) error {
	incoming, _ := metadata.FromIncomingContext(ctx)
	ex := exchange.New(ctx, grpcMethod, method, internalmetadata.FromMap(incoming))

	reached := false
	terminal := filter.Inline(func(ctx context.Context, ex *exchange.Exchange) (*exchange.Response, error) {
		reached = true
		header := ex.Header()
		ctx = metadata.NewIncomingContext(ctx, metadata.MD(header))

		out := metadata.MD{}
		if id, ok := accessor.ID(header); ok {
			out.Set(accessor.Header(), id)
		}
		return nil, next(ctx, out)
	})

	_, err := pipeline.Serve(ex, terminal).Await(ctx)
	if err != nil && !reached {
		return grpcerrors.ToStatus(err)
	}
	return err
}

// UnaryCorrelationClientInterceptor adds the correlation id found in the call context to
// the outgoing metadata under header, unless the caller already set one.
func UnaryCorrelationClientInterceptor(header string) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req,
		reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		return invoker(outgoingWithID(ctx, header), method, req, reply, cc, opts...)
	}
}

// StreamCorrelationClientInterceptor is the streaming counterpart of
// UnaryCorrelationClientInterceptor.
func StreamCorrelationClientInterceptor(header string) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		return streamer(outgoingWithID(ctx, header), desc, cc, method, opts...)
	}
}

func outgoingWithID(ctx context.Context, header string) context.Context {
	id, ok := correlation.IDFromContext(ctx)
	if !ok {
		return ctx
	}
	if md, exists := metadata.FromOutgoingContext(ctx); exists && len(md.Get(header)) > 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, header, id)
}
