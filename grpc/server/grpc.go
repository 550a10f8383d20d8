package server

import (
	"time"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// DefaultGRPCMaxMsgSize is the largest message, in bytes, the server receives or sends.
const DefaultGRPCMaxMsgSize = 1024 * 1024 * 10

// NewGRPCServer builds a gRPC server with the interceptors chained in the given order,
// an Unimplemented answer for unknown methods, conservative keepalive settings and
// server reflection. serverOptions are appended last and may override any default.
//
//	srv := server.NewGRPCServer(
//	    []grpc.UnaryServerInterceptor{interceptors.UnaryCorrelationServerInterceptor(pipeline, accessor)},
//	    nil,
//	)
//	grpc_health_v1.RegisterHealthServer(srv, health.NewServer())
func NewGRPCServer(
	unary []grpc.UnaryServerInterceptor,
	stream []grpc.StreamServerInterceptor,
	serverOptions ...grpc.ServerOption,
) *grpc.Server {
	unknownHandler := func(_ interface{}, _ grpc.ServerStream) error {
		return status.Error(codes.Unimplemented, "Unknown route")
	}

	opts := []grpc.ServerOption{
		grpc.UnknownServiceHandler(unknownHandler),
		grpc.MaxRecvMsgSize(DefaultGRPCMaxMsgSize),
		grpc.MaxSendMsgSize(DefaultGRPCMaxMsgSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	if len(unary) > 0 {
		opts = append(opts, grpc.UnaryInterceptor(grpcmiddleware.ChainUnaryServer(unary...)))
	}
	if len(stream) > 0 {
		opts = append(opts, grpc.StreamInterceptor(grpcmiddleware.ChainStreamServer(stream...)))
	}
	opts = append(opts, serverOptions...)

	srv := grpc.NewServer(opts...)
	reflection.Register(srv)
	return srv
}
