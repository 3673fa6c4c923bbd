// internal/transport/grpcserver/server.go
package grpcserver

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"

	"rtl-testgen/internal/common/logger"
	"rtl-testgen/internal/common/metrics"
	"rtl-testgen/internal/models"
)

const (
	ServiceName        = "testgenerator.TestGeneratorService"
	generateTestMethod = "/" + ServiceName + "/GenerateTest"
)

// TestGenerator is implemented by the single-file generator.
type TestGenerator interface {
	GenerateTest(ctx context.Context, req models.TestRequest) models.TestResponse
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TestGenerator)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GenerateTest",
			Handler:    generateTestHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "test_generator.proto",
}

func generateTestHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := dynamicpb.NewMessage(requestDesc)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		resp := srv.(TestGenerator).GenerateTest(ctx, requestFromMessage(req.(*dynamicpb.Message)))
		return newResponseMessage(resp), nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: generateTestMethod,
	}
	return interceptor(ctx, in, info, call)
}

// NewServer returns a grpc.Server with the generator registered and request logging installed.
func NewServer(gen TestGenerator, log logger.Logger, opts ...grpc.ServerOption) *grpc.Server {
	log = log.With(map[string]interface{}{"service": ServiceName})
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor(log)))

	s := grpc.NewServer(opts...)
	s.RegisterService(&serviceDesc, gen)
	return s
}

func loggingInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		duration := time.Since(start)

		code := status.Code(err)
		metrics.RequestsTotal.WithLabelValues(info.FullMethod, code.String()).Inc()
		metrics.RequestDuration.WithLabelValues(info.FullMethod).Observe(duration.Seconds())

		fields := map[string]interface{}{
			"method":     info.FullMethod,
			"code":       code.String(),
			"durationMs": duration.Milliseconds(),
		}
		if m, ok := resp.(*dynamicpb.Message); ok && m.Descriptor() == responseDesc {
			r := responseFromMessage(m)
			fields["success"] = r.Success
			fields["fallback"] = r.ErrorMessage != ""
		}
		if err != nil {
			fields["error"] = err.Error()
			log.Error("gRPC call failed", fields)
		} else {
			log.Info("gRPC call handled", fields)
		}
		return resp, err
	}
}
