package grpcport

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// CallRecorder receives per-call telemetry from the metrics interceptor.
type CallRecorder interface {
	RecordRemoteCall(method, code string, duration time.Duration)
}

// WithCallMetrics returns a dial option that records every unary call
// against the given recorder, labeled by full method and gRPC status code.
func WithCallMetrics(rec CallRecorder) grpc.DialOption {
	return grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		rec.RecordRemoteCall(method, status.Code(err).String(), time.Since(start))
		return err
	})
}
