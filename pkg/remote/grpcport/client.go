// Package grpcport adapts the outbound ports in pkg/remote onto gRPC. The
// remote services speak JSON-encoded unary gRPC, so calls go through
// ClientConn.Invoke with a JSON codec instead of generated stubs.
package grpcport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/skylane/skylane/pkg/remote"
)

const idempotencyKeyHeader = "idempotency-key"

// Options configures one service connection.
type Options struct {
	Address string

	TLSEnabled bool
	ServerName string

	MaxRecvMsgSize int
	MaxSendMsgSize int
	KeepAlive      *KeepAliveOptions

	DialOptions []grpc.DialOption
}

// KeepAliveOptions contains keepalive configuration.
type KeepAliveOptions struct {
	Time                time.Duration
	Timeout             time.Duration
	PermitWithoutStream bool
}

// DefaultOptions returns default connection options.
func DefaultOptions(address string) *Options {
	return &Options{
		Address:        address,
		MaxRecvMsgSize: 4 * 1024 * 1024,
		MaxSendMsgSize: 4 * 1024 * 1024,
		KeepAlive: &KeepAliveOptions{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		},
	}
}

// Dial opens a connection using the given options.
func Dial(opts *Options) (*grpc.ClientConn, error) {
	if opts == nil {
		return nil, fmt.Errorf("options cannot be nil")
	}
	if opts.Address == "" {
		return nil, fmt.Errorf("address is required")
	}

	dialOpts := []grpc.DialOption{
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(opts.MaxRecvMsgSize),
			grpc.MaxCallSendMsgSize(opts.MaxSendMsgSize),
		),
	}

	if opts.KeepAlive != nil {
		dialOpts = append(dialOpts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                opts.KeepAlive.Time,
			Timeout:             opts.KeepAlive.Timeout,
			PermitWithoutStream: opts.KeepAlive.PermitWithoutStream,
		}))
	}

	if opts.TLSEnabled {
		creds := credentials.NewTLS(&tls.Config{ServerName: opts.ServerName})
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(creds))
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	dialOpts = append(dialOpts, opts.DialOptions...)

	conn, err := grpc.NewClient(opts.Address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", opts.Address, err)
	}
	return conn, nil
}

// jsonCodec encodes request and response messages as JSON.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return "json" }

type emptyResponse struct{}

// invoke performs one unary call, forwarding any idempotency key from the
// context as request metadata and normalizing status failures.
func invoke[Resp any](ctx context.Context, conn *grpc.ClientConn, service, op, method string, req any) (*Resp, error) {
	if key, ok := remote.IdempotencyKeyFromContext(ctx); ok {
		ctx = metadata.AppendToOutgoingContext(ctx, idempotencyKeyHeader, key)
	}
	resp := new(Resp)
	if err := conn.Invoke(ctx, method, req, resp, grpc.ForceCodec(jsonCodec{})); err != nil {
		return nil, mapStatus(service, op, err)
	}
	return resp, nil
}

// mapStatus folds gRPC status codes into the port error taxonomy. Timeouts
// count as unavailable so the caller's retry policy applies to them.
func mapStatus(service, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return remote.Unavailable(service, op, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return remote.Internal(service, op, err)
	}
	switch st.Code() {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted, codes.DeadlineExceeded:
		return remote.Unavailable(service, op, err)
	case codes.NotFound:
		return remote.NotFound(service, op, err)
	case codes.InvalidArgument, codes.FailedPrecondition, codes.PermissionDenied, codes.OutOfRange, codes.AlreadyExists:
		return remote.Rejected(service, op, err)
	default:
		return remote.Internal(service, op, err)
	}
}
