package grpcport

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/skylane/skylane/pkg/remote"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want remote.Kind
	}{
		{"unavailable", status.Error(codes.Unavailable, "down"), remote.KindUnavailable},
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), remote.KindUnavailable},
		{"resource exhausted", status.Error(codes.ResourceExhausted, "throttled"), remote.KindUnavailable},
		{"aborted", status.Error(codes.Aborted, "conflict"), remote.KindUnavailable},
		{"context deadline", context.DeadlineExceeded, remote.KindUnavailable},
		{"not found", status.Error(codes.NotFound, "missing"), remote.KindNotFound},
		{"invalid argument", status.Error(codes.InvalidArgument, "bad"), remote.KindRejected},
		{"failed precondition", status.Error(codes.FailedPrecondition, "state"), remote.KindRejected},
		{"permission denied", status.Error(codes.PermissionDenied, "no"), remote.KindRejected},
		{"internal", status.Error(codes.Internal, "broken"), remote.KindInternal},
		{"unknown", errors.New("not a status"), remote.KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapStatus("delivery", "CreateDelivery", tc.err)
			if remote.KindOf(got) != tc.want {
				t.Fatalf("kind = %s, want %s", remote.KindOf(got), tc.want)
			}
			var remoteErr *remote.Error
			if !errors.As(got, &remoteErr) {
				t.Fatal("mapped error is not a remote.Error")
			}
			if remoteErr.Service != "delivery" || remoteErr.Op != "CreateDelivery" {
				t.Fatalf("service/op = %s/%s", remoteErr.Service, remoteErr.Op)
			}
		})
	}
}

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := jsonCodec{}
	if codec.Name() != "json" {
		t.Fatalf("codec name = %s", codec.Name())
	}

	req := remote.CreatePackageRequest{
		DeliveryID: "d1",
		Weight:     2.0,
		Height:     10,
		Width:      10,
	}
	data, err := codec.Marshal(&req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded remote.CreatePackageRequest
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != req {
		t.Fatalf("round trip = %+v, want %+v", decoded, req)
	}

	// Empty bodies decode to the zero value, matching empty gRPC responses.
	var empty emptyResponse
	if err := codec.Unmarshal(nil, &empty); err != nil {
		t.Fatalf("unmarshal empty: %v", err)
	}
}
