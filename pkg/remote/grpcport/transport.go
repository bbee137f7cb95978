package grpcport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/skylane/skylane/pkg/remote"
)

const (
	transportScheduleMethod = "/transportation.TransportationService/ScheduleTransport"
	transportCancelMethod   = "/transportation.TransportationService/CancelTransport"
)

// TransportClient implements remote.TransportationService over gRPC.
type TransportClient struct {
	conn *grpc.ClientConn
}

// NewTransportClient wraps an open connection to the transportation service.
func NewTransportClient(conn *grpc.ClientConn) *TransportClient {
	return &TransportClient{conn: conn}
}

type transportIDRequest struct {
	TransportID string `json:"transport_id"`
}

// ScheduleTransport books transport capacity for a delivery.
func (c *TransportClient) ScheduleTransport(ctx context.Context, req remote.ScheduleTransportRequest) (*remote.Transport, error) {
	return invoke[remote.Transport](ctx, c.conn, "transportation", "ScheduleTransport", transportScheduleMethod, &req)
}

// CancelTransport releases a previously booked transport.
func (c *TransportClient) CancelTransport(ctx context.Context, transportID string) error {
	_, err := invoke[emptyResponse](ctx, c.conn, "transportation", "CancelTransport", transportCancelMethod, &transportIDRequest{
		TransportID: transportID,
	})
	return err
}
