package grpcport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/skylane/skylane/pkg/remote"
)

const (
	deliveryCreateMethod   = "/delivery.DeliveryService/CreateDelivery"
	deliveryGetMethod      = "/delivery.DeliveryService/GetDelivery"
	deliveryCompleteMethod = "/delivery.DeliveryService/CompleteDelivery"
	deliveryCancelMethod   = "/delivery.DeliveryService/CancelDelivery"
	deliveryPickupMethod   = "/delivery.DeliveryService/PickupPackage"
)

// DeliveryClient implements remote.DeliveryService over gRPC.
type DeliveryClient struct {
	conn *grpc.ClientConn
}

// NewDeliveryClient wraps an open connection to the delivery service.
func NewDeliveryClient(conn *grpc.ClientConn) *DeliveryClient {
	return &DeliveryClient{conn: conn}
}

type deliveryIDRequest struct {
	DeliveryID string `json:"delivery_id"`
}

// CreateDelivery registers a new delivery record.
func (c *DeliveryClient) CreateDelivery(ctx context.Context, req remote.CreateDeliveryRequest) (*remote.Delivery, error) {
	return invoke[remote.Delivery](ctx, c.conn, "delivery", "CreateDelivery", deliveryCreateMethod, &req)
}

// GetDelivery loads one delivery by id.
func (c *DeliveryClient) GetDelivery(ctx context.Context, deliveryID string) (*remote.Delivery, error) {
	return invoke[remote.Delivery](ctx, c.conn, "delivery", "GetDelivery", deliveryGetMethod, &deliveryIDRequest{
		DeliveryID: deliveryID,
	})
}

// CompleteDelivery marks a delivery as completed and returns its final
// record, including the drone assignment.
func (c *DeliveryClient) CompleteDelivery(ctx context.Context, deliveryID string) (*remote.Delivery, error) {
	return invoke[remote.Delivery](ctx, c.conn, "delivery", "CompleteDelivery", deliveryCompleteMethod, &deliveryIDRequest{
		DeliveryID: deliveryID,
	})
}

// CancelDelivery cancels a delivery that has not left the created state.
func (c *DeliveryClient) CancelDelivery(ctx context.Context, deliveryID string) error {
	_, err := invoke[emptyResponse](ctx, c.conn, "delivery", "CancelDelivery", deliveryCancelMethod, &deliveryIDRequest{
		DeliveryID: deliveryID,
	})
	return err
}

// PickupPackage registers the physical pickup and returns the leg
// coordinates for the drone.
func (c *DeliveryClient) PickupPackage(ctx context.Context, deliveryID string) (*remote.PickupConfirmation, error) {
	return invoke[remote.PickupConfirmation](ctx, c.conn, "delivery", "PickupPackage", deliveryPickupMethod, &deliveryIDRequest{
		DeliveryID: deliveryID,
	})
}
