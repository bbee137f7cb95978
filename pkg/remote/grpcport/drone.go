package grpcport

import (
	"context"

	"google.golang.org/grpc"
)

const (
	droneAssignMethod = "/drone.DroneService/AssignDrone"
	droneIdleMethod   = "/drone.DroneService/IdleDrone"
)

// DroneClient implements remote.DroneService over gRPC.
type DroneClient struct {
	conn *grpc.ClientConn
}

// NewDroneClient wraps an open connection to the drone service.
func NewDroneClient(conn *grpc.ClientConn) *DroneClient {
	return &DroneClient{conn: conn}
}

type assignDroneRequest struct {
	DeliveryID string `json:"delivery_id"`
}

type assignDroneResponse struct {
	DroneID string `json:"drone_id"`
}

type droneIDRequest struct {
	DroneID string `json:"drone_id"`
}

// AssignDrone reserves an idle drone for a delivery.
func (c *DroneClient) AssignDrone(ctx context.Context, deliveryID string) (string, error) {
	resp, err := invoke[assignDroneResponse](ctx, c.conn, "drone", "AssignDrone", droneAssignMethod, &assignDroneRequest{
		DeliveryID: deliveryID,
	})
	if err != nil {
		return "", err
	}
	return resp.DroneID, nil
}

// IdleDrone returns a drone to the idle pool. Idling an already idle drone
// is a no-op on the remote side.
func (c *DroneClient) IdleDrone(ctx context.Context, droneID string) error {
	_, err := invoke[emptyResponse](ctx, c.conn, "drone", "IdleDrone", droneIdleMethod, &droneIDRequest{
		DroneID: droneID,
	})
	return err
}
