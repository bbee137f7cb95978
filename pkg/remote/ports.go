// Package remote defines the outbound ports of the coordinator: typed
// clients for the five services a delivery workflow touches, plus the error
// taxonomy their failures are normalized into. Transport adapters live in
// subpackages; workflow code depends only on these interfaces.
package remote

import "context"

// DeliveryStatus is the lifecycle state a delivery reports. The record is
// owned by the delivery service; the coordinator only reads it.
type DeliveryStatus string

const (
	DeliveryStatusCreated            DeliveryStatus = "created"
	DeliveryStatusPackageAssigned    DeliveryStatus = "package_assigned"
	DeliveryStatusTransportScheduled DeliveryStatus = "transport_scheduled"
	DeliveryStatusPickedUp           DeliveryStatus = "picked_up"
	DeliveryStatusCompleted          DeliveryStatus = "completed"
	DeliveryStatusFailed             DeliveryStatus = "failed"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Account is a customer account able to request deliveries.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Active   bool   `json:"active"`
}

// Delivery is the remote delivery aggregate.
type Delivery struct {
	ID        string         `json:"id"`
	AccountID string         `json:"account_id"`
	PackageID string         `json:"package_id,omitempty"`
	DroneID   string         `json:"drone_id,omitempty"`
	Status    DeliveryStatus `json:"status"`
}

// Package is a parcel registered for a delivery.
type Package struct {
	ID         string  `json:"id"`
	DeliveryID string  `json:"delivery_id"`
	Weight     float64 `json:"weight"`
	Height     float64 `json:"height"`
	Width      float64 `json:"width"`
}

// PickupConfirmation is returned when a package pickup is registered. The
// coordinates direct the drone for the leg in progress.
type PickupConfirmation struct {
	DeliveryID string         `json:"delivery_id"`
	Status     DeliveryStatus `json:"status"`
	Pickup     Coordinate     `json:"pickup"`
	Dropoff    Coordinate     `json:"dropoff"`
}

// Transport is a booked transport assignment for a delivery.
type Transport struct {
	ID         string `json:"id"`
	DeliveryID string `json:"delivery_id"`
	DroneID    string `json:"drone_id,omitempty"`
	Route      string `json:"route,omitempty"`
}

// CreateDeliveryRequest registers a new delivery for an account.
type CreateDeliveryRequest struct {
	AccountID string `json:"account_id"`
}

// CreatePackageRequest registers the parcel for a delivery.
type CreatePackageRequest struct {
	DeliveryID string  `json:"delivery_id"`
	Weight     float64 `json:"weight"`
	Height     float64 `json:"height"`
	Width      float64 `json:"width"`
}

// ScheduleTransportRequest books transport capacity for a delivery.
type ScheduleTransportRequest struct {
	DeliveryID string `json:"delivery_id"`
	PackageID  string `json:"package_id"`
}

// AccountService resolves customer accounts by username.
type AccountService interface {
	GetAccount(ctx context.Context, username string) (*Account, error)
}

// DeliveryService manages delivery records, including the pickup event that
// moves a delivery into transit.
type DeliveryService interface {
	CreateDelivery(ctx context.Context, req CreateDeliveryRequest) (*Delivery, error)
	GetDelivery(ctx context.Context, deliveryID string) (*Delivery, error)
	CompleteDelivery(ctx context.Context, deliveryID string) (*Delivery, error)
	CancelDelivery(ctx context.Context, deliveryID string) error
	PickupPackage(ctx context.Context, deliveryID string) (*PickupConfirmation, error)
}

// PackageService manages parcels.
type PackageService interface {
	CreatePackage(ctx context.Context, req CreatePackageRequest) (*Package, error)
	DeletePackage(ctx context.Context, packageID string) error
}

// TransportationService books and releases transport capacity.
type TransportationService interface {
	ScheduleTransport(ctx context.Context, req ScheduleTransportRequest) (*Transport, error)
	CancelTransport(ctx context.Context, transportID string) error
}

// DroneService controls the drone fleet. The scheduling workflow never calls
// AssignDrone itself: the transportation service assigns a drone as part of
// ScheduleTransport and reports it on the Transport record. The operation is
// part of the fleet contract for operators reconciling a DroneReleaseFailed
// alert, where a drone may need to be re-assigned or idled by hand.
type DroneService interface {
	AssignDrone(ctx context.Context, deliveryID string) (droneID string, err error)
	IdleDrone(ctx context.Context, droneID string) error
}

// Services bundles all outbound ports for injection into workflow code.
type Services struct {
	Accounts   AccountService
	Deliveries DeliveryService
	Packages   PackageService
	Transports TransportationService
	Drones     DroneService
}

type idempotencyKeyContextKey struct{}

// WithIdempotencyKey attaches an idempotency key to the context. Transport
// adapters forward it to the remote service so re-delivered requests are
// de-duplicated server side.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyContextKey{}, key)
}

// IdempotencyKeyFromContext extracts the idempotency key, if any.
func IdempotencyKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKeyContextKey{}).(string)
	return key, ok && key != ""
}
