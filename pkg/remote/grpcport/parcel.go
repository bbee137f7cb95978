package grpcport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/skylane/skylane/pkg/remote"
)

const (
	packageCreateMethod = "/package.PackageService/CreatePackage"
	packageDeleteMethod = "/package.PackageService/DeletePackage"
)

// PackageClient implements remote.PackageService over gRPC.
type PackageClient struct {
	conn *grpc.ClientConn
}

// NewPackageClient wraps an open connection to the package service.
func NewPackageClient(conn *grpc.ClientConn) *PackageClient {
	return &PackageClient{conn: conn}
}

type packageIDRequest struct {
	PackageID string `json:"package_id"`
}

// CreatePackage registers the parcel for a delivery.
func (c *PackageClient) CreatePackage(ctx context.Context, req remote.CreatePackageRequest) (*remote.Package, error) {
	return invoke[remote.Package](ctx, c.conn, "package", "CreatePackage", packageCreateMethod, &req)
}

// DeletePackage removes a parcel registration.
func (c *PackageClient) DeletePackage(ctx context.Context, packageID string) error {
	_, err := invoke[emptyResponse](ctx, c.conn, "package", "DeletePackage", packageDeleteMethod, &packageIDRequest{
		PackageID: packageID,
	})
	return err
}
