package grpcport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/skylane/skylane/pkg/remote"
)

const accountGetMethod = "/account.AccountService/GetAccount"

// AccountClient implements remote.AccountService over gRPC.
type AccountClient struct {
	conn *grpc.ClientConn
}

// NewAccountClient wraps an open connection to the account service.
func NewAccountClient(conn *grpc.ClientConn) *AccountClient {
	return &AccountClient{conn: conn}
}

type getAccountRequest struct {
	Username string `json:"username"`
}

// GetAccount resolves one account by username.
func (c *AccountClient) GetAccount(ctx context.Context, username string) (*remote.Account, error) {
	return invoke[remote.Account](ctx, c.conn, "account", "GetAccount", accountGetMethod, &getAccountRequest{
		Username: username,
	})
}
