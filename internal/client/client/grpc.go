package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/gophtube/internal/common"
	pb "github.com/dmitrijs2005/gophtube/internal/proto"
)

// GRPCClient calls the Session service. The access credential is taken from
// token on every call so a rotation through the HTTP API is picked up.
type GRPCClient struct {
	conn   *grpc.ClientConn
	client *pb.SessionClient
	token  func() string
}

func NewGRPCClient(addr string, token func() string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{token: token}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}

	c.conn = conn
	c.client = pb.NewSessionClient(conn)
	return c, nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if t := c.token(); t != "" {
		ctx = withAccessToken(ctx, t)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// WhoAmI returns the identity the server resolves the access credential to.
func (c *GRPCClient) WhoAmI(ctx context.Context) (string, error) {
	id, err := c.client.WhoAmI(ctx)
	if err != nil {
		return "", mapStatus(err)
	}
	return id, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func mapStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	default:
		return err
	}
}
