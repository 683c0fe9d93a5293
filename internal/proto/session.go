// Package proto declares the gophtube.session.Session gRPC service. Messages
// are protobuf well-known types, so no generated code is needed.
package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	SessionServiceName      = "gophtube.session.Session"
	SessionWhoAmIFullMethod = "/" + SessionServiceName + "/WhoAmI"
)

// SessionServer is the server API for the Session service.
type SessionServer interface {
	// WhoAmI returns the user id carried by the caller's access token.
	WhoAmI(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

func RegisterSessionServer(s grpc.ServiceRegistrar, srv SessionServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SessionWhoAmIFullMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServer).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "WhoAmI",
			Handler:    whoAmIHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "session.proto",
}

// SessionClient is the client API for the Session service.
type SessionClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionClient(cc grpc.ClientConnInterface) *SessionClient {
	return &SessionClient{cc: cc}
}

func (c *SessionClient) WhoAmI(ctx context.Context, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, SessionWhoAmIFullMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}
