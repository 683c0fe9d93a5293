package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/gophtube/internal/common"
	pb "github.com/dmitrijs2005/gophtube/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type fakeAuth map[string]string

func (f fakeAuth) Authenticate(token string) (string, error) {
	if id, ok := f[token]; ok {
		return id, nil
	}
	return "", common.ErrInvalidCredential
}

func newTestServer() *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", nopLogger{}, fakeAuth{"good-token": "user-123"})
}

func TestInterceptor_UnprotectedAllowsWithoutToken(t *testing.T) {
	s := newTestServer()

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	handlerCalled := false
	h := func(ctx context.Context, req any) (any, error) {
		handlerCalled = true
		return "ok", nil
	}

	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled || resp != "ok" {
		t.Fatalf("handler not called properly: called=%v resp=%v", handlerCalled, resp)
	}
}

func TestInterceptor_MissingToken(t *testing.T) {
	s := newTestServer()
	info := &grpc.UnaryServerInfo{FullMethod: pb.SessionWhoAmIFullMethod}

	h := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not be called when token missing")
		return nil, nil
	}

	_, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
	}
	if status.Convert(err).Message() != "missing token" {
		t.Fatalf("expected 'missing token', got %q", status.Convert(err).Message())
	}
}

func TestInterceptor_InvalidToken(t *testing.T) {
	s := newTestServer()

	md := metadata.New(map[string]string{common.AccessTokenHeaderName: "not-a-valid-jwt"})
	ctx := metadata.NewIncomingContext(context.Background(), md)
	info := &grpc.UnaryServerInfo{FullMethod: pb.SessionWhoAmIFullMethod}

	h := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not be called for invalid token")
		return nil, nil
	}

	_, err := s.accessTokenInterceptor(ctx, nil, info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
	}
}

func TestInterceptor_ValidTokenSetsUserID(t *testing.T) {
	s := newTestServer()

	md := metadata.New(map[string]string{common.AccessTokenHeaderName: "good-token"})
	ctx := metadata.NewIncomingContext(context.Background(), md)
	info := &grpc.UnaryServerInfo{FullMethod: pb.SessionWhoAmIFullMethod}

	var gotFromCtx any
	h := func(ctx context.Context, req any) (any, error) {
		gotFromCtx = ctx.Value(UserIDKey)
		return "ok", nil
	}

	if _, err := s.accessTokenInterceptor(ctx, nil, info, h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotFromCtx != "user-123" {
		t.Fatalf("user id not propagated in context: got %v", gotFromCtx)
	}
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	s := newTestServer()
	want := errors.New("boom")

	_, err := s.loggingInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/y"},
		func(ctx context.Context, req any) (any, error) { return nil, want })
	if !errors.Is(err, want) {
		t.Fatalf("expected handler error, got %v", err)
	}
}
