package handler

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pesio-ai/be-sow-approvals/internal/auth"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
	"github.com/pesio-ai/be-sow-approvals/internal/logger"
)

// publicMethodPrefixes are served without a bearer token.
var publicMethodPrefixes = []string{
	"/grpc.health.v1.",
	"/grpc.reflection.",
}

// UnaryAuthInterceptor resolves the "authorization" metadata into an actor.
func UnaryAuthInterceptor(verifier *auth.Verifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		for _, prefix := range publicMethodPrefixes {
			if strings.HasPrefix(info.FullMethod, prefix) {
				return handler(ctx, req)
			}
		}

		var raw string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get("authorization"); len(vals) > 0 {
				raw = vals[0]
			}
		}
		actor, err := verifier.Verify(raw)
		if err != nil {
			return nil, status.Error(grpcCode(errors.ErrCodeUnauthenticated), "invalid or missing bearer token")
		}
		return handler(auth.WithActor(ctx, actor), req)
	}
}

// UnaryLoggingInterceptor logs every unary call with its outcome.
func UnaryLoggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		ev := log.Info()
		if err != nil {
			ev = log.Warn().Err(err)
		}
		ev.Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("gRPC request")
		return resp, err
	}
}
