package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/carledger/internal/common"
	"github.com/dmitrijs2005/carledger/internal/rpc/recordstore"
	"github.com/dmitrijs2005/carledger/internal/server/auth"
)

type ctxKey string

const UserIDKey ctxKey = "userID"

// publicMethods can be called without a token.
var publicMethods = map[string]struct{}{
	recordstore.MethodPing: {},
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if _, ok := publicMethods[info.FullMethod]; ok {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	userID, err := auth.GetUserIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	ctx = context.WithValue(ctx, UserIDKey, userID)

	return handler(ctx, req)
}

func userIDFrom(ctx context.Context) (string, error) {
	userID, _ := ctx.Value(UserIDKey).(string)
	if userID == "" {
		return "", status.Error(codes.Unauthenticated, "no user in context")
	}
	return userID, nil
}
