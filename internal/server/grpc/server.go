// Package grpc exposes the record store over the hand-declared
// recordstore gRPC service.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/carledger/internal/logging"
	"github.com/dmitrijs2005/carledger/internal/rpc/recordstore"
)

// RecordService is the business layer behind the handlers.
type RecordService interface {
	Insert(ctx context.Context, userID, table string, data map[string]any) (map[string]any, error)
	Get(ctx context.Context, userID, table, id string) (map[string]any, error)
	ListByOwner(ctx context.Context, userID, table, ownerField, owner string) ([]map[string]any, error)
	Update(ctx context.Context, userID, table, id string, patch map[string]any) (map[string]any, error)
	Delete(ctx context.Context, userID, table, id string) error
}

type GRPCServer struct {
	address   string
	records   RecordService
	logger    logging.Logger
	jwtSecret []byte
}

var _ recordstore.Server = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, rs RecordService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		records:   rs,
		jwtSecret: []byte(secretKey),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {

	// creates gRPC-server
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))

	// registers service
	recordstore.RegisterServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
