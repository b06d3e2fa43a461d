package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/carledger/internal/common"
	"github.com/dmitrijs2005/carledger/internal/rpc/recordstore"
)

// decode reads the request envelope and the caller's user id.
func (s *GRPCServer) decode(ctx context.Context, in *structpb.Struct) (recordstore.Request, string, error) {
	var req recordstore.Request
	if err := recordstore.Decode(in, &req); err != nil {
		return req, "", status.Error(codes.InvalidArgument, err.Error())
	}
	userID, err := userIDFrom(ctx)
	if err != nil {
		return req, "", err
	}
	return req, userID, nil
}

// toStatus maps service errors onto gRPC codes.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrUnknownTable), errors.Is(err, common.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		s.logger.Error(ctx, "record store failure", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) record(ctx context.Context, rec map[string]any, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return recordstore.Encode(recordstore.RecordReply{Record: rec})
}

func (s *GRPCServer) Insert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, userID, err := s.decode(ctx, in)
	if err != nil {
		return nil, err
	}
	rec, err := s.records.Insert(ctx, userID, req.Table, req.Data)
	if err == nil {
		s.logger.Debug(ctx, "record inserted", "table", req.Table, "id", rec["id"])
	}
	return s.record(ctx, rec, err)
}

func (s *GRPCServer) Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, userID, err := s.decode(ctx, in)
	if err != nil {
		return nil, err
	}
	rec, err := s.records.Get(ctx, userID, req.Table, req.ID)
	return s.record(ctx, rec, err)
}

func (s *GRPCServer) ListByOwner(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, userID, err := s.decode(ctx, in)
	if err != nil {
		return nil, err
	}
	recs, err := s.records.ListByOwner(ctx, userID, req.Table, req.OwnerField, req.Owner)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return recordstore.Encode(recordstore.RecordsReply{Records: recs})
}

func (s *GRPCServer) Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, userID, err := s.decode(ctx, in)
	if err != nil {
		return nil, err
	}
	rec, err := s.records.Update(ctx, userID, req.Table, req.ID, req.Data)
	return s.record(ctx, rec, err)
}

func (s *GRPCServer) Delete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, userID, err := s.decode(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.records.Delete(ctx, userID, req.Table, req.ID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return recordstore.Encode(recordstore.StatusReply{Status: "OK"})
}

func (s *GRPCServer) Ping(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return recordstore.Encode(recordstore.StatusReply{Status: "OK"})
}
