package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/carledger/internal/client/models"
	"github.com/dmitrijs2005/carledger/internal/common"
	"github.com/dmitrijs2005/carledger/internal/rpc/recordstore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type rpcClient interface {
	Insert(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Get(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListByOwner(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Update(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Delete(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

// GRPCStore talks to the record store server. Every call carries the
// session token and is bounded by the configured timeout; a timeout
// surfaces as ErrUnavailable.
type GRPCStore struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      rpcClient
	accessToken string
	timeout     time.Duration
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

func (s *GRPCStore) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if s.accessToken != "" {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func NewGRPCStore(endpointURL, accessToken string, timeout time.Duration) (*GRPCStore, error) {
	s := &GRPCStore{endpointURL: endpointURL, accessToken: accessToken, timeout: timeout}

	conn, err := grpc.NewClient(endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor))
	if err != nil {
		return nil, err
	}
	s.conn = conn
	s.client = recordstore.NewClient(conn)
	return s, nil
}

func (s *GRPCStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCStore) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *GRPCStore) recordCall(ctx context.Context,
	fn func(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error),
	req recordstore.Request,
) (models.Record, error) {
	in, err := recordstore.Encode(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	out, err := fn(ctx, in)
	if err != nil {
		return nil, s.mapError(err)
	}

	var reply recordstore.RecordReply
	if err := recordstore.Decode(out, &reply); err != nil {
		return nil, err
	}
	if reply.Record == nil {
		return nil, fmt.Errorf("%w: empty record in reply", ErrRejected)
	}
	return models.Record(reply.Record), nil
}

func (s *GRPCStore) Insert(ctx context.Context, table string, data models.Record) (models.Record, error) {
	return s.recordCall(ctx, s.client.Insert, recordstore.Request{Table: table, Data: data})
}

func (s *GRPCStore) Get(ctx context.Context, table, id string) (models.Record, error) {
	return s.recordCall(ctx, s.client.Get, recordstore.Request{Table: table, ID: id})
}

func (s *GRPCStore) Update(ctx context.Context, table, id string, patch models.Record) (models.Record, error) {
	return s.recordCall(ctx, s.client.Update, recordstore.Request{Table: table, ID: id, Data: patch})
}

func (s *GRPCStore) ListByOwner(ctx context.Context, table, ownerField, owner string) ([]models.Record, error) {
	in, err := recordstore.Encode(recordstore.Request{Table: table, OwnerField: ownerField, Owner: owner})
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	out, err := s.client.ListByOwner(ctx, in)
	if err != nil {
		return nil, s.mapError(err)
	}

	var reply recordstore.RecordsReply
	if err := recordstore.Decode(out, &reply); err != nil {
		return nil, err
	}
	records := make([]models.Record, 0, len(reply.Records))
	for _, r := range reply.Records {
		records = append(records, models.Record(r))
	}
	return records, nil
}

func (s *GRPCStore) Delete(ctx context.Context, table, id string) error {
	in, err := recordstore.Encode(recordstore.Request{Table: table, ID: id})
	if err != nil {
		return err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if _, err := s.client.Delete(ctx, in); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCStore) Ping(ctx context.Context) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	resp, err := s.client.Ping(ctx, &structpb.Struct{})
	if err != nil {
		return s.mapError(err)
	}

	var reply recordstore.StatusReply
	if err := recordstore.Decode(resp, &reply); err != nil || reply.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCStore) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return ErrUnavailable
	case codes.NotFound:
		return ErrNotFound
	case codes.PermissionDenied, codes.InvalidArgument, codes.FailedPrecondition, codes.AlreadyExists, codes.OutOfRange:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
