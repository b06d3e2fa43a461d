package recordstore

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type echoServer struct {
	mu   sync.Mutex
	last map[string]*structpb.Struct
}

func (e *echoServer) remember(method string, in *structpb.Struct) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.last[method] = in
}

func (e *echoServer) lastFor(method string) *structpb.Struct {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last[method]
}

func (e *echoServer) reply(method string, in *structpb.Struct) (*structpb.Struct, error) {
	e.remember(method, in)
	var req Request
	if err := Decode(in, &req); err != nil {
		return nil, err
	}
	if req.Table == "forbidden" {
		return nil, status.Error(codes.PermissionDenied, "nope")
	}
	return Encode(RecordReply{Record: map[string]any{"id": req.ID, "method": method}})
}

func (e *echoServer) Insert(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return e.reply("Insert", in)
}
func (e *echoServer) Get(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return e.reply("Get", in)
}
func (e *echoServer) ListByOwner(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	e.remember("ListByOwner", in)
	return Encode(RecordsReply{Records: []map[string]any{{"id": "a"}, {"id": "b"}}})
}
func (e *echoServer) Update(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return e.reply("Update", in)
}
func (e *echoServer) Delete(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	e.remember("Delete", in)
	return Encode(StatusReply{Status: "OK"})
}
func (e *echoServer) Ping(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return Encode(StatusReply{Status: "OK"})
}

func startServer(t *testing.T, srv Server, opts ...grpc.ServerOption) *Client {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := grpc.NewServer(opts...)
	RegisterServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func TestEncodeDecode_Request(t *testing.T) {
	in := Request{Table: "cars", ID: "c1", Data: map[string]any{"brand": "Toyota", "year": 2019, "tags": []any{"a"}}}
	s, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, "cars", s.Fields["table"].GetStringValue())

	var out Request
	require.NoError(t, Decode(s, &out))
	assert.Equal(t, "cars", out.Table)
	assert.Equal(t, "c1", out.ID)
	assert.Equal(t, float64(2019), out.Data["year"])
	assert.Equal(t, []any{"a"}, out.Data["tags"])
}

func TestEncode_RejectsNonObject(t *testing.T) {
	_, err := Encode([]int{1, 2})
	require.Error(t, err)
}

func TestDecode_Nil(t *testing.T) {
	var r RecordReply
	require.NoError(t, Decode(nil, &r))
	assert.Nil(t, r.Record)
}

func TestRoundTripOverGRPC(t *testing.T) {
	srv := &echoServer{last: map[string]*structpb.Struct{}}
	c := startServer(t, srv)
	ctx := context.Background()

	req, err := Encode(Request{Table: "cars", ID: "c1", Data: map[string]any{"brand": "Toyota"}})
	require.NoError(t, err)

	for name, fn := range map[string]func(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error){
		"Insert": c.Insert,
		"Get":    c.Get,
		"Update": c.Update,
	} {
		out, err := fn(ctx, req)
		require.NoError(t, err, name)
		var reply RecordReply
		require.NoError(t, Decode(out, &reply))
		assert.Equal(t, "c1", reply.Record["id"])
		assert.Equal(t, name, reply.Record["method"])
		assert.Equal(t, "Toyota", srv.lastFor(name).Fields["data"].GetStructValue().Fields["brand"].GetStringValue())
	}

	out, err := c.ListByOwner(ctx, req)
	require.NoError(t, err)
	var list RecordsReply
	require.NoError(t, Decode(out, &list))
	assert.Len(t, list.Records, 2)

	out, err = c.Delete(ctx, req)
	require.NoError(t, err)
	var st StatusReply
	require.NoError(t, Decode(out, &st))
	assert.Equal(t, "OK", st.Status)

	_, err = c.Ping(ctx, &structpb.Struct{})
	require.NoError(t, err)
}

func TestStatusErrorsPropagate(t *testing.T) {
	c := startServer(t, &echoServer{last: map[string]*structpb.Struct{}})

	req, err := Encode(Request{Table: "forbidden"})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestInterceptorSeesFullMethod(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	intercept := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		mu.Lock()
		seen = append(seen, info.FullMethod)
		mu.Unlock()
		if info.FullMethod == MethodDelete {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}
		return handler(ctx, req)
	}
	c := startServer(t, &echoServer{last: map[string]*structpb.Struct{}}, grpc.UnaryInterceptor(intercept))

	_, err := c.Ping(context.Background(), &structpb.Struct{})
	require.NoError(t, err)

	_, err = c.Delete(context.Background(), &structpb.Struct{})
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{MethodPing, MethodDelete}, seen)
}
