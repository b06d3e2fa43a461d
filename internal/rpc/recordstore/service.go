// Package recordstore declares the gRPC contract between the client's
// persistence gateway and the remote record store.
//
// The service is declared by hand instead of through generated stubs: every
// method exchanges a google.protobuf.Struct, so records of any table travel
// as schemaless JSON objects with snake_case keys.
//
//	Insert      {table, data}                    -> {record}
//	Get         {table, id}                      -> {record}
//	ListByOwner {table, owner_field, owner}      -> {records}
//	Update      {table, id, data}                -> {record}
//	Delete      {table, id}                      -> {status}
//	Ping        {}                               -> {status}
package recordstore

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "carledger.recordstore.v1.RecordStore"

const (
	MethodInsert      = "/" + ServiceName + "/Insert"
	MethodGet         = "/" + ServiceName + "/Get"
	MethodListByOwner = "/" + ServiceName + "/ListByOwner"
	MethodUpdate      = "/" + ServiceName + "/Update"
	MethodDelete      = "/" + ServiceName + "/Delete"
	MethodPing        = "/" + ServiceName + "/Ping"
)

// Server is implemented by the remote store.
type Server interface {
	Insert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListByOwner(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Delete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Ping(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type call func(Server, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, fn call) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(Server), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(srv.(Server), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		unary("Insert", Server.Insert),
		unary("Get", Server.Get),
		unary("ListByOwner", Server.ListByOwner),
		unary("Update", Server.Update),
		unary("Delete", Server.Delete),
		unary("Ping", Server.Ping),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "carledger/recordstore/v1",
}

func RegisterServer(s grpc.ServiceRegistrar, srv Server) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client is the caller side of the service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Insert(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodInsert, in, opts...)
}

func (c *Client) Get(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGet, in, opts...)
}

func (c *Client) ListByOwner(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListByOwner, in, opts...)
}

func (c *Client) Update(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodUpdate, in, opts...)
}

func (c *Client) Delete(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodDelete, in, opts...)
}

func (c *Client) Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodPing, in, opts...)
}
