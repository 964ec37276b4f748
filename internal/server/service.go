package server

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "whisperbridge.v1.Bridge"

// BridgeServer is the server API for the bridge service.
type BridgeServer interface {
	CreateContext(context.Context, *CreateContextRequest) (*CreateContextResponse, error)
	Transcribe(context.Context, *TranscribeRequest) (*TranscribeResponse, error)
	ReleaseContext(context.Context, *ReleaseContextRequest) (*ReleaseContextResponse, error)
	ListContexts(context.Context, *ListContextsRequest) (*ListContextsResponse, error)
}

// RegisterBridgeServer registers srv with s.
func RegisterBridgeServer(s grpc.ServiceRegistrar, srv BridgeServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the bridge service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateContext", Handler: unaryHandler("CreateContext", BridgeServer.CreateContext)},
		{MethodName: "Transcribe", Handler: unaryHandler("Transcribe", BridgeServer.Transcribe)},
		{MethodName: "ReleaseContext", Handler: unaryHandler("ReleaseContext", BridgeServer.ReleaseContext)},
		{MethodName: "ListContexts", Handler: unaryHandler("ListContexts", BridgeServer.ListContexts)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "whisperbridge/v1/bridge.json",
}

func unaryHandler[Req, Resp any](method string, call func(BridgeServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BridgeServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BridgeServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls the bridge service over conn using the JSON codec.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient returns a Client bound to conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) CreateContext(ctx context.Context, in *CreateContextRequest, opts ...grpc.CallOption) (*CreateContextResponse, error) {
	return invoke[CreateContextResponse](ctx, c.conn, "CreateContext", in, opts)
}

func (c *Client) Transcribe(ctx context.Context, in *TranscribeRequest, opts ...grpc.CallOption) (*TranscribeResponse, error) {
	return invoke[TranscribeResponse](ctx, c.conn, "Transcribe", in, opts)
}

func (c *Client) ReleaseContext(ctx context.Context, in *ReleaseContextRequest, opts ...grpc.CallOption) (*ReleaseContextResponse, error) {
	return invoke[ReleaseContextResponse](ctx, c.conn, "ReleaseContext", in, opts)
}

func (c *Client) ListContexts(ctx context.Context, in *ListContextsRequest, opts ...grpc.CallOption) (*ListContextsResponse, error) {
	return invoke[ListContextsResponse](ctx, c.conn, "ListContexts", in, opts)
}

func invoke[Resp any](ctx context.Context, conn grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
