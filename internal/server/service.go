package server

import (
	"context"

	"google.golang.org/grpc"

	api "github.com/openlogio/commitlog/api/v1"
)

// LogServer is the interface the hand-registered ServiceDesc below
// dispatches to. grpcServer (server.go) is the only implementation.
type LogServer interface {
	Produce(context.Context, *api.ProduceRequest) (*api.ProduceResponse, error)
	Consume(context.Context, *api.ConsumeRequest) (*api.ConsumeResponse, error)
	ProduceStream(Log_ProduceStreamServer) error
	ConsumeStream(*api.ConsumeRequest, Log_ConsumeStreamServer) error
}

// ServiceDesc wires Produce/Consume as unary methods and the two stream
// RPCs onto LogServer by hand — the role a .proto file and protoc would
// normally play.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "log.v1.Log",
	HandlerType: (*LogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Produce", Handler: logProduceHandler},
		{MethodName: "Consume", Handler: logConsumeHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ProduceStream",
			Handler:       logProduceStreamHandler,
			ClientStreams: true,
			ServerStreams: true,
		},
		{
			StreamName:    "ConsumeStream",
			Handler:       logConsumeStreamHandler,
			ServerStreams: true,
		},
	},
	Metadata: "commitlog/log.v1",
}

func logProduceHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(api.ProduceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LogServer).Produce(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/log.v1.Log/Produce"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LogServer).Produce(ctx, req.(*api.ProduceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func logConsumeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(api.ConsumeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LogServer).Consume(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/log.v1.Log/Consume"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LogServer).Consume(ctx, req.(*api.ConsumeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func logProduceStreamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(LogServer).ProduceStream(&logProduceStreamServer{stream})
}

func logConsumeStreamHandler(srv any, stream grpc.ServerStream) error {
	req := new(api.ConsumeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(LogServer).ConsumeStream(req, &logConsumeStreamServer{stream})
}

// Log_ProduceStreamServer and Log_ConsumeStreamServer are the server-side
// typed views over grpc.ServerStream, mirroring what protoc-gen-go-grpc
// would emit for a bidi and a server-streaming RPC respectively.
type Log_ProduceStreamServer interface {
	Send(*api.ProduceResponse) error
	Recv() (*api.ProduceRequest, error)
	grpc.ServerStream
}

type logProduceStreamServer struct{ grpc.ServerStream }

func (x *logProduceStreamServer) Send(m *api.ProduceResponse) error { return x.SendMsg(m) }

func (x *logProduceStreamServer) Recv() (*api.ProduceRequest, error) {
	m := new(api.ProduceRequest)
	if err := x.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type Log_ConsumeStreamServer interface {
	Send(*api.ConsumeResponse) error
	grpc.ServerStream
}

type logConsumeStreamServer struct{ grpc.ServerStream }

func (x *logConsumeStreamServer) Send(m *api.ConsumeResponse) error { return x.SendMsg(m) }

// LogClient is the hand-written counterpart a protoc-gen-go-grpc client
// stub would generate, calling through ServiceDesc's method/stream names.
type LogClient interface {
	Produce(ctx context.Context, in *api.ProduceRequest, opts ...grpc.CallOption) (*api.ProduceResponse, error)
	Consume(ctx context.Context, in *api.ConsumeRequest, opts ...grpc.CallOption) (*api.ConsumeResponse, error)
	ProduceStream(ctx context.Context, opts ...grpc.CallOption) (Log_ProduceStreamClient, error)
	ConsumeStream(ctx context.Context, in *api.ConsumeRequest, opts ...grpc.CallOption) (Log_ConsumeStreamClient, error)
}

type logClient struct {
	cc *grpc.ClientConn
}

// NewLogClient wraps a dialed connection for calling commitlogd's service.
func NewLogClient(cc *grpc.ClientConn) LogClient {
	return &logClient{cc: cc}
}

func (c *logClient) Produce(ctx context.Context, in *api.ProduceRequest, opts ...grpc.CallOption) (*api.ProduceResponse, error) {
	out := new(api.ProduceResponse)
	if err := c.cc.Invoke(ctx, "/log.v1.Log/Produce", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *logClient) Consume(ctx context.Context, in *api.ConsumeRequest, opts ...grpc.CallOption) (*api.ConsumeResponse, error) {
	out := new(api.ConsumeResponse)
	if err := c.cc.Invoke(ctx, "/log.v1.Log/Consume", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *logClient) ProduceStream(ctx context.Context, opts ...grpc.CallOption) (Log_ProduceStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/log.v1.Log/ProduceStream", opts...)
	if err != nil {
		return nil, err
	}
	return &logProduceStreamClient{stream}, nil
}

func (c *logClient) ConsumeStream(ctx context.Context, in *api.ConsumeRequest, opts ...grpc.CallOption) (Log_ConsumeStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[1], "/log.v1.Log/ConsumeStream", opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &logConsumeStreamClient{stream}, nil
}

type Log_ProduceStreamClient interface {
	Send(*api.ProduceRequest) error
	Recv() (*api.ProduceResponse, error)
	grpc.ClientStream
}

type logProduceStreamClient struct{ grpc.ClientStream }

func (x *logProduceStreamClient) Send(m *api.ProduceRequest) error { return x.SendMsg(m) }

func (x *logProduceStreamClient) Recv() (*api.ProduceResponse, error) {
	m := new(api.ProduceResponse)
	if err := x.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type Log_ConsumeStreamClient interface {
	Recv() (*api.ConsumeResponse, error)
	grpc.ClientStream
}

type logConsumeStreamClient struct{ grpc.ClientStream }

func (x *logConsumeStreamClient) Recv() (*api.ConsumeResponse, error) {
	m := new(api.ConsumeResponse)
	if err := x.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
