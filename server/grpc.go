package server

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// CompilerServer is the gRPC view of CompilerService.
type CompilerServer interface {
	DoCompile(context.Context, *CompileRequest) (*CompileResponse, error)
	DoStart(context.Context, *StartRequest) (*StartResponse, error)
	DoStep(context.Context, *StepRequest) (*StepResponse, error)
	DoStop(context.Context, *StopRequest) (*StopResponse, error)
}

// grpcMethod adapts one CompilerServer operation to a gRPC method handler.
func grpcMethod[Req, Res any](name string, call func(CompilerServer, context.Context, *Req) (*Res, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				res, err := call(srv.(CompilerServer), ctx, req.(*Req))
				if err != nil {
					return nil, grpcError(err)
				}
				return res, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// CompilerServiceDesc describes the service for grpc.Server.RegisterService.
var CompilerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CompilerServer)(nil),
	Methods: []grpc.MethodDesc{
		grpcMethod("Compile", CompilerServer.DoCompile),
		grpcMethod("Start", CompilerServer.DoStart),
		grpcMethod("Step", CompilerServer.DoStep),
		grpcMethod("Stop", CompilerServer.DoStop),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pix/v1/compiler",
}

// grpcError maps a Connect error onto the gRPC status with the same code.
func grpcError(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Code(errorCode(err)), err.Error())
}

// NewGRPCServer creates a gRPC server speaking CBOR with svc registered.
func NewGRPCServer(svc CompilerServer, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ForceServerCodec(Codec{})}, opts...)
	gs := grpc.NewServer(opts...)
	gs.RegisterService(&CompilerServiceDesc, svc)
	return gs
}

// Client calls a CompilerService over gRPC.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a gRPC compiler service at target without TLS.
func Dial(target string) (*Client, error) {
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})),
	)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// DialListener connects to a server listening on lis.
func DialListener(lis net.Listener) (*Client, error) {
	return Dial("passthrough:///" + lis.Addr().String())
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) Compile(ctx context.Context, req *CompileRequest) (*CompileResponse, error) {
	out := new(CompileResponse)
	if err := c.conn.Invoke(ctx, CompileProcedure, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Start(ctx context.Context, req *StartRequest) (*StartResponse, error) {
	out := new(StartResponse)
	if err := c.conn.Invoke(ctx, StartProcedure, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Step(ctx context.Context, req *StepRequest) (*StepResponse, error) {
	out := new(StepResponse)
	if err := c.conn.Invoke(ctx, StepProcedure, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Stop(ctx context.Context, req *StopRequest) (*StopResponse, error) {
	out := new(StopResponse)
	if err := c.conn.Invoke(ctx, StopProcedure, req, out); err != nil {
		return nil, err
	}
	return out, nil
}
