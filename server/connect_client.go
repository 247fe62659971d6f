package server

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// ConnectClient calls a CompilerService over the Connect protocol.
type ConnectClient struct {
	compile *connect.Client[CompileRequest, CompileResponse]
	start   *connect.Client[StartRequest, StartResponse]
	step    *connect.Client[StepRequest, StepResponse]
	stop    *connect.Client[StopRequest, StopResponse]
}

// NewConnectClient creates a client for the server at baseURL
// (e.g. "http://localhost:4567").
func NewConnectClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ConnectClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &ConnectClient{
		compile: connect.NewClient[CompileRequest, CompileResponse](httpClient, baseURL+CompileProcedure, opts...),
		start:   connect.NewClient[StartRequest, StartResponse](httpClient, baseURL+StartProcedure, opts...),
		step:    connect.NewClient[StepRequest, StepResponse](httpClient, baseURL+StepProcedure, opts...),
		stop:    connect.NewClient[StopRequest, StopResponse](httpClient, baseURL+StopProcedure, opts...),
	}
}

func (c *ConnectClient) Compile(ctx context.Context, req *CompileRequest) (*CompileResponse, error) {
	return callUnary(ctx, c.compile, req)
}

func (c *ConnectClient) Start(ctx context.Context, req *StartRequest) (*StartResponse, error) {
	return callUnary(ctx, c.start, req)
}

func (c *ConnectClient) Step(ctx context.Context, req *StepRequest) (*StepResponse, error) {
	return callUnary(ctx, c.step, req)
}

func (c *ConnectClient) Stop(ctx context.Context, req *StopRequest) (*StopResponse, error) {
	return callUnary(ctx, c.stop, req)
}

func callUnary[Req, Res any](ctx context.Context, client *connect.Client[Req, Res], req *Req) (*Res, error) {
	res, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}
