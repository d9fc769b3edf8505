package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "docscan.v1.AnalysisService"

// AnalysisServer is the server API for the analysis service. Requests and responses are
// google.protobuf.Struct messages with camelCase keys.
type AnalysisServer interface {
	Analyze(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUsage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LinkRecord(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportAnalyses(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IngestDirectory(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(AnalysisServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AnalysisServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(AnalysisServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// AnalysisServiceDesc describes AnalysisServer for grpc.Server.RegisterService.
var AnalysisServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AnalysisServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Analyze", AnalysisServer.Analyze),
		unaryHandler("GetUsage", AnalysisServer.GetUsage),
		unaryHandler("LinkRecord", AnalysisServer.LinkRecord),
		unaryHandler("ExportAnalyses", AnalysisServer.ExportAnalyses),
		unaryHandler("IngestDirectory", AnalysisServer.IngestDirectory),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docscan/v1/analysis.proto",
}

func RegisterAnalysisServer(s grpc.ServiceRegistrar, srv AnalysisServer) {
	s.RegisterService(&AnalysisServiceDesc, srv)
}

// Client calls the analysis service over conn.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Analyze(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Analyze", in, opts...)
}

func (c *Client) GetUsage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "GetUsage", in, opts...)
}

func (c *Client) LinkRecord(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "LinkRecord", in, opts...)
}

func (c *Client) ExportAnalyses(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "ExportAnalyses", in, opts...)
}

func (c *Client) IngestDirectory(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "IngestDirectory", in, opts...)
}
