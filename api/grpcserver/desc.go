package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the admin service's fully qualified gRPC name. Its
// messages are all protobuf well-known types, so no generated code is
// needed on either side.
const ServiceName = "switchd.admin.v1.Admin"

type AdminServer interface {
	// Handle processes one raw OpenFlow 1.3 message and returns the raw
	// reply, empty when the message has none.
	Handle(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	// ApplyMeterMod applies an encoded ofp13 meter-mod body.
	ApplyMeterMod(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	// MeterStats returns encoded ofp13 meter stats entries.
	MeterStats(context.Context, *wrapperspb.UInt32Value) (*wrapperspb.BytesValue, error)
	Barrier(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	RCUStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Handle", newBytes, AdminServer.Handle),
		unary("ApplyMeterMod", newBytes, AdminServer.ApplyMeterMod),
		unary("MeterStats", func() *wrapperspb.UInt32Value { return new(wrapperspb.UInt32Value) }, AdminServer.MeterStats),
		unary("Barrier", newEmpty, AdminServer.Barrier),
		unary("RCUStats", newEmpty, AdminServer.RCUStats),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "switchd/admin/v1/admin.proto",
}

func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func newBytes() *wrapperspb.BytesValue { return new(wrapperspb.BytesValue) }
func newEmpty() *emptypb.Empty         { return new(emptypb.Empty) }

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

// unary builds the method descriptor protoc-gen-go-grpc would generate
// for a unary RPC.
func unary[Req, Resp proto.Message](
	name string,
	newReq func() Req,
	call func(AdminServer, context.Context, Req) (Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AdminServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AdminServer), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
