package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"switchd/openflow/ofp13"
)

// Client calls the admin service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Handle(ctx context.Context, msg []byte, opts ...grpc.CallOption) ([]byte, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, fullMethod("Handle"), wrapperspb.Bytes(msg), out, opts...); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}

func (c *Client) ApplyMeterMod(ctx context.Context, mod ofp13.MeterMod, opts ...grpc.CallOption) (*structpb.Struct, error) {
	body, err := mod.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("ApplyMeterMod"), wrapperspb.Bytes(body), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MeterStats(ctx context.Context, id uint32, opts ...grpc.CallOption) ([]ofp13.MeterStats, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, fullMethod("MeterStats"), wrapperspb.UInt32(id), out, opts...); err != nil {
		return nil, err
	}
	return ofp13.UnmarshalMeterStats(out.GetValue())
}

func (c *Client) Barrier(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, fullMethod("Barrier"), new(emptypb.Empty), new(emptypb.Empty), opts...)
}

func (c *Client) RCUStats(ctx context.Context, opts ...grpc.CallOption) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("RCUStats"), new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
