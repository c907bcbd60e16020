package grpcserver

import (
	"context"
	"log"
	"strconv"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"switchd/domain/meter"
	"switchd/openflow/ofp13"
	"switchd/service"
)

// Server adapts MeterService to gRPC.
type Server struct {
	svc *service.MeterService
	log *log.Logger
}

func NewServer(svc *service.MeterService, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{svc: svc, log: logger}
}

// NewGRPCServer builds a grpc.Server with the admin service registered
// and failed calls logged.
func NewGRPCServer(svc *service.MeterService, logger *log.Logger, opts ...grpc.ServerOption) *grpc.Server {
	s := NewServer(svc, logger)
	opts = append(opts, grpc.ChainUnaryInterceptor(s.logErrors))
	g := grpc.NewServer(opts...)
	RegisterAdminServer(g, s)
	return g
}

func (s *Server) logErrors(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil && status.Code(err) == codes.Internal {
		s.log.Printf("[gRPC] %s failed: %v", info.FullMethod, err)
	}
	return resp, err
}

// -------------------- Commands --------------------

func (s *Server) Handle(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	reply, err := s.svc.Handle(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(reply), nil
}

func (s *Server) ApplyMeterMod(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	var mod ofp13.MeterMod
	if err := mod.UnmarshalBinary(in.GetValue()); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "meter-mod: %v", err)
	}

	seq, ch, err := s.svc.ApplyMeterMod(mod)
	if err != nil {
		return nil, toStatus(err)
	}

	s.log.Printf("[gRPC] ApplyMeterMod command=%d meter=%d seq=%d", mod.Command, mod.MeterID, seq)

	removed := make([]any, len(ch.Removed))
	for i, id := range ch.Removed {
		removed[i] = id
	}
	out, err := structpb.NewStruct(map[string]any{
		"seq":      strconv.FormatUint(seq, 10),
		"event":    uint32(ch.Event),
		"meter_id": ch.MeterID,
		"version":  ch.Version,
		"removed":  removed,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) Barrier(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.svc.Barrier()
	return new(emptypb.Empty), nil
}

// -------------------- Queries --------------------

func (s *Server) MeterStats(ctx context.Context, in *wrapperspb.UInt32Value) (*wrapperspb.BytesValue, error) {
	stats, err := s.svc.MeterStats(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(ofp13.MarshalMeterStats(stats)), nil
}

func (s *Server) RCUStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.svc.RCUStats()
	out, err := structpb.NewStruct(map[string]any{
		"epoch":        st.Epoch,
		"threads":      st.Threads,
		"quiescent":    st.Quiescent,
		"pending":      st.Pending,
		"sealed":       st.Sealed,
		"last_retired": st.LastRetired,
		"postponed":    st.Postponed,
		"executed":     st.Executed,
		"retired":      st.Retired,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// -------------------- Errors --------------------

func toStatus(err error) error {
	if errors.Is(err, service.ErrMalformed) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	code, ok := meter.CodeOf(err)
	if !ok {
		return status.Error(codes.Internal, err.Error())
	}
	switch code {
	case ofp13.OFPMMFC_METER_EXISTS:
		return status.Error(codes.AlreadyExists, err.Error())
	case ofp13.OFPMMFC_UNKNOWN_METER:
		return status.Error(codes.NotFound, err.Error())
	case ofp13.OFPMMFC_OUT_OF_METERS, ofp13.OFPMMFC_OUT_OF_BANDS:
		return status.Error(codes.ResourceExhausted, err.Error())
	}
	return status.Error(codes.InvalidArgument, err.Error())
}
