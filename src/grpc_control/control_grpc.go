package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// The control plane exchanges well-known protobuf types only, so the service
// descriptor is declared here instead of generated from a .proto file.

const (
	ServiceName = "mse.pipeline.Control"

	GetStatusMethod      = "/" + ServiceName + "/GetStatus"
	RefreshSymbolsMethod = "/" + ServiceName + "/RefreshSymbols"
	FetchSymbolMethod    = "/" + ServiceName + "/FetchSymbol"
)

// -----------------------------------------------------------------------------
// Server Side
// -----------------------------------------------------------------------------

type ControlServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	RefreshSymbols(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	FetchSymbol(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&Control_ServiceDesc, srv)
}

var Control_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: _Control_GetStatus_Handler},
		{MethodName: "RefreshSymbols", Handler: _Control_RefreshSymbols_Handler},
		{MethodName: "FetchSymbol", Handler: _Control_FetchSymbol_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mse/pipeline/control.proto",
}

// -----------------------------------------------------------------------------

func _Control_GetStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetStatusMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _Control_RefreshSymbols_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).RefreshSymbols(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RefreshSymbolsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).RefreshSymbols(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _Control_FetchSymbol_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).FetchSymbol(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FetchSymbolMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).FetchSymbol(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// -----------------------------------------------------------------------------
// Client Side
// -----------------------------------------------------------------------------

type ControlClient struct {
	cc grpc.ClientConnInterface
}

func NewControlClient(cc grpc.ClientConnInterface) *ControlClient {
	return &ControlClient{cc: cc}
}

func (c *ControlClient) GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetStatusMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ControlClient) RefreshSymbols(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RefreshSymbolsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ControlClient) FetchSymbol(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FetchSymbolMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
