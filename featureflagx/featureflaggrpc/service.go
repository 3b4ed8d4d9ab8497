// Package featureflaggrpc serves the flags of a featureflagx.Store over gRPC.
// Requests carry the flag name as a StringValue and answers the flag state
// as a BoolValue, so the service needs no generated messages.
package featureflaggrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "rentapp.featureflag.v1.FeatureFlagService"

const (
	IsEnabledMethod = "/" + ServiceName + "/IsEnabled"
	EnableMethod    = "/" + ServiceName + "/Enable"
	DisableMethod   = "/" + ServiceName + "/Disable"
	ToggleMethod    = "/" + ServiceName + "/Toggle"
)

// FeatureFlagServiceServer is the server API for the FeatureFlagService.
// Every method answers the flag state after the call.
type FeatureFlagServiceServer interface {
	IsEnabled(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	Enable(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	Disable(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	Toggle(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
}

func RegisterFeatureFlagServiceServer(s grpc.ServiceRegistrar, srv FeatureFlagServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryCall func(FeatureFlagServiceServer, context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(wrapperspb.StringValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FeatureFlagServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(FeatureFlagServiceServer), ctx, req.(*wrapperspb.StringValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc is the grpc.ServiceDesc for the FeatureFlagService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FeatureFlagServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "IsEnabled",
			Handler:    unaryHandler(IsEnabledMethod, FeatureFlagServiceServer.IsEnabled),
		},
		{
			MethodName: "Enable",
			Handler:    unaryHandler(EnableMethod, FeatureFlagServiceServer.Enable),
		},
		{
			MethodName: "Disable",
			Handler:    unaryHandler(DisableMethod, FeatureFlagServiceServer.Disable),
		},
		{
			MethodName: "Toggle",
			Handler:    unaryHandler(ToggleMethod, FeatureFlagServiceServer.Toggle),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rentapp/featureflag/v1/featureflag.proto",
}
