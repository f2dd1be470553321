package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

/*
 * gRPC plumbing for mediafilter.v1.FilterService.
 *
 * Every method is unary and carries google.protobuf.Struct in both
 * directions, so the service needs no generated message types: the proto
 * codec marshals Struct natively and the handlers convert it to domain
 * types through JSON (see codec.go).
 */

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "mediafilter.v1.FilterService"

// Method names.
const (
	MethodOpenSession     = "OpenSession"
	MethodDispatch        = "Dispatch"
	MethodCloseSession    = "CloseSession"
	MethodSyncFilter      = "SyncFilter"
	MethodApplyQuickRule  = "ApplyQuickRule"
	MethodRemoveQuickRule = "RemoveQuickRule"
	MethodQueryMedia      = "QueryMedia"
	MethodAddMedia        = "AddMedia"
	MethodListFields      = "ListFields"
)

// FilterServiceServer is the server API for FilterService.
type FilterServiceServer interface {
	OpenSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Dispatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SyncFilter(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApplyQuickRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveQuickRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	QueryMedia(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddMedia(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListFields(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(FilterServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FilterServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(method),
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(FilterServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// FilterServiceDesc is the grpc.ServiceDesc for FilterService.
var FilterServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FilterServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodOpenSession, Handler: unaryHandler(MethodOpenSession, FilterServiceServer.OpenSession)},
		{MethodName: MethodDispatch, Handler: unaryHandler(MethodDispatch, FilterServiceServer.Dispatch)},
		{MethodName: MethodCloseSession, Handler: unaryHandler(MethodCloseSession, FilterServiceServer.CloseSession)},
		{MethodName: MethodSyncFilter, Handler: unaryHandler(MethodSyncFilter, FilterServiceServer.SyncFilter)},
		{MethodName: MethodApplyQuickRule, Handler: unaryHandler(MethodApplyQuickRule, FilterServiceServer.ApplyQuickRule)},
		{MethodName: MethodRemoveQuickRule, Handler: unaryHandler(MethodRemoveQuickRule, FilterServiceServer.RemoveQuickRule)},
		{MethodName: MethodQueryMedia, Handler: unaryHandler(MethodQueryMedia, FilterServiceServer.QueryMedia)},
		{MethodName: MethodAddMedia, Handler: unaryHandler(MethodAddMedia, FilterServiceServer.AddMedia)},
		{MethodName: MethodListFields, Handler: unaryHandler(MethodListFields, FilterServiceServer.ListFields)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mediafilter/v1/filter_service.proto",
}

// RegisterFilterServiceServer registers srv on s.
func RegisterFilterServiceServer(s grpc.ServiceRegistrar, srv FilterServiceServer) {
	s.RegisterService(&FilterServiceDesc, srv)
}

// FullMethod returns the gRPC path of a FilterService method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// FilterServiceClient calls FilterService methods by name.
type FilterServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewFilterServiceClient wraps a client connection.
func NewFilterServiceClient(cc grpc.ClientConnInterface) *FilterServiceClient {
	return &FilterServiceClient{cc: cc}
}

// Call invokes method with req.
func (c *FilterServiceClient) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
