package service

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name. Messages are protobuf well-known types
// so callers need no generated stubs.
const ServiceName = "stockflow.authz.v1.PermissionService"

const (
	methodHasPermission     = "HasPermission"
	methodGetPermissions    = "GetPermissions"
	methodGetAllPermissions = "GetAllPermissions"
	methodAuthorize         = "Authorize"
)

type PermissionServiceServer interface {
	// HasPermission expects {"role": string, "permission": string}.
	HasPermission(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error)
	GetPermissions(ctx context.Context, role *wrapperspb.StringValue) (*structpb.ListValue, error)
	GetAllPermissions(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error)
	// Authorize expects {"role": string, "policy": string}.
	Authorize(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error)
}

var permissionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PermissionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: methodHasPermission,
			Handler: unaryHandler(methodHasPermission, func(s PermissionServiceServer, ctx context.Context, req *structpb.Struct) (any, error) {
				return s.HasPermission(ctx, req)
			}),
		},
		{
			MethodName: methodGetPermissions,
			Handler: unaryHandler(methodGetPermissions, func(s PermissionServiceServer, ctx context.Context, req *wrapperspb.StringValue) (any, error) {
				return s.GetPermissions(ctx, req)
			}),
		},
		{
			MethodName: methodGetAllPermissions,
			Handler: unaryHandler(methodGetAllPermissions, func(s PermissionServiceServer, ctx context.Context, req *emptypb.Empty) (any, error) {
				return s.GetAllPermissions(ctx, req)
			}),
		},
		{
			MethodName: methodAuthorize,
			Handler: unaryHandler(methodAuthorize, func(s PermissionServiceServer, ctx context.Context, req *structpb.Struct) (any, error) {
				return s.Authorize(ctx, req)
			}),
		},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterPermissionServiceServer(s grpc.ServiceRegistrar, srv PermissionServiceServer) {
	s.RegisterService(&permissionServiceDesc, srv)
}

func unaryHandler[Req any](method string, call func(PermissionServiceServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method

	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}

		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PermissionServiceServer), ctx, req.(*Req))
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, handler)
	}
}

// PermissionServiceClient calls the permission service of another instance.
type PermissionServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewPermissionServiceClient(cc grpc.ClientConnInterface) *PermissionServiceClient {
	return &PermissionServiceClient{cc: cc}
}

func (c *PermissionServiceClient) HasPermission(ctx context.Context, role string, permission string, opts ...grpc.CallOption) (bool, error) {
	req, err := structpb.NewStruct(map[string]any{"role": role, "permission": permission})
	if err != nil {
		return false, err
	}
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+methodHasPermission, req, out, opts...); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *PermissionServiceClient) GetPermissions(ctx context.Context, role string, opts ...grpc.CallOption) ([]string, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+methodGetPermissions, wrapperspb.String(role), out, opts...); err != nil {
		return nil, err
	}
	return listStrings(out), nil
}

func (c *PermissionServiceClient) GetAllPermissions(ctx context.Context, opts ...grpc.CallOption) ([]string, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+methodGetAllPermissions, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return listStrings(out), nil
}

func (c *PermissionServiceClient) Authorize(ctx context.Context, role string, policy string, opts ...grpc.CallOption) (bool, error) {
	req, err := structpb.NewStruct(map[string]any{"role": role, "policy": policy})
	if err != nil {
		return false, err
	}
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+methodAuthorize, req, out, opts...); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func listStrings(l *structpb.ListValue) []string {
	out := make([]string, 0, len(l.GetValues()))
	for _, v := range l.GetValues() {
		out = append(out, v.GetStringValue())
	}
	return out
}
