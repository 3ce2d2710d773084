package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
	"stockflow-service/internal/authz"
)

type permissionService struct {
	logger     *zap.SugaredLogger
	authorizer *authz.Authorizer
}

func newPermissionService(logger *zap.SugaredLogger, authorizer *authz.Authorizer) PermissionServiceServer {
	return &permissionService{
		logger:     logger,
		authorizer: authorizer,
	}
}

func (s *permissionService) HasPermission(_ context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	role, err := requiredField(req, "role")
	if err != nil {
		return nil, err
	}
	permission, err := requiredField(req, "permission")
	if err != nil {
		return nil, err
	}

	allowed := s.authorizer.AuthorizeClaim(role, authz.RequirePermission(permission)) == nil
	return wrapperspb.Bool(allowed), nil
}

func (s *permissionService) GetPermissions(_ context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	claim := strings.TrimSpace(req.GetValue())
	if claim == "" {
		return nil, status.Error(codes.InvalidArgument, "role is required")
	}

	role, _ := authz.ParseRole(claim)
	return toList(s.authorizer.Table().GetPermissions(role)), nil
}

func (s *permissionService) GetAllPermissions(_ context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	return toList(s.authorizer.Table().GetAllPermissions()), nil
}

func (s *permissionService) Authorize(_ context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	role, err := requiredField(req, "role")
	if err != nil {
		return nil, err
	}
	policy, err := requiredField(req, "policy")
	if err != nil {
		return nil, err
	}

	allowed := s.authorizer.AuthorizeClaim(role, authz.ParsePolicy(policy)) == nil
	return wrapperspb.Bool(allowed), nil
}

func requiredField(req *structpb.Struct, name string) (string, error) {
	value, ok := req.GetFields()[name]
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	str, ok := value.GetKind().(*structpb.Value_StringValue)
	if !ok || strings.TrimSpace(str.StringValue) == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s must be a non-empty string", name)
	}
	return strings.TrimSpace(str.StringValue), nil
}

func toList(permissions []authz.Permission) *structpb.ListValue {
	values := make([]*structpb.Value, 0, len(permissions))
	for _, p := range permissions {
		values = append(values, structpb.NewStringValue(string(p)))
	}
	return &structpb.ListValue{Values: values}
}
