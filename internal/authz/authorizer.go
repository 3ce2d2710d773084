package authz

import (
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ErrForbidden is returned for every unmet requirement. It never says which permission was missing.
var ErrForbidden = errors.New("forbidden")

const (
	PolicyAdminOnly      = "AdminOnly"
	PolicyManagerOrAdmin = "ManagerOrAdmin"
	PolicyAllRoles       = "AllRoles"

	allPermissionsPrefix = "AllPermissions:"
	anyPermissionPrefix  = "AnyPermission:"
)

// Requirement is evaluated against a parsed, valid role.
type Requirement interface {
	Satisfied(t *Table, role Role) bool
}

// RequirePermission is met when the role holds the permission.
type RequirePermission Permission

func (r RequirePermission) Satisfied(t *Table, role Role) bool {
	return t.HasPermission(role, Permission(r))
}

// AnyOf is met when the role holds at least one of the permissions.
type AnyOf []Permission

func (r AnyOf) Satisfied(t *Table, role Role) bool {
	for _, p := range r {
		if t.HasPermission(role, p) {
			return true
		}
	}
	return false
}

// AllOf is met when the role holds every permission. An empty AllOf is never met.
type AllOf []Permission

func (r AllOf) Satisfied(t *Table, role Role) bool {
	if len(r) == 0 {
		return false
	}
	for _, p := range r {
		if !t.HasPermission(role, p) {
			return false
		}
	}
	return true
}

// RoleIn is met when the role is one of the listed roles.
type RoleIn []Role

func (r RoleIn) Satisfied(_ *Table, role Role) bool {
	for _, allowed := range r {
		if allowed == role {
			return true
		}
	}
	return false
}

// ParsePolicy turns a policy name into a requirement. Unrecognised names are permission literals.
func ParsePolicy(name string) Requirement {
	name = strings.TrimSpace(name)
	switch {
	case name == PolicyAdminOnly:
		return RoleIn{RoleAdmin}
	case name == PolicyManagerOrAdmin:
		return RoleIn{RoleManager, RoleAdmin}
	case name == PolicyAllRoles:
		return RoleIn(Roles)
	case strings.HasPrefix(name, allPermissionsPrefix):
		return AllOf(ParsePermissions(strings.TrimPrefix(name, allPermissionsPrefix)))
	case strings.HasPrefix(name, anyPermissionPrefix):
		return AnyOf(ParsePermissions(strings.TrimPrefix(name, anyPermissionPrefix)))
	default:
		return RequirePermission(name)
	}
}

// Authorizer evaluates principals against requirements using a permission table.
type Authorizer struct {
	logger *zap.SugaredLogger
	table  *Table
}

func NewAuthorizer(logger *zap.SugaredLogger, table *Table) *Authorizer {
	return &Authorizer{
		logger: logger,
		table:  table,
	}
}

func (a *Authorizer) Table() *Table {
	return a.table
}

// Authorize returns nil when the principal meets req, ErrForbidden otherwise.
// A missing or unparseable role claim always fails.
func (a *Authorizer) Authorize(p Principal, req Requirement) error {
	return a.authorize(p.UserID, p.ParsedRole(), req)
}

// AuthorizeClaim evaluates a bare role claim, as sent by other backends that already
// authenticated their caller.
func (a *Authorizer) AuthorizeClaim(claim string, req Requirement) error {
	role, _ := ParseRole(claim)
	return a.authorize("", role, req)
}

func (a *Authorizer) authorize(userID string, role Role, req Requirement) error {
	if !role.Valid() {
		recordDecision(role, false)
		a.logger.Debugw("authorization denied: no usable role claim", "userId", userID)
		return ErrForbidden
	}

	allowed := req != nil && req.Satisfied(a.table, role)
	recordDecision(role, allowed)
	if !allowed {
		a.logger.Debugw("authorization denied", "userId", userID, "role", role.String())
		return ErrForbidden
	}
	return nil
}

func (a *Authorizer) AuthorizePolicy(p Principal, policy string) error {
	return a.Authorize(p, ParsePolicy(policy))
}

func (a *Authorizer) HasPermission(p Principal, permission Permission) bool {
	return a.Authorize(p, RequirePermission(permission)) == nil
}

func (a *Authorizer) HasAnyPermission(p Principal, permissions ...Permission) bool {
	return a.Authorize(p, AnyOf(permissions)) == nil
}

func (a *Authorizer) HasAllPermissions(p Principal, permissions ...Permission) bool {
	return a.Authorize(p, AllOf(permissions)) == nil
}

// PermissionsOf lists the principal's permissions; empty without a usable role.
func (a *Authorizer) PermissionsOf(p Principal) []Permission {
	return a.table.GetPermissions(p.ParsedRole())
}

// CanAccessUser allows admins to reach any user and everyone else only themselves.
func (a *Authorizer) CanAccessUser(p Principal, targetUserID string) bool {
	role := p.ParsedRole()
	if !role.Valid() {
		return false
	}
	if role == RoleAdmin {
		return true
	}
	return targetUserID != "" && p.UserID == targetUserID
}
