package events

import (
	"strings"

	"stockflow-service/internal/authz"
)

const userGroupPrefix = "user_"

// UserGroup names the group holding every connection of one user.
func UserGroup(userID string) string {
	return userGroupPrefix + userID
}

// RoleGroup names the group holding every connection authenticated with role.
func RoleGroup(role authz.Role) string {
	return role.String()
}

// IsReserved reports whether name is a role or user group. Those are assigned from claims
// at connect time and cannot be joined or left by clients.
func IsReserved(name string) bool {
	if strings.HasPrefix(strings.ToLower(name), userGroupPrefix) {
		return true
	}
	_, isRole := authz.ParseRole(name)
	return isRole
}
