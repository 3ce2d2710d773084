package authz

import (
	"sort"
	"strings"
)

// Role is the coarse-grained classification of a principal.
type Role int

const (
	RoleUnknown Role = iota
	RoleUser
	RoleManager
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleUser:    "User",
	RoleManager: "Manager",
	RoleAdmin:   "Admin",
}

// Roles lists every valid role in ascending privilege.
var Roles = []Role{RoleUser, RoleManager, RoleAdmin}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "Unknown"
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole resolves a role claim. Matching is case-insensitive; anything else is RoleUnknown.
func ParseRole(claim string) (Role, bool) {
	claim = strings.TrimSpace(claim)
	for role, name := range roleNames {
		if strings.EqualFold(name, claim) {
			return role, true
		}
	}
	return RoleUnknown, false
}

// Permission is a dotted capability identifier such as "users.view".
type Permission string

const (
	UsersView        Permission = "users.view"
	UsersCreate      Permission = "users.create"
	UsersEdit        Permission = "users.edit"
	UsersDelete      Permission = "users.delete"
	UsersViewAll     Permission = "users.view_all"
	UsersManageRoles Permission = "users.manage_roles"
	UsersViewReports Permission = "users.view_reports"

	SystemViewAdminPanel Permission = "system.view_admin_panel"
	SystemManageSettings Permission = "system.manage_settings"
	SystemViewLogs       Permission = "system.view_logs"
	SystemSyncData       Permission = "system.sync_data"
	SystemViewStatistics Permission = "system.view_statistics"

	DataExport  Permission = "data.export"
	DataImport  Permission = "data.import"
	DataBackup  Permission = "data.backup"
	DataRestore Permission = "data.restore"

	InvoiceView        Permission = "invoice.view"
	InvoiceCreate      Permission = "invoice.create"
	InvoiceEdit        Permission = "invoice.edit"
	InvoiceDelete      Permission = "invoice.delete"
	InvoiceViewAll     Permission = "invoice.view_all"
	InvoiceManageItems Permission = "invoice.manage_items"

	ProductView        Permission = "product.view"
	ProductCreate      Permission = "product.create"
	ProductEdit        Permission = "product.edit"
	ProductDelete      Permission = "product.delete"
	ProductUpdateStock Permission = "product.update_stock"
	ProductViewReports Permission = "product.view_reports"

	ReportsViewBasic    Permission = "reports.view_basic"
	ReportsViewAdvanced Permission = "reports.view_advanced"
	ReportsGenerate     Permission = "reports.generate"
	ReportsSchedule     Permission = "reports.schedule"
)

// defaultGrants is enumerated explicitly per role so the matrix can be audited at a glance.
var defaultGrants = map[Role][]Permission{
	RoleUser: {
		UsersView,
		UsersEdit, // own profile
		ProductView,
		ReportsViewBasic,
	},
	RoleManager: {
		UsersView,
		UsersEdit,
		UsersViewAll,
		UsersViewReports,

		ProductView,
		ProductCreate,
		ProductEdit,
		ProductUpdateStock,
		ProductViewReports,

		InvoiceView,
		InvoiceCreate,
		InvoiceEdit,
		InvoiceViewAll,
		InvoiceManageItems,

		SystemViewStatistics,
		ReportsViewBasic,
		ReportsViewAdvanced,
		ReportsGenerate,
		DataExport,
	},
	RoleAdmin: {
		UsersView,
		UsersCreate,
		UsersEdit,
		UsersDelete,
		UsersViewAll,
		UsersManageRoles,
		UsersViewReports,

		ProductView,
		ProductCreate,
		ProductEdit,
		ProductDelete,
		ProductUpdateStock,
		ProductViewReports,

		InvoiceView,
		InvoiceCreate,
		InvoiceEdit,
		InvoiceDelete,
		InvoiceViewAll,
		InvoiceManageItems,

		SystemViewAdminPanel,
		SystemManageSettings,
		SystemViewLogs,
		SystemSyncData,
		SystemViewStatistics,

		DataExport,
		DataImport,
		DataBackup,
		DataRestore,

		ReportsViewBasic,
		ReportsViewAdvanced,
		ReportsGenerate,
		ReportsSchedule,
	},
}

// DefaultTable is the process-wide role matrix. It has no writers after initialisation.
var DefaultTable = NewTable(defaultGrants)

// Table is an immutable role → permission set mapping.
type Table struct {
	grants map[Role]map[Permission]struct{}
	all    []Permission
}

// NewTable copies grants into a new Table; later changes to grants are not observed.
func NewTable(grants map[Role][]Permission) *Table {
	t := &Table{grants: make(map[Role]map[Permission]struct{}, len(grants))}

	union := make(map[Permission]struct{})
	for role, perms := range grants {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
			union[p] = struct{}{}
		}
		t.grants[role] = set
	}

	t.all = sortedKeys(union)
	return t
}

// HasPermission reports whether role is granted permission. Unknown roles hold nothing.
func (t *Table) HasPermission(role Role, permission Permission) bool {
	set, ok := t.grants[role]
	if !ok {
		return false
	}
	_, ok = set[permission]
	return ok
}

// GetPermissions returns a sorted copy of the role's permissions, empty for unknown roles.
func (t *Table) GetPermissions(role Role) []Permission {
	set, ok := t.grants[role]
	if !ok {
		return []Permission{}
	}
	return sortedKeys(set)
}

// GetAllPermissions returns the deduplicated union of every role's permissions, sorted.
func (t *Table) GetAllPermissions() []Permission {
	out := make([]Permission, len(t.all))
	copy(out, t.all)
	return out
}

func sortedKeys(set map[Permission]struct{}) []Permission {
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParsePermissions splits a comma separated list, trimming blanks and dropping empties.
func ParsePermissions(csv string) []Permission {
	parts := strings.Split(csv, ",")
	out := make([]Permission, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, Permission(part))
	}
	return out
}
