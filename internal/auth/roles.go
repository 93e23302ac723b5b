package auth

import "strings"

// Role is the access level granted to a mapping editor.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// Permission is an action on mappings and their sources.
type Permission string

const (
	// PermRead covers the catalog, dataset columns, sessions and saved mappings.
	PermRead Permission = "mapping:read"
	// PermEdit covers session commands and submission.
	PermEdit Permission = "mapping:edit"
	// PermExport covers XLSX and PDF reports.
	PermExport Permission = "mapping:export"
)

var rolePermissions = map[Role][]Permission{
	RoleViewer: {PermRead},
	RoleEditor: {PermRead, PermEdit},
	RoleAdmin:  {PermRead, PermEdit, PermExport},
}

// NormalizeRole validates a role string, ignoring case and surrounding space.
func NormalizeRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := rolePermissions[role]; !ok {
		return "", false
	}
	return role, true
}

// Can reports whether the role grants perm.
func (r Role) Can(perm Permission) bool {
	for _, granted := range rolePermissions[r] {
		if granted == perm {
			return true
		}
	}
	return false
}

// Permissions lists what the role grants.
func (r Role) Permissions() []Permission {
	return append([]Permission(nil), rolePermissions[r]...)
}
