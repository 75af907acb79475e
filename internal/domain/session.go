package domain

import "strings"

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleBranch     Role = "branch"
	RoleChef       Role = "chef"
	RoleProduction Role = "production"
)

// Session identifies the viewing user for the lifetime of one authenticated
// connection. Scope identifiers are only set for the roles that carry them.
type Session struct {
	UserID       string `json:"userId"`
	Role         Role   `json:"role"`
	BranchID     string `json:"branchId,omitempty"`
	ChefID       string `json:"chefId,omitempty"`
	DepartmentID string `json:"departmentId,omitempty"`
}

func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleBranch, RoleChef, RoleProduction:
		return true
	}
	return false
}

func (s Session) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return errMissingUser
	}
	if !ValidRole(s.Role) {
		return errInvalidRole
	}
	switch s.Role {
	case RoleBranch:
		if strings.TrimSpace(s.BranchID) == "" {
			return errMissingBranch
		}
	case RoleChef:
		if strings.TrimSpace(s.ChefID) == "" {
			return errMissingChef
		}
	}
	return nil
}
