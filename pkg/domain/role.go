package domain

import dErrors "kutumb/pkg/domain-errors"

// Role is the claim carried in access tokens and checked by services on every
// transition. Authorization is explicit per operation; there is no ambient
// session state.
type Role string

const (
	RoleCitizen    Role = "citizen"
	RoleOfficer    Role = "officer"
	RoleSupervisor Role = "supervisor"
	RoleStaff      Role = "staff"
	RoleAdmin      Role = "admin"
)

var validRoles = map[Role]bool{
	RoleCitizen:    true,
	RoleOfficer:    true,
	RoleSupervisor: true,
	RoleStaff:      true,
	RoleAdmin:      true,
}

// ParseRole constructs a Role from external input (token claims, requests).
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role must not be empty")
	}
	r := Role(s)
	if !validRoles[r] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role: "+s)
	}
	return r, nil
}

func (r Role) IsValid() bool { return validRoles[r] }

func (r Role) String() string { return string(r) }

// CanSchedule reports whether the role may create or schedule visits.
func (r Role) CanSchedule() bool {
	return r == RoleStaff || r == RoleOfficer || r == RoleAdmin
}

// CanSupervise reports whether the role may approve or reopen visits.
func (r Role) CanSupervise() bool {
	return r == RoleSupervisor
}

// CanCancelAdministratively reports whether the role may cancel a visit it is
// not assigned to.
func (r Role) CanCancelAdministratively() bool {
	return r == RoleAdmin || r == RoleStaff
}
