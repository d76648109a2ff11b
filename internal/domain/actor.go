package domain

import "github.com/google/uuid"

const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleCustomer = "customer"
)

// StaffRoles may act on any order or conversation.
var StaffRoles = []string{RoleAdmin, RoleStaff}

type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleStaff
}

// CanAccess reports whether the actor owns the resource or is staff.
func (a Actor) CanAccess(ownerID uuid.UUID) bool {
	return a.IsStaff() || (a.UserID != uuid.Nil && a.UserID == ownerID)
}
