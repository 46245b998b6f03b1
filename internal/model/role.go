package model

import (
	"time"

	"github.com/google/uuid"
)

// Role names
const (
	RoleAdmin       = "admin"
	RolePrincipal   = "principal"
	RoleHOD         = "hod"
	RoleStorekeeper = "storekeeper"
	RoleStaff       = "staff"
)

// RoleScope is the organizational unit a role acts for.
type RoleScope int

const (
	ScopeInstitution RoleScope = iota
	ScopeCollege
	ScopeDepartment
)

// ScopeOf returns the unit a user holding role must be affiliated with.
// Roles outside the approval chain act institution-wide.
func ScopeOf(role string) RoleScope {
	switch role {
	case RoleHOD:
		return ScopeDepartment
	case RolePrincipal:
		return ScopeCollege
	default:
		return ScopeInstitution
	}
}

// IsApproverRole reports whether role may hold a stage in the approval chain.
func IsApproverRole(role string) bool {
	return role == RoleHOD || role == RolePrincipal || role == RoleAdmin
}

// Role groups permission codes under a name users are assigned to.
// Built-in roles are seeded at startup and cannot be deleted.
type Role struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string       `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	IsSystem    bool         `gorm:"default:false" json:"is_system"`
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Permission is a single capability such as "requests.approve".
type Permission struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code  string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"code"`
	Name  string    `gorm:"type:varchar(255);not null" json:"name"`
	Group string    `gorm:"type:varchar(50);not null;index" json:"group"` // requests, orders, stock...
}
