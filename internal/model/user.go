package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role constants
const (
	RoleVendor     = "vendor"
	RoleInstaller  = "installer"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
	RolePurchasing = "purchasing"
)

// ElevatedRoles receive project creation notifications and may approve.
var ElevatedRoles = []string{RoleAdmin, RoleSuperAdmin}

// IsKnownRole reports whether role is one of the roles the system recognises.
func IsKnownRole(role string) bool {
	switch role {
	case RoleVendor, RoleInstaller, RoleAdmin, RoleSuperAdmin, RolePurchasing:
		return true
	}
	return false
}

// User represents an account of any role. Name is the display name shown in
// history entries and used to resolve installers by name.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string         `gorm:"type:varchar(255);not null;index" json:"name"`
	Username  string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email     string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone     string         `gorm:"type:varchar(20)" json:"phone"`
	Password  string         `gorm:"type:varchar(255);not null" json:"-"`
	Role      string         `gorm:"type:varchar(50);not null;index" json:"role"` // vendor, installer, admin, super_admin, purchasing
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Actor returns the identity a request acts as.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Name: u.Name, Role: u.Role}
}
