package models

import "time"

type UserRole string

const (
	RoleSuperAdmin UserRole = "SuperAdmin"
	RoleAdmin      UserRole = "Admin"
	RoleOrganizer  UserRole = "Organizer"
	RoleLabStaff   UserRole = "LabStaff"
)

// IsAdmin reports whether the role sees every centre.
func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// IsCentreBound reports whether the role is restricted to its home centre.
func (r UserRole) IsCentreBound() bool {
	return r == RoleOrganizer || r == RoleLabStaff
}

type User struct {
	ID           uint     `gorm:"primaryKey"`
	CentreID     *string  `gorm:"size:50;index"`
	Name         string   `gorm:"size:100;not null"`
	Email        string   `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:20;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string { return "staff_users" }
