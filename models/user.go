package models

import (
	"time"
)

// Role is the permission class of a caller
type Role string

const (
	RoleCustomer Role = "customer"
	RoleWaiter   Role = "waiter"
	RoleCook     Role = "cook"
	RoleCashier  Role = "cashier"
	RoleAdmin    Role = "admin"
)

// Roles lists every role a user may register with.
var Roles = []Role{RoleCustomer, RoleWaiter, RoleCook, RoleCashier, RoleAdmin}

// StaffRoles may read orders.
var StaffRoles = []Role{RoleWaiter, RoleCook, RoleCashier, RoleAdmin}

func (r Role) Valid() bool {
	for _, v := range Roles {
		if r == v {
			return true
		}
	}
	return false
}

// In reports whether r is one of roles.
func (r Role) In(roles ...Role) bool {
	for _, v := range roles {
		if r == v {
			return true
		}
	}
	return false
}

type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Role         Role      `json:"role" gorm:"not null;default:'customer'"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
