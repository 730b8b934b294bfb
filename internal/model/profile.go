package model

import (
	"time"

	"github.com/google/uuid"
)

// Role enumerates the two portal roles.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// DefaultArea returns the landing route of a role.
func (r Role) DefaultArea() string {
	if r == RoleAdmin {
		return "/admin"
	}
	return "/dashboard"
}

// Profile is an authenticated portal user.
type Profile struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	FullName          *string   `json:"full_name"`
	Username          *string   `json:"username"`
	Role              Role      `json:"role"`
	PurchasedPackages []string  `json:"purchased_packages"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// LoginRequest is the payload for password authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}
