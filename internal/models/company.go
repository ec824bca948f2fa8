package models

import "time"

// CompanyRole is a user's role within a company
type CompanyRole string

const (
	RoleOwner  CompanyRole = "OWNER"
	RoleAdmin  CompanyRole = "ADMIN"
	RoleMember CompanyRole = "MEMBER"
)

// Company owns subscriptions, integrations and notifications
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User represents a user in the system
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Not serialized
	CreatedAt    time.Time `json:"created_at"`
}

// CompanyUser links a user to a company with a role
type CompanyUser struct {
	CompanyID string      `json:"company_id"`
	UserID    string      `json:"user_id"`
	Role      CompanyRole `json:"role"`
}
