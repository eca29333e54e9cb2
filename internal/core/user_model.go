package core

import (
	"context"
	"fmt"
	"time"
)

// Role is the authorization level of a user within their company.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleAccountant Role = "accountant"
	RoleAPClerk    Role = "ap_clerk"
	RoleViewer     Role = "viewer"
)

// Permission names a guarded payables operation.
type Permission string

const (
	PermViewReports   Permission = "reports.view"
	PermViewPayables  Permission = "payables.view"
	PermManageBills   Permission = "bills.manage"
	PermPostBills     Permission = "bills.post"
	PermPayBills      Permission = "payments.create"
	PermManageCredits Permission = "credits.manage"
	PermMatch         Permission = "match.apply"
	PermManagePOs     Permission = "procurement.manage"
	PermRetryPostings Permission = "postings.retry"
)

var clerkPermissions = map[Permission]bool{
	PermViewReports:   true,
	PermViewPayables:  true,
	PermManageBills:   true,
	PermPayBills:      true,
	PermManageCredits: true,
	PermMatch:         true,
	PermManagePOs:     true,
}

// Allows reports whether the role grants perm. Unknown roles grant nothing.
func (r Role) Allows(perm Permission) bool {
	switch r {
	case RoleAdmin, RoleAccountant:
		return true
	case RoleAPClerk:
		return clerkPermissions[perm]
	case RoleViewer:
		return perm == PermViewReports
	default:
		return false
	}
}

// Authorize returns ErrInsufficientPermission when role does not grant perm.
func Authorize(role Role, perm Permission) error {
	if !role.Allows(perm) {
		return fmt.Errorf("role %q cannot %s: %w", role, perm, ErrInsufficientPermission)
	}
	return nil
}

// User represents an authenticated system user scoped to a company.
type User struct {
	ID           int
	CompanyID    int
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
}

// UserService provides user lookup operations.
type UserService interface {
	// GetByUsername finds an active user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID returns a user by primary key.
	GetByID(ctx context.Context, userID int) (*User, error)

	// CreateUser stores a user with an already-hashed password.
	CreateUser(ctx context.Context, companyID int, username, email, passwordHash string, role Role) (*User, error)
}
