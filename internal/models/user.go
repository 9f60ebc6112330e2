package models

import (
	"fmt"
	"time"
)

// Role represents the role a user holds on the platform
type Role string

const (
	RoleUser    Role = "user"
	RoleCreator Role = "creator"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleCreator, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole converts a raw string into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// User represents a user in the system, keyed by email
type User struct {
	Email       string    `json:"email" db:"email"`
	Role        Role      `json:"role" db:"role"`
	DisplayName string    `json:"displayName" db:"display_name"`
	PhotoURL    string    `json:"photoURL" db:"photo_url"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// CreatorRequestStatus is the review state of a creator request
type CreatorRequestStatus string

const (
	CreatorRequestPending  CreatorRequestStatus = "pending"
	CreatorRequestApproved CreatorRequestStatus = "Approved"
	CreatorRequestRejected CreatorRequestStatus = "Rejected"
)

// Valid reports whether s is one of the known request states
func (s CreatorRequestStatus) Valid() bool {
	switch s {
	case CreatorRequestPending, CreatorRequestApproved, CreatorRequestRejected:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether an admin decision may move the request to next.
// Only pending requests can be decided, and only to Approved or Rejected.
func (s CreatorRequestStatus) CanTransitionTo(next CreatorRequestStatus) bool {
	switch s {
	case CreatorRequestPending:
		return next == CreatorRequestApproved || next == CreatorRequestRejected
	case CreatorRequestApproved, CreatorRequestRejected:
		return false
	default:
		return false
	}
}

// CreatorRequest is a user's ask to be promoted to the creator role
type CreatorRequest struct {
	ID          string               `json:"id" db:"id"`
	Email       string               `json:"email" db:"email"`
	DisplayName string               `json:"displayName" db:"display_name"`
	PhotoURL    string               `json:"photoURL" db:"photo_url"`
	Status      CreatorRequestStatus `json:"status" db:"status"`
	CreatedAt   time.Time            `json:"createdAt" db:"created_at"`
	DecidedAt   *time.Time           `json:"decidedAt,omitempty" db:"decided_at"`
}
