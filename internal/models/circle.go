package models

import "time"

// Role is a member's standing inside a circle
type Role string

const (
	RoleOwner     Role = "owner"
	RoleFamily    Role = "family"
	RoleChild     Role = "child"
	RoleRelative  Role = "relative"
	RoleCaregiver Role = "caregiver"
)

// Circle represents a household namespace
type Circle struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Membership binds a user to a circle with a role. ExpiresAt is set for
// time-boxed caregiver access.
type Membership struct {
	CircleID  int64      `json:"circle_id" db:"circle_id"`
	UserID    int64      `json:"user_id" db:"user_id"`
	Role      Role       `json:"role" db:"role"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	JoinedAt  time.Time  `json:"joined_at" db:"joined_at"`
}

// ActiveAt reports whether the membership is in force at t. An expired
// membership is kept but treated as absent.
func (m *Membership) ActiveAt(t time.Time) bool {
	return m.ExpiresAt == nil || m.ExpiresAt.After(t)
}
