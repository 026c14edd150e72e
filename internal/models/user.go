package models

import "time"

// Location is a single position sample
type Location struct {
	Lat float64   `json:"lat"`
	Lon float64   `json:"lon"`
	At  time.Time `json:"at"`
}

// User represents a person in the system together with the latest telemetry
// their devices reported.
type User struct {
	ID              int64      `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	Phone           string     `json:"phone,omitempty" db:"phone"`
	Email           string     `json:"email,omitempty" db:"email"`
	TelegramID      int64      `json:"telegram_id,omitempty" db:"telegram_id"`
	CircleID        *int64     `json:"circle_id,omitempty" db:"circle_id"`
	LastLocation    *Location  `json:"last_location,omitempty"`
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at,omitempty" db:"last_heartbeat_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// DisplayName returns the best display name for the user
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return "someone"
}

// InCircle returns true if the user's active circle is circleID
func (u *User) InCircle(circleID int64) bool {
	return u.CircleID != nil && *u.CircleID == circleID
}
