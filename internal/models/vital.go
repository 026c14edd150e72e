package models

import "time"

// VitalReading is one sensor sample for a user
type VitalReading struct {
	ID         int64     `json:"id" db:"id"`
	CircleID   int64     `json:"circle_id" db:"circle_id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	Kind       string    `json:"kind" db:"kind"`
	Value      float64   `json:"value" db:"value"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
	Audience   *Audience `json:"audience,omitempty"`
}

// VitalThreshold holds the bounds for one vital kind in a circle
type VitalThreshold struct {
	CircleID int64    `json:"circle_id" db:"circle_id"`
	Kind     string   `json:"kind" db:"kind"`
	Min      *float64 `json:"min,omitempty" db:"min_value"`
	Max      *float64 `json:"max,omitempty" db:"max_value"`
}

// Breached returns true if value falls outside either configured bound
func (t *VitalThreshold) Breached(value float64) bool {
	if t.Min != nil && value < *t.Min {
		return true
	}
	if t.Max != nil && value > *t.Max {
		return true
	}
	return false
}
