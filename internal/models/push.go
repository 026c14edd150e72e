package models

import "time"

// PushSubscription is a registered push endpoint for a user in a circle.
// ChatID is the Telegram chat the bot delivers to.
type PushSubscription struct {
	ID        int64     `json:"id" db:"id"`
	CircleID  int64     `json:"circle_id" db:"circle_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	ChatID    int64     `json:"chat_id" db:"chat_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
