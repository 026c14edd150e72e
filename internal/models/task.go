package models

import "time"

// TaskRepeat defines how often a task repeats
type TaskRepeat string

const (
	TaskRepeatNone   TaskRepeat = "none"
	TaskRepeatDaily  TaskRepeat = "daily"
	TaskRepeatWeekly TaskRepeat = "weekly"
)

// Period returns the shift applied to a repeating task's successor, or zero.
func (r TaskRepeat) Period() time.Duration {
	switch r {
	case TaskRepeatDaily:
		return 24 * time.Hour
	case TaskRepeatWeekly:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// EscalationStage tracks how far an ack-required minor task has progressed
// toward a disruptive alert.
type EscalationStage int

const (
	StageNone EscalationStage = iota
	StagePreNotice
	StageFirstReminder
	StageSecondReminder
	StageDisruptive
)

// Task represents a chore or to-do shared within a circle
type Task struct {
	ID          int64      `json:"id" db:"id"`
	CircleID    int64      `json:"circle_id" db:"circle_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	CreatedByID int64      `json:"created_by_id" db:"created_by_id"`
	AssigneeID  *int64     `json:"assignee_id" db:"assignee_id"`
	Due         *time.Time `json:"due" db:"due"`
	Start       *time.Time `json:"start" db:"start"`
	Repeat      TaskRepeat `json:"repeat" db:"repeat_interval"`
	Audience    *Audience  `json:"audience,omitempty"`

	Completed   bool       `json:"completed" db:"completed"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`

	ForMinor    bool            `json:"for_minor" db:"for_minor"`
	AckRequired bool            `json:"ack_required" db:"ack_required"`
	Stage       EscalationStage `json:"stage" db:"stage"`
	LastPingAt  *time.Time      `json:"last_ping_at" db:"last_ping_at"`
	AckedBy     *int64          `json:"acked_by" db:"acked_by"`
	AckedAt     *time.Time      `json:"acked_at" db:"acked_at"`
	ProofRef    string          `json:"proof_ref,omitempty" db:"proof_ref"`

	ReminderEvery  time.Duration `json:"reminder_every" db:"reminder_every"`
	ReminderCount  int           `json:"reminder_count" db:"reminder_count"`
	LastReminderAt *time.Time    `json:"last_reminder_at" db:"last_reminder_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Escalatable returns true if the task follows the staged minor protocol
func (t *Task) Escalatable() bool {
	return t.ForMinor && t.AckRequired
}

// IsAcknowledged returns true once someone acknowledged the task
func (t *Task) IsAcknowledged() bool {
	return t.AckedAt != nil
}

// IsAssignedTo returns true if userID is the task's assignee
func (t *Task) IsAssignedTo(userID int64) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

// IsOverdue returns true if the task has a due time before now
func (t *Task) IsOverdue(now time.Time) bool {
	if t.Due == nil || t.Completed {
		return false
	}
	return now.After(*t.Due)
}

// Successor builds the next instance of a repeating task, or nil if the task
// does not repeat. The copy keeps every field except completion, escalation
// and reminder state, which start over.
func (t *Task) Successor() *Task {
	period := t.Repeat.Period()
	if period == 0 {
		return nil
	}

	next := *t
	next.ID = 0
	if t.Due != nil {
		due := t.Due.Add(period)
		next.Due = &due
	}
	if t.Start != nil {
		start := t.Start.Add(period)
		next.Start = &start
	}
	if t.AssigneeID != nil {
		id := *t.AssigneeID
		next.AssigneeID = &id
	}
	if t.Audience != nil {
		aud := *t.Audience
		aud.UserIDs = append([]int64(nil), t.Audience.UserIDs...)
		next.Audience = &aud
	}

	next.Completed = false
	next.CompletedAt = nil
	next.Stage = StageNone
	next.LastPingAt = nil
	next.AckedBy = nil
	next.AckedAt = nil
	next.ProofRef = ""
	next.ReminderCount = 0
	next.LastReminderAt = nil
	return &next
}
