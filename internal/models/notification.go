package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the event kind string consumed verbatim by clients
type Kind string

const (
	KindMinorPre15      Kind = "minor_pre15"
	KindMinorPing       Kind = "minor_ping"
	KindDisruptiveAlert Kind = "disruptive_alert"
	KindReminder        Kind = "reminder"
	KindEscalation      Kind = "escalation"
	KindTaskAck         Kind = "task_ack"
	KindGeofenceEnter   Kind = "geofence_enter"
	KindGeofenceExit    Kind = "geofence_exit"
	KindVitalsAlert     Kind = "vitals_alert"
	KindInactivity      Kind = "inactivity"
)

// Payload is the structured extra data of a notification. The set of
// implementations is closed; each kind uses exactly one of them.
type Payload interface {
	payload()
}

// TaskStagePayload accompanies minor_pre15, minor_ping and the escalation
// variant of disruptive_alert.
type TaskStagePayload struct {
	TaskID int64           `json:"taskId"`
	Due    time.Time       `json:"due"`
	Stage  EscalationStage `json:"stage"`
	Ping   int             `json:"ping,omitempty"`
}

// ReminderPayload accompanies reminder, escalation and the reminder-counter
// variant of disruptive_alert.
type ReminderPayload struct {
	TaskID int64      `json:"taskId"`
	Count  int        `json:"count"`
	Due    *time.Time `json:"due,omitempty"`
}

// TaskAckPayload accompanies task_ack
type TaskAckPayload struct {
	TaskID   int64     `json:"taskId"`
	UserID   int64     `json:"userId"`
	At       time.Time `json:"at"`
	ProofRef string    `json:"proofRef,omitempty"`
}

// GeofencePayload accompanies geofence_enter and geofence_exit
type GeofencePayload struct {
	FenceID int64  `json:"fenceId"`
	Fence   string `json:"fence"`
	UserID  int64  `json:"userId"`
}

// VitalsPayload accompanies vitals_alert. The vital kind is encoded as
// vitalKind so it does not shadow the event kind.
type VitalsPayload struct {
	Kind    string  `json:"vitalKind"`
	Value   float64 `json:"value"`
	UserID  int64   `json:"userId"`
	VitalID int64   `json:"vitalId"`
}

// InactivityPayload accompanies inactivity
type InactivityPayload struct {
	UserID   int64     `json:"userId"`
	LastSeen time.Time `json:"lastSeen"`
}

func (TaskStagePayload) payload()  {}
func (ReminderPayload) payload()   {}
func (TaskAckPayload) payload()    {}
func (GeofencePayload) payload()   {}
func (VitalsPayload) payload()     {}
func (InactivityPayload) payload() {}

// Notification is one event to be delivered across every channel of a
// circle. Audience, when set, is the audience of the record the event is
// about and limits who may receive it.
type Notification struct {
	CircleID int64
	Kind     Kind
	Message  string
	Payload  Payload
	Audience *Audience
	At       time.Time
}

// NewNotification builds a notification stamped with at.
func NewNotification(circleID int64, kind Kind, message string, payload Payload, aud *Audience, at time.Time) Notification {
	return Notification{
		CircleID: circleID,
		Kind:     kind,
		Message:  message,
		Payload:  payload,
		Audience: aud,
		At:       at,
	}
}

// MarshalJSON encodes the wire event {kind, message, ...payload}.
func (n Notification) MarshalJSON() ([]byte, error) {
	event := map[string]any{}
	if n.Payload != nil {
		raw, err := json.Marshal(n.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", n.Kind, err)
		}
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, fmt.Errorf("failed to flatten %s payload: %w", n.Kind, err)
		}
	}
	event["kind"] = n.Kind
	event["message"] = n.Message
	return json.Marshal(event)
}
