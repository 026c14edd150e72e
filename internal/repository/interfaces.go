package repository

import (
	"context"
	"time"

	"github.com/Kerhoff/carecircle/internal/models"
)

// CircleRepository defines the interface for circle data operations
type CircleRepository interface {
	Create(ctx context.Context, circle *models.Circle) (*models.Circle, error)
	GetByID(ctx context.Context, id int64) (*models.Circle, error)
	List(ctx context.Context) ([]*models.Circle, error)
}

// MembershipRepository persists the rows the membership registry is
// hydrated from.
type MembershipRepository interface {
	List(ctx context.Context) ([]models.Membership, error)
	Upsert(ctx context.Context, m models.Membership) error
	Delete(ctx context.Context, circleID, userID int64) error
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	ListByCircle(ctx context.Context, circleID int64) ([]*models.User, error)
	UpdateLocation(ctx context.Context, userID int64, loc models.Location) error
	UpdateHeartbeat(ctx context.Context, userID int64, at time.Time) error
}

// TaskRepository defines the interface for task data operations
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	ListByCircle(ctx context.Context, circleID int64) ([]*models.Task, error)
	ListOpenByCircle(ctx context.Context, circleID int64) ([]*models.Task, error)
	Update(ctx context.Context, task *models.Task) (*models.Task, error)
}

// VitalRepository defines the interface for vital readings and thresholds
type VitalRepository interface {
	Create(ctx context.Context, reading *models.VitalReading) (*models.VitalReading, error)
	ListSince(ctx context.Context, circleID int64, since time.Time) ([]*models.VitalReading, error)
	GetThreshold(ctx context.Context, circleID int64, kind string) (*models.VitalThreshold, error)
	UpsertThreshold(ctx context.Context, threshold models.VitalThreshold) error
}

// GeofenceRepository defines the interface for geofence operations
type GeofenceRepository interface {
	Create(ctx context.Context, fence *models.Geofence) (*models.Geofence, error)
	ListByCircle(ctx context.Context, circleID int64) ([]*models.Geofence, error)
}

// ContainmentRepository stores the per-(fence, user) containment flag.
// An unknown pair reads as false.
type ContainmentRepository interface {
	Get(ctx context.Context, fenceID, userID int64) (bool, error)
	Set(ctx context.Context, fenceID, userID int64, inside bool) error
}

// PushRepository defines the interface for push endpoint operations
type PushRepository interface {
	Upsert(ctx context.Context, sub *models.PushSubscription) (*models.PushSubscription, error)
	ListByCircle(ctx context.Context, circleID int64) ([]*models.PushSubscription, error)
}

// Store groups every repository the engine reads and writes.
type Store struct {
	Circles     CircleRepository
	Memberships MembershipRepository
	Users       UserRepository
	Tasks       TaskRepository
	Vitals      VitalRepository
	Geofences   GeofenceRepository
	Containment ContainmentRepository
	Push        PushRepository
}
