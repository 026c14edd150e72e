package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/carecircle/internal/models"
	"github.com/Kerhoff/carecircle/internal/repository"
)

type pushRepository struct {
	db *sql.DB
}

// NewPushRepository creates a new push subscription repository
func NewPushRepository(db *sql.DB) repository.PushRepository {
	return &pushRepository{db: db}
}

func (r *pushRepository) Upsert(ctx context.Context, sub *models.PushSubscription) (*models.PushSubscription, error) {
	query := `
		INSERT INTO push_subscriptions (circle_id, user_id, chat_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (circle_id, user_id, chat_id) DO UPDATE SET chat_id = EXCLUDED.chat_id
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		sub.CircleID,
		sub.UserID,
		sub.ChatID,
		time.Now(),
	).Scan(&sub.ID, &sub.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to upsert push subscription: %w", err)
	}

	return sub, nil
}

func (r *pushRepository) ListByCircle(ctx context.Context, circleID int64) ([]*models.PushSubscription, error) {
	query := `
		SELECT id, circle_id, user_id, chat_id, created_at
		FROM push_subscriptions
		WHERE circle_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, circleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.PushSubscription
	for rows.Next() {
		sub := &models.PushSubscription{}
		if err := rows.Scan(&sub.ID, &sub.CircleID, &sub.UserID, &sub.ChatID, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan push subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// NewStore wires every postgres repository over db
func NewStore(db *sql.DB) repository.Store {
	return repository.Store{
		Circles:     NewCircleRepository(db),
		Memberships: NewMembershipRepository(db),
		Users:       NewUserRepository(db),
		Tasks:       NewTaskRepository(db),
		Vitals:      NewVitalRepository(db),
		Geofences:   NewGeofenceRepository(db),
		Containment: NewContainmentRepository(db),
		Push:        NewPushRepository(db),
	}
}
