package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/carecircle/internal/models"
	"github.com/Kerhoff/carecircle/internal/repository"
)

type circleRepository struct {
	db *sql.DB
}

// NewCircleRepository creates a new circle repository
func NewCircleRepository(db *sql.DB) repository.CircleRepository {
	return &circleRepository{db: db}
}

func (r *circleRepository) Create(ctx context.Context, circle *models.Circle) (*models.Circle, error) {
	query := `
		INSERT INTO circles (name, created_at)
		VALUES ($1, $2)
		RETURNING id, created_at`

	circle.CreatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		circle.Name,
		circle.CreatedAt,
	).Scan(&circle.ID, &circle.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create circle: %w", err)
	}

	return circle, nil
}

func (r *circleRepository) GetByID(ctx context.Context, id int64) (*models.Circle, error) {
	query := `
		SELECT id, name, created_at
		FROM circles
		WHERE id = $1`

	circle := &models.Circle{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&circle.ID,
		&circle.Name,
		&circle.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get circle by ID: %w", err)
	}

	return circle, nil
}

func (r *circleRepository) List(ctx context.Context) ([]*models.Circle, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM circles ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query circles: %w", err)
	}
	defer rows.Close()

	var circles []*models.Circle
	for rows.Next() {
		circle := &models.Circle{}
		if err := rows.Scan(&circle.ID, &circle.Name, &circle.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan circle: %w", err)
		}
		circles = append(circles, circle)
	}

	return circles, rows.Err()
}

type membershipRepository struct {
	db *sql.DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *sql.DB) repository.MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) List(ctx context.Context) ([]models.Membership, error) {
	query := `
		SELECT circle_id, user_id, role, expires_at, joined_at
		FROM circle_members
		ORDER BY joined_at ASC, circle_id ASC, user_id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query circle members: %w", err)
	}
	defer rows.Close()

	var members []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.CircleID, &m.UserID, &m.Role, &m.ExpiresAt, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan circle member: %w", err)
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

func (r *membershipRepository) Upsert(ctx context.Context, m models.Membership) error {
	query := `
		INSERT INTO circle_members (circle_id, user_id, role, expires_at, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (circle_id, user_id) DO UPDATE SET role = $3, expires_at = $4`

	_, err := r.db.ExecContext(ctx, query, m.CircleID, m.UserID, m.Role, m.ExpiresAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert circle member: %w", err)
	}

	return nil
}

func (r *membershipRepository) Delete(ctx context.Context, circleID, userID int64) error {
	query := `DELETE FROM circle_members WHERE circle_id = $1 AND user_id = $2`

	if _, err := r.db.ExecContext(ctx, query, circleID, userID); err != nil {
		return fmt.Errorf("failed to remove circle member: %w", err)
	}

	return nil
}
