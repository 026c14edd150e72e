package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Kerhoff/carecircle/internal/models"
	"github.com/Kerhoff/carecircle/internal/repository"
)

type geofenceRepository struct {
	db *sql.DB
}

// NewGeofenceRepository creates a new geofence repository
func NewGeofenceRepository(db *sql.DB) repository.GeofenceRepository {
	return &geofenceRepository{db: db}
}

func (r *geofenceRepository) Create(ctx context.Context, fence *models.Geofence) (*models.Geofence, error) {
	query := `
		INSERT INTO geofences (circle_id, name, lat, lon, radius_meters, audience_scope, audience_user_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	scope, ids := audienceColumns(fence.Audience)
	err := r.db.QueryRowContext(ctx, query,
		fence.CircleID,
		fence.Name,
		fence.Lat,
		fence.Lon,
		fence.RadiusMeters,
		scope,
		ids,
	).Scan(&fence.ID)

	if err != nil {
		return nil, fmt.Errorf("failed to create geofence: %w", err)
	}

	return fence, nil
}

func (r *geofenceRepository) ListByCircle(ctx context.Context, circleID int64) ([]*models.Geofence, error) {
	query := `
		SELECT id, circle_id, name, lat, lon, radius_meters, audience_scope, audience_user_ids
		FROM geofences
		WHERE circle_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, circleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query geofences: %w", err)
	}
	defer rows.Close()

	var fences []*models.Geofence
	for rows.Next() {
		var (
			fence models.Geofence
			scope sql.NullString
			ids   pq.Int64Array
		)
		if err := rows.Scan(
			&fence.ID,
			&fence.CircleID,
			&fence.Name,
			&fence.Lat,
			&fence.Lon,
			&fence.RadiusMeters,
			&scope,
			&ids,
		); err != nil {
			return nil, fmt.Errorf("failed to scan geofence: %w", err)
		}
		fence.Audience = audienceFromColumns(scope, ids)
		fences = append(fences, &fence)
	}

	return fences, rows.Err()
}

type containmentRepository struct {
	db *sql.DB
}

// NewContainmentRepository creates a new geofence containment repository
func NewContainmentRepository(db *sql.DB) repository.ContainmentRepository {
	return &containmentRepository{db: db}
}

func (r *containmentRepository) Get(ctx context.Context, fenceID, userID int64) (bool, error) {
	var inside bool
	err := r.db.QueryRowContext(ctx,
		`SELECT inside FROM geofence_containment WHERE geofence_id = $1 AND user_id = $2`,
		fenceID, userID,
	).Scan(&inside)

	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to get containment flag: %w", err)
	}

	return inside, nil
}

func (r *containmentRepository) Set(ctx context.Context, fenceID, userID int64, inside bool) error {
	query := `
		INSERT INTO geofence_containment (geofence_id, user_id, inside, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (geofence_id, user_id) DO UPDATE SET inside = $3, updated_at = $4`

	if _, err := r.db.ExecContext(ctx, query, fenceID, userID, inside, time.Now()); err != nil {
		return fmt.Errorf("failed to set containment flag: %w", err)
	}

	return nil
}
