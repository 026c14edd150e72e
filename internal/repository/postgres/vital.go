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

type vitalRepository struct {
	db *sql.DB
}

// NewVitalRepository creates a new vital reading repository
func NewVitalRepository(db *sql.DB) repository.VitalRepository {
	return &vitalRepository{db: db}
}

func (r *vitalRepository) Create(ctx context.Context, reading *models.VitalReading) (*models.VitalReading, error) {
	query := `
		INSERT INTO vital_readings (circle_id, user_id, kind, value, recorded_at, audience_scope, audience_user_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	if reading.RecordedAt.IsZero() {
		reading.RecordedAt = time.Now()
	}
	scope, ids := audienceColumns(reading.Audience)

	err := r.db.QueryRowContext(ctx, query,
		reading.CircleID,
		reading.UserID,
		reading.Kind,
		reading.Value,
		reading.RecordedAt,
		scope,
		ids,
	).Scan(&reading.ID)

	if err != nil {
		return nil, fmt.Errorf("failed to create vital reading: %w", err)
	}

	return reading, nil
}

func (r *vitalRepository) ListSince(ctx context.Context, circleID int64, since time.Time) ([]*models.VitalReading, error) {
	query := `
		SELECT id, circle_id, user_id, kind, value, recorded_at, audience_scope, audience_user_ids
		FROM vital_readings
		WHERE circle_id = $1 AND recorded_at >= $2
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, circleID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query vital readings: %w", err)
	}
	defer rows.Close()

	var readings []*models.VitalReading
	for rows.Next() {
		var (
			reading models.VitalReading
			scope   sql.NullString
			ids     pq.Int64Array
		)
		if err := rows.Scan(
			&reading.ID,
			&reading.CircleID,
			&reading.UserID,
			&reading.Kind,
			&reading.Value,
			&reading.RecordedAt,
			&scope,
			&ids,
		); err != nil {
			return nil, fmt.Errorf("failed to scan vital reading: %w", err)
		}
		reading.Audience = audienceFromColumns(scope, ids)
		readings = append(readings, &reading)
	}

	return readings, rows.Err()
}

func (r *vitalRepository) GetThreshold(ctx context.Context, circleID int64, kind string) (*models.VitalThreshold, error) {
	query := `
		SELECT circle_id, kind, min_value, max_value
		FROM vital_thresholds
		WHERE circle_id = $1 AND kind = $2`

	threshold := &models.VitalThreshold{}
	err := r.db.QueryRowContext(ctx, query, circleID, kind).Scan(
		&threshold.CircleID,
		&threshold.Kind,
		&threshold.Min,
		&threshold.Max,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vital threshold: %w", err)
	}

	return threshold, nil
}

func (r *vitalRepository) UpsertThreshold(ctx context.Context, threshold models.VitalThreshold) error {
	query := `
		INSERT INTO vital_thresholds (circle_id, kind, min_value, max_value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (circle_id, kind) DO UPDATE SET min_value = $3, max_value = $4`

	_, err := r.db.ExecContext(ctx, query, threshold.CircleID, threshold.Kind, threshold.Min, threshold.Max)
	if err != nil {
		return fmt.Errorf("failed to upsert vital threshold: %w", err)
	}

	return nil
}
