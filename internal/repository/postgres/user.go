package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/carecircle/internal/models"
	"github.com/Kerhoff/carecircle/internal/repository"
)

const userColumns = `id, name, phone, email, telegram_id, circle_id,
	last_lat, last_lon, last_location_at, last_heartbeat_at, created_at`

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user       models.User
		telegramID sql.NullInt64
		lat, lon   sql.NullFloat64
		locAt      sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Phone,
		&user.Email,
		&telegramID,
		&user.CircleID,
		&lat,
		&lon,
		&locAt,
		&user.LastHeartbeatAt,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}

	user.TelegramID = telegramID.Int64
	if lat.Valid && lon.Valid && locAt.Valid {
		user.LastLocation = &models.Location{Lat: lat.Float64, Lon: lon.Float64, At: locAt.Time}
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (name, phone, email, telegram_id, circle_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	user.CreatedAt = time.Now()
	telegramID := sql.NullInt64{Int64: user.TelegramID, Valid: user.TelegramID != 0}

	err := r.db.QueryRowContext(ctx, query,
		user.Name,
		user.Phone,
		user.Email,
		telegramID,
		user.CircleID,
		user.CreatedAt,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by telegram ID: %w", err)
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context) ([]*models.User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
}

func (r *userRepository) ListByCircle(ctx context.Context, circleID int64) ([]*models.User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users WHERE circle_id = $1 ORDER BY id ASC`, circleID)
}

func (r *userRepository) query(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *userRepository) UpdateLocation(ctx context.Context, userID int64, loc models.Location) error {
	query := `UPDATE users SET last_lat = $2, last_lon = $3, last_location_at = $4 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, userID, loc.Lat, loc.Lon, loc.At)
	if err != nil {
		return fmt.Errorf("failed to update user location: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d not found", userID)
	}
	return nil
}

func (r *userRepository) UpdateHeartbeat(ctx context.Context, userID int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET last_heartbeat_at = $2 WHERE id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("failed to update user heartbeat: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d not found", userID)
	}
	return nil
}
