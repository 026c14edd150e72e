package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kerhoff/carecircle/internal/models"
)

// ErrInvalidTelemetry is returned for samples that cannot be real
var ErrInvalidTelemetry = errors.New("invalid telemetry")

func (s *Service) telemetryUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// RecordLocation stores the latest position of a user's device
func (s *Service) RecordLocation(ctx context.Context, userID int64, lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: position %f,%f", ErrInvalidTelemetry, lat, lon)
	}
	if _, err := s.telemetryUser(ctx, userID); err != nil {
		return err
	}
	loc := models.Location{Lat: lat, Lon: lon, At: s.now()}
	if err := s.store.Users.UpdateLocation(ctx, userID, loc); err != nil {
		return fmt.Errorf("failed to record location for user %d: %w", userID, err)
	}
	return nil
}

// RecordHeartbeat stores the time a user's device last checked in
func (s *Service) RecordHeartbeat(ctx context.Context, userID int64) error {
	if _, err := s.telemetryUser(ctx, userID); err != nil {
		return err
	}
	if err := s.store.Users.UpdateHeartbeat(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("failed to record heartbeat for user %d: %w", userID, err)
	}
	return nil
}

// RecordVital appends a vital reading to the user's active circle
func (s *Service) RecordVital(ctx context.Context, userID int64, kind string, value float64, aud *models.Audience) (*models.VitalReading, error) {
	return s.recordVital(ctx, nil, userID, kind, value, aud)
}

// RecordVitalInCircle appends a vital reading to circleID, which must be
// the user's active circle.
func (s *Service) RecordVitalInCircle(ctx context.Context, circleID, userID int64, kind string, value float64, aud *models.Audience) (*models.VitalReading, error) {
	return s.recordVital(ctx, &circleID, userID, kind, value, aud)
}

func (s *Service) recordVital(ctx context.Context, circleID *int64, userID int64, kind string, value float64, aud *models.Audience) (*models.VitalReading, error) {
	if kind == "" {
		return nil, fmt.Errorf("%w: empty vital kind", ErrInvalidTelemetry)
	}
	user, err := s.telemetryUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.CircleID == nil {
		return nil, ErrNoCircle
	}
	if circleID != nil && *circleID != *user.CircleID {
		return nil, fmt.Errorf("%w: user %d is active in circle %d, not %d", ErrNotActiveCircle, userID, *user.CircleID, *circleID)
	}

	reading := &models.VitalReading{
		CircleID:   *user.CircleID,
		UserID:     userID,
		Kind:       kind,
		Value:      value,
		RecordedAt: s.now(),
		Audience:   aud,
	}
	reading, err = s.store.Vitals.Create(ctx, reading)
	if err != nil {
		return nil, fmt.Errorf("failed to record %s for user %d: %w", kind, userID, err)
	}
	return reading, nil
}
