package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Kerhoff/carecircle/internal/models"
)

const (
	vitalsFreshness = 15 * time.Minute
	inactivityAfter = 10 * time.Minute
)

// checkGeofences fires on containment edges only. The flag of a pair that
// was never observed reads as outside.
func (s *Service) checkGeofences(ctx context.Context, circleID int64, users []*models.User) error {
	fences, err := s.store.Geofences.ListByCircle(ctx, circleID)
	if err != nil {
		return fmt.Errorf("circle %d: failed to list geofences: %w", circleID, err)
	}
	if len(fences) == 0 {
		return nil
	}

	var result *multierror.Error
	for _, u := range users {
		if u.LastLocation == nil || !s.members.IsMember(circleID, u.ID) {
			continue
		}
		for _, f := range fences {
			inside := f.Contains(u.LastLocation.Lat, u.LastLocation.Lon)
			was, err := s.store.Containment.Get(ctx, f.ID, u.ID)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("geofence %d user %d: %w", f.ID, u.ID, err))
				continue
			}
			if inside == was {
				continue
			}
			if err := s.store.Containment.Set(ctx, f.ID, u.ID, inside); err != nil {
				result = multierror.Append(result, fmt.Errorf("geofence %d user %d: %w", f.ID, u.ID, err))
				continue
			}

			payload := models.GeofencePayload{FenceID: f.ID, Fence: f.Name, UserID: u.ID}
			if inside {
				s.notify(ctx, circleID, models.KindGeofenceEnter,
					fmt.Sprintf("📍 %s arrived at %s", u.DisplayName(), f.Name), payload, f.Audience)
			} else {
				s.notify(ctx, circleID, models.KindGeofenceExit,
					fmt.Sprintf("📍 %s left %s", u.DisplayName(), f.Name), payload, f.Audience)
			}
		}
	}
	return result.ErrorOrNil()
}

// checkVitals alerts on every fresh reading outside its threshold, on every
// tick the reading stays fresh.
func (s *Service) checkVitals(ctx context.Context, circleID int64, now time.Time) error {
	readings, err := s.store.Vitals.ListSince(ctx, circleID, now.Add(-vitalsFreshness))
	if err != nil {
		return fmt.Errorf("circle %d: failed to list vitals: %w", circleID, err)
	}

	var result *multierror.Error
	thresholds := make(map[string]*models.VitalThreshold)
	for _, r := range readings {
		th, cached := thresholds[r.Kind]
		if !cached {
			th, err = s.store.Vitals.GetThreshold(ctx, circleID, r.Kind)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("vital %d: %w", r.ID, err))
				continue
			}
			thresholds[r.Kind] = th
		}
		if th == nil || !th.Breached(r.Value) {
			continue
		}

		s.notify(ctx, circleID, models.KindVitalsAlert,
			fmt.Sprintf("❤️ %s's %s reading is out of range: %g", s.displayName(ctx, r.UserID), r.Kind, r.Value),
			models.VitalsPayload{Kind: r.Kind, Value: r.Value, UserID: r.UserID, VitalID: r.ID},
			r.Audience)
	}
	return result.ErrorOrNil()
}

// checkHeartbeats alerts on every tick a member's device stays silent
func (s *Service) checkHeartbeats(ctx context.Context, circleID int64, users []*models.User, now time.Time) error {
	for _, u := range users {
		if u.LastHeartbeatAt == nil || !s.members.IsMember(circleID, u.ID) {
			continue
		}
		silent := now.Sub(*u.LastHeartbeatAt)
		if silent < inactivityAfter {
			continue
		}
		s.notify(ctx, circleID, models.KindInactivity,
			fmt.Sprintf("💤 No heartbeat from %s for %d minutes", u.DisplayName(), int(silent.Minutes())),
			models.InactivityPayload{UserID: u.ID, LastSeen: *u.LastHeartbeatAt},
			nil)
	}
	return nil
}
