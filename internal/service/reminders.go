package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Kerhoff/carecircle/internal/models"
)

const (
	defaultReminderEvery = 15 * time.Minute
	escalateAtCount      = 3
	disruptAtCount       = 5
)

// remind runs the generic reminder counter for a task outside the staged
// minor protocol.
func (s *Service) remind(ctx context.Context, t *models.Task, now time.Time) error {
	if t.ReminderEvery <= 0 && !t.IsOverdue(now) {
		return nil
	}
	every := t.ReminderEvery
	if every <= 0 {
		every = defaultReminderEvery
	}
	if t.LastReminderAt != nil && now.Sub(*t.LastReminderAt) < every {
		return nil
	}

	t.ReminderCount++
	t.LastReminderAt = &now
	if _, err := s.store.Tasks.Update(ctx, t); err != nil {
		return fmt.Errorf("failed to persist reminder count: %w", err)
	}

	payload := models.ReminderPayload{TaskID: t.ID, Count: t.ReminderCount, Due: t.Due}
	s.notify(ctx, t.CircleID, models.KindReminder,
		fmt.Sprintf("⏰ Reminder: %q", t.Title), payload, t.Audience)

	switch t.ReminderCount {
	case escalateAtCount:
		s.notify(ctx, t.CircleID, models.KindEscalation,
			fmt.Sprintf("⚠️ %q is still open after %d reminders", t.Title, t.ReminderCount), payload, t.Audience)
	case disruptAtCount:
		s.notify(ctx, t.CircleID, models.KindDisruptiveAlert,
			fmt.Sprintf("🚨 %q is still open after %d reminders", t.Title, t.ReminderCount), payload, t.Audience)
	}
	return nil
}
