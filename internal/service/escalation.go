package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Kerhoff/carecircle/internal/models"
)

const (
	preNoticeLead  = 15 * time.Minute
	firstPingLead  = 10 * time.Minute
	secondPingLead = 5 * time.Minute
	pingGap        = 5 * time.Minute
)

// nextStage returns the stage a task advances to on this tick, if any.
// Only one step is taken per call.
func nextStage(t *models.Task, now time.Time) (models.EscalationStage, bool) {
	if t.Due == nil {
		return t.Stage, false
	}
	delta := t.Due.Sub(now)
	gateOpen := t.LastPingAt == nil || now.Sub(*t.LastPingAt) >= pingGap

	switch t.Stage {
	case models.StageNone:
		return models.StagePreNotice, delta <= preNoticeLead
	case models.StagePreNotice:
		return models.StageFirstReminder, delta <= firstPingLead && gateOpen
	case models.StageFirstReminder:
		return models.StageSecondReminder, delta <= secondPingLead && gateOpen
	case models.StageSecondReminder:
		return models.StageDisruptive, delta <= 0 && gateOpen
	default:
		return t.Stage, false
	}
}

func (s *Service) escalate(ctx context.Context, t *models.Task, now time.Time) error {
	stage, advance := nextStage(t, now)
	if !advance {
		return nil
	}

	t.Stage = stage
	t.LastPingAt = &now
	if _, err := s.store.Tasks.Update(ctx, t); err != nil {
		return fmt.Errorf("failed to persist stage %d: %w", stage, err)
	}
	s.markStage(t)

	payload := models.TaskStagePayload{TaskID: t.ID, Due: *t.Due, Stage: stage}
	switch stage {
	case models.StagePreNotice:
		s.notify(ctx, t.CircleID, models.KindMinorPre15,
			fmt.Sprintf("⏰ %q is due at %s", t.Title, t.Due.Format("15:04")), payload, t.Audience)
	case models.StageFirstReminder, models.StageSecondReminder:
		payload.Ping = int(stage - models.StagePreNotice)
		s.notify(ctx, t.CircleID, models.KindMinorPing,
			fmt.Sprintf("🔔 Reminder %d: %q is due at %s", payload.Ping, t.Title, t.Due.Format("15:04")),
			payload, t.Audience)
	case models.StageDisruptive:
		s.notify(ctx, t.CircleID, models.KindDisruptiveAlert,
			fmt.Sprintf("🚨 %q is overdue and nobody has acknowledged it", t.Title), payload, t.Audience)
	}

	s.logger.WithField("task_id", t.ID).Debugf("Task escalated to stage %d", stage)
	return nil
}
