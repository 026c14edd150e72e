package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/carecircle/internal/models"
)

// StartScheduler runs a background loop that evaluates every monitor once
// per interval. It blocks until the context is cancelled, so it should be
// launched in a separate goroutine. A tick in progress always runs to
// completion.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Infof("Scheduler started (interval %s)", interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			if err := s.Tick(context.WithoutCancel(ctx)); err != nil {
				s.logger.WithError(err).Warn("Tick skipped some units")
			}
		}
	}
}

// Tick evaluates escalation, reminders, geofences, vitals and heartbeats
// for every circle. Failures are confined to the unit that produced them;
// the returned error lists every skipped unit.
func (s *Service) Tick(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	started := time.Now()
	defer func() { s.metrics.TickDuration.Observe(time.Since(started).Seconds()) }()

	now := s.now()
	circles, err := s.store.Circles.List(ctx)
	if err != nil {
		s.metrics.TickErrors.Inc()
		return fmt.Errorf("failed to list circles: %w", err)
	}

	var result *multierror.Error
	for _, c := range circles {
		result = multierror.Append(result, s.tickCircle(ctx, c.ID, now))
	}

	if err := result.ErrorOrNil(); err != nil {
		s.metrics.TickErrors.Add(float64(len(result.Errors)))
		return err
	}
	return nil
}

func (s *Service) tickCircle(ctx context.Context, circleID int64, now time.Time) error {
	var result *multierror.Error

	tasks, err := s.store.Tasks.ListOpenByCircle(ctx, circleID)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("circle %d: failed to list tasks: %w", circleID, err))
	}
	for _, t := range tasks {
		if err := s.evaluateTask(ctx, t, now); err != nil {
			result = multierror.Append(result, fmt.Errorf("task %d: %w", t.ID, err))
		}
	}

	users, err := s.store.Users.ListByCircle(ctx, circleID)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("circle %d: failed to list users: %w", circleID, err))
	} else {
		result = multierror.Append(result,
			s.checkGeofences(ctx, circleID, users),
			s.checkHeartbeats(ctx, circleID, users, now),
		)
	}

	result = multierror.Append(result, s.checkVitals(ctx, circleID, now))
	return result.ErrorOrNil()
}

// evaluateTask runs the one state machine that owns the task. Escalatable
// tasks never take the generic reminder path.
func (s *Service) evaluateTask(ctx context.Context, t *models.Task, now time.Time) error {
	if t.Completed || t.IsAcknowledged() {
		return nil
	}
	s.clampStage(t)
	if t.Escalatable() {
		return s.escalate(ctx, t, now)
	}
	return s.remind(ctx, t, now)
}

// clampStage enforces the high-water mark of a task's stage. Must be called
// with writeMu held.
func (s *Service) clampStage(t *models.Task) {
	mark, seen := s.stageMarks[t.ID]
	switch {
	case seen && t.Stage < mark:
		s.logger.WithFields(logrus.Fields{
			"task_id":  t.ID,
			"stored":   t.Stage,
			"expected": mark,
		}).Warn("Task stage went backwards, clamping")
		t.Stage = mark
	case t.Stage > mark:
		s.stageMarks[t.ID] = t.Stage
	}
}

func (s *Service) markStage(t *models.Task) {
	if t.Stage > s.stageMarks[t.ID] {
		s.stageMarks[t.ID] = t.Stage
	}
}
