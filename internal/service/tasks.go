package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/carecircle/internal/models"
)

func (s *Service) loadTask(ctx context.Context, taskID int64) (*models.Task, error) {
	task, err := s.store.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", taskID, err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// AcknowledgeTask records that actorID has seen a task. Only the assignee
// or an owner of the task's circle may acknowledge. Once acknowledged a
// task takes no further part in escalation; a repeated acknowledgment
// returns the task unchanged.
func (s *Service) AcknowledgeTask(ctx context.Context, taskID, actorID int64, proofRef string) (*models.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	role, member := s.members.RoleOf(task.CircleID, actorID)
	if !member || (!task.IsAssignedTo(actorID) && role != models.RoleOwner) {
		return nil, ErrForbidden
	}
	if task.Completed {
		return nil, ErrAlreadyCompleted
	}
	if task.IsAcknowledged() {
		return task, nil
	}

	now := s.now()
	s.clampStage(task)
	if task.Stage < models.StageFirstReminder {
		task.Stage = models.StageFirstReminder
	}
	task.AckedBy = &actorID
	task.AckedAt = &now
	if proofRef != "" {
		task.ProofRef = proofRef
	}

	task, err = s.store.Tasks.Update(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to acknowledge task %d: %w", taskID, err)
	}
	delete(s.stageMarks, task.ID)

	s.notify(ctx, task.CircleID, models.KindTaskAck,
		fmt.Sprintf("✅ %s acknowledged %q", s.displayName(ctx, actorID), task.Title),
		models.TaskAckPayload{TaskID: task.ID, UserID: actorID, At: now, ProofRef: task.ProofRef},
		task.Audience)

	s.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"user_id": actorID,
	}).Info("Task acknowledged")
	return task, nil
}

// CompleteTask marks a task done. The assignee, the creator or an owner may
// complete it. A repeating task spawns its next instance, which is
// returned as the second value.
func (s *Service) CompleteTask(ctx context.Context, taskID, actorID int64) (*models.Task, *models.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}

	role, member := s.members.RoleOf(task.CircleID, actorID)
	allowed := task.IsAssignedTo(actorID) || task.CreatedByID == actorID || role == models.RoleOwner
	if !member || !allowed {
		return nil, nil, ErrForbidden
	}
	if task.Completed {
		return nil, nil, ErrAlreadyCompleted
	}

	now := s.now()
	task.Completed = true
	task.CompletedAt = &now
	task, err = s.store.Tasks.Update(ctx, task)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to complete task %d: %w", taskID, err)
	}
	delete(s.stageMarks, task.ID)

	log := s.logger.WithFields(logrus.Fields{"task_id": task.ID, "user_id": actorID})

	next := task.Successor()
	if next == nil {
		log.Info("Task completed")
		return task, nil, nil
	}
	next, err = s.store.Tasks.Create(ctx, next)
	if err != nil {
		return task, nil, fmt.Errorf("failed to create next %s instance of task %d: %w", task.Repeat, task.ID, err)
	}
	log.WithField("next_task_id", next.ID).Infof("Task completed, next %s instance created", task.Repeat)
	return task, next, nil
}
