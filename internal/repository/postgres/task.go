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

const taskColumns = `id, circle_id, title, description, created_by_id, assignee_id, due, start,
	repeat_interval, audience_scope, audience_user_ids, completed, completed_at,
	for_minor, ack_required, stage, last_ping_at, acked_by, acked_at, proof_ref,
	reminder_every_seconds, reminder_count, last_reminder_at, created_at, updated_at`

type taskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB) repository.TaskRepository {
	return &taskRepository{db: db}
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task          models.Task
		scope         sql.NullString
		ids           pq.Int64Array
		reminderEvery int64
	)
	if err := row.Scan(
		&task.ID, &task.CircleID, &task.Title, &task.Description, &task.CreatedByID,
		&task.AssigneeID, &task.Due, &task.Start, &task.Repeat, &scope, &ids,
		&task.Completed, &task.CompletedAt, &task.ForMinor, &task.AckRequired,
		&task.Stage, &task.LastPingAt, &task.AckedBy, &task.AckedAt, &task.ProofRef,
		&reminderEvery, &task.ReminderCount, &task.LastReminderAt,
		&task.CreatedAt, &task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	task.Audience = audienceFromColumns(scope, ids)
	task.ReminderEvery = time.Duration(reminderEvery) * time.Second
	return &task, nil
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	query := `INSERT INTO tasks (circle_id, title, description, created_by_id, assignee_id, due, start,
			repeat_interval, audience_scope, audience_user_ids, completed, completed_at,
			for_minor, ack_required, stage, last_ping_at, acked_by, acked_at, proof_ref,
			reminder_every_seconds, reminder_count, last_reminder_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		RETURNING id, created_at, updated_at`
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Repeat == "" {
		task.Repeat = models.TaskRepeatNone
	}
	scope, ids := audienceColumns(task.Audience)
	err := r.db.QueryRowContext(ctx, query,
		task.CircleID, task.Title, task.Description, task.CreatedByID, task.AssigneeID,
		task.Due, task.Start, task.Repeat, scope, ids, task.Completed, task.CompletedAt,
		task.ForMinor, task.AckRequired, task.Stage, task.LastPingAt, task.AckedBy,
		task.AckedAt, task.ProofRef, int64(task.ReminderEvery/time.Second),
		task.ReminderCount, task.LastReminderAt, task.CreatedAt, task.UpdatedAt,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

func (r *taskRepository) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	task, err := scanTask(r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (r *taskRepository) ListByCircle(ctx context.Context, circleID int64) ([]*models.Task, error) {
	return r.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE circle_id = $1 ORDER BY id ASC`, circleID)
}

func (r *taskRepository) ListOpenByCircle(ctx context.Context, circleID int64) ([]*models.Task, error) {
	return r.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE circle_id = $1 AND completed = FALSE ORDER BY id ASC`, circleID)
}

func (r *taskRepository) query(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Update writes every mutable column. The stage column never moves
// backwards, so a stale writer cannot undo an escalation.
func (r *taskRepository) Update(ctx context.Context, task *models.Task) (*models.Task, error) {
	query := `UPDATE tasks SET title=$2, description=$3, assignee_id=$4, due=$5, start=$6,
			repeat_interval=$7, audience_scope=$8, audience_user_ids=$9, completed=$10,
			completed_at=$11, stage=GREATEST(stage, $12), last_ping_at=$13, acked_by=$14,
			acked_at=$15, proof_ref=$16, reminder_every_seconds=$17, reminder_count=$18,
			last_reminder_at=$19, updated_at=$20
		WHERE id=$1 RETURNING stage, updated_at`
	task.UpdatedAt = time.Now()
	scope, ids := audienceColumns(task.Audience)
	err := r.db.QueryRowContext(ctx, query,
		task.ID, task.Title, task.Description, task.AssigneeID, task.Due, task.Start,
		task.Repeat, scope, ids, task.Completed, task.CompletedAt, task.Stage,
		task.LastPingAt, task.AckedBy, task.AckedAt, task.ProofRef,
		int64(task.ReminderEvery/time.Second), task.ReminderCount, task.LastReminderAt,
		task.UpdatedAt,
	).Scan(&task.Stage, &task.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}
