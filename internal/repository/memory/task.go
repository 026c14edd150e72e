package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Kerhoff/carecircle/internal/models"
)

type taskRepository struct {
	db *DB
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t := cloneTask(task)
	t.ID = r.db.nextID()
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Repeat == "" {
		t.Repeat = models.TaskRepeatNone
	}
	r.db.tasks[t.ID] = t
	return cloneTask(t), nil
}

func (r *taskRepository) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	t, ok := r.db.tasks[id]
	if !ok {
		return nil, nil
	}
	return cloneTask(t), nil
}

func (r *taskRepository) ListByCircle(ctx context.Context, circleID int64) ([]*models.Task, error) {
	return r.filter(func(t *models.Task) bool { return t.CircleID == circleID }), nil
}

func (r *taskRepository) ListOpenByCircle(ctx context.Context, circleID int64) ([]*models.Task, error) {
	return r.filter(func(t *models.Task) bool { return t.CircleID == circleID && !t.Completed }), nil
}

func (r *taskRepository) filter(keep func(*models.Task) bool) []*models.Task {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*models.Task
	for _, t := range r.db.tasks {
		if keep(t) {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) (*models.Task, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.tasks[task.ID]
	if !ok {
		return nil, fmt.Errorf("task %d not found", task.ID)
	}
	t := cloneTask(task)
	// stage never moves backwards
	if stored.Stage > t.Stage {
		t.Stage = stored.Stage
	}
	t.UpdatedAt = time.Now()
	r.db.tasks[t.ID] = t
	return cloneTask(t), nil
}
