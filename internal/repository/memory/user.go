package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Kerhoff/carecircle/internal/models"
)

type userRepository struct {
	db *DB
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u := cloneUser(user)
	u.ID = r.db.nextID()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	r.db.users[u.ID] = u
	return cloneUser(u), nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	u, ok := r.db.users[id]
	if !ok {
		return nil, nil
	}
	return cloneUser(u), nil
}

func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, u := range r.db.users {
		if u.TelegramID != 0 && u.TelegramID == telegramID {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *userRepository) List(ctx context.Context) ([]*models.User, error) {
	return r.filter(func(*models.User) bool { return true }), nil
}

func (r *userRepository) ListByCircle(ctx context.Context, circleID int64) ([]*models.User, error) {
	return r.filter(func(u *models.User) bool { return u.InCircle(circleID) }), nil
}

func (r *userRepository) filter(keep func(*models.User) bool) []*models.User {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*models.User
	for _, u := range r.db.users {
		if keep(u) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *userRepository) UpdateLocation(ctx context.Context, userID int64, loc models.Location) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[userID]
	if !ok {
		return fmt.Errorf("user %d not found", userID)
	}
	u.LastLocation = &loc
	return nil
}

func (r *userRepository) UpdateHeartbeat(ctx context.Context, userID int64, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[userID]
	if !ok {
		return fmt.Errorf("user %d not found", userID)
	}
	u.LastHeartbeatAt = &at
	return nil
}
