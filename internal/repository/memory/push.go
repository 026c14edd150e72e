package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Kerhoff/carecircle/internal/models"
)

type pushRepository struct {
	db *DB
}

// Upsert keeps one subscription per (circle, user, chat).
func (r *pushRepository) Upsert(ctx context.Context, sub *models.PushSubscription) (*models.PushSubscription, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.push {
		if existing.CircleID == sub.CircleID && existing.UserID == sub.UserID && existing.ChatID == sub.ChatID {
			out := *existing
			return &out, nil
		}
	}

	s := *sub
	s.ID = r.db.nextID()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	r.db.push[s.ID] = &s

	out := s
	return &out, nil
}

func (r *pushRepository) ListByCircle(ctx context.Context, circleID int64) ([]*models.PushSubscription, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*models.PushSubscription
	for _, s := range r.db.push {
		if s.CircleID == circleID {
			ss := *s
			out = append(out, &ss)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
