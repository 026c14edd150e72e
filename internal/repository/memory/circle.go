package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Kerhoff/carecircle/internal/models"
)

type circleRepository struct {
	db *DB
}

func (r *circleRepository) Create(ctx context.Context, circle *models.Circle) (*models.Circle, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c := *circle
	c.ID = r.db.nextID()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	r.db.circles[c.ID] = &c

	out := c
	return &out, nil
}

func (r *circleRepository) GetByID(ctx context.Context, id int64) (*models.Circle, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	c, ok := r.db.circles[id]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (r *circleRepository) List(ctx context.Context) ([]*models.Circle, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]*models.Circle, 0, len(r.db.circles))
	for _, c := range r.db.circles {
		cc := *c
		out = append(out, &cc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type membershipRepository struct {
	db *DB
}

func (r *membershipRepository) List(ctx context.Context) ([]models.Membership, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]models.Membership, 0, len(r.db.memberships))
	for _, m := range r.db.memberships {
		out = append(out, cloneMembership(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		if out[i].CircleID != out[j].CircleID {
			return out[i].CircleID < out[j].CircleID
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (r *membershipRepository) Upsert(ctx context.Context, m models.Membership) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	k := membershipKey{circleID: m.CircleID, userID: m.UserID}
	if prev, ok := r.db.memberships[k]; ok {
		m.JoinedAt = prev.JoinedAt
	} else if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	r.db.memberships[k] = cloneMembership(m)
	return nil
}

func (r *membershipRepository) Delete(ctx context.Context, circleID, userID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	delete(r.db.memberships, membershipKey{circleID: circleID, userID: userID})
	return nil
}
