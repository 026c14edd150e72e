package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Kerhoff/carecircle/internal/models"
)

type vitalRepository struct {
	db *DB
}

func (r *vitalRepository) Create(ctx context.Context, reading *models.VitalReading) (*models.VitalReading, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	v := cloneVital(reading)
	v.ID = r.db.nextID()
	if v.RecordedAt.IsZero() {
		v.RecordedAt = time.Now()
	}
	r.db.vitals[v.ID] = v
	return cloneVital(v), nil
}

func (r *vitalRepository) ListSince(ctx context.Context, circleID int64, since time.Time) ([]*models.VitalReading, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*models.VitalReading
	for _, v := range r.db.vitals {
		if v.CircleID == circleID && !v.RecordedAt.Before(since) {
			out = append(out, cloneVital(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *vitalRepository) GetThreshold(ctx context.Context, circleID int64, kind string) (*models.VitalThreshold, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	t, ok := r.db.thresholds[thresholdKey{circleID: circleID, kind: kind}]
	if !ok {
		return nil, nil
	}
	return cloneThreshold(t), nil
}

func (r *vitalRepository) UpsertThreshold(ctx context.Context, threshold models.VitalThreshold) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.thresholds[thresholdKey{circleID: threshold.CircleID, kind: threshold.Kind}] = *cloneThreshold(threshold)
	return nil
}
