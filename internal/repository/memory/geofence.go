package memory

import (
	"context"
	"sort"

	"github.com/Kerhoff/carecircle/internal/models"
)

type geofenceRepository struct {
	db *DB
}

func (r *geofenceRepository) Create(ctx context.Context, fence *models.Geofence) (*models.Geofence, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	g := cloneGeofence(fence)
	g.ID = r.db.nextID()
	r.db.geofences[g.ID] = g
	return cloneGeofence(g), nil
}

func (r *geofenceRepository) ListByCircle(ctx context.Context, circleID int64) ([]*models.Geofence, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*models.Geofence
	for _, g := range r.db.geofences {
		if g.CircleID == circleID {
			out = append(out, cloneGeofence(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type containmentRepository struct {
	db *DB
}

func (r *containmentRepository) Get(ctx context.Context, fenceID, userID int64) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.containment[containmentKey{fenceID: fenceID, userID: userID}], nil
}

func (r *containmentRepository) Set(ctx context.Context, fenceID, userID int64, inside bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.containment[containmentKey{fenceID: fenceID, userID: userID}] = inside
	return nil
}
