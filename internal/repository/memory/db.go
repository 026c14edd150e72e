// Package memory is the in-process record store used when no database is
// configured, and by tests. Records are copied on the way in and out so
// callers never share memory with the store.
package memory

import (
	"sync"

	"github.com/Kerhoff/carecircle/internal/models"
	"github.com/Kerhoff/carecircle/internal/repository"
)

type containmentKey struct {
	fenceID int64
	userID  int64
}

type thresholdKey struct {
	circleID int64
	kind     string
}

type membershipKey struct {
	circleID int64
	userID   int64
}

// DB holds every table behind a single lock
type DB struct {
	mu sync.RWMutex

	seq int64

	circles     map[int64]*models.Circle
	memberships map[membershipKey]models.Membership
	users       map[int64]*models.User
	tasks       map[int64]*models.Task
	vitals      map[int64]*models.VitalReading
	thresholds  map[thresholdKey]models.VitalThreshold
	geofences   map[int64]*models.Geofence
	containment map[containmentKey]bool
	push        map[int64]*models.PushSubscription
}

// Open creates an empty in-memory database
func Open() *DB {
	return &DB{
		circles:     make(map[int64]*models.Circle),
		memberships: make(map[membershipKey]models.Membership),
		users:       make(map[int64]*models.User),
		tasks:       make(map[int64]*models.Task),
		vitals:      make(map[int64]*models.VitalReading),
		thresholds:  make(map[thresholdKey]models.VitalThreshold),
		geofences:   make(map[int64]*models.Geofence),
		containment: make(map[containmentKey]bool),
		push:        make(map[int64]*models.PushSubscription),
	}
}

// NewStore wires every repository over db
func NewStore(db *DB) repository.Store {
	return repository.Store{
		Circles:     &circleRepository{db: db},
		Memberships: &membershipRepository{db: db},
		Users:       &userRepository{db: db},
		Tasks:       &taskRepository{db: db},
		Vitals:      &vitalRepository{db: db},
		Geofences:   &geofenceRepository{db: db},
		Containment: &containmentRepository{db: db},
		Push:        &pushRepository{db: db},
	}
}

// nextID must be called with the write lock held
func (db *DB) nextID() int64 {
	db.seq++
	return db.seq
}
