// Package membership tracks who belongs to which circle and with what role.
package membership

import (
	"sync"
	"time"

	"github.com/Kerhoff/carecircle/internal/models"
)

type key struct {
	circleID int64
	userID   int64
}

// Registry is the in-process membership table. Expired memberships stay in
// the table and simply read as absent; nothing is ever removed implicitly.
type Registry struct {
	mu      sync.RWMutex
	entries map[key]models.Membership
	order   map[int64][]int64 // circle -> users in join order
	now     func() time.Time
}

// Option configures a Registry
type Option func(*Registry)

// WithClock overrides the time source used for lazy expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[key]models.Membership),
		order:   make(map[int64][]int64),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load replaces the registry contents, typically with rows read from the
// membership repository at start-up.
func (r *Registry) Load(memberships []models.Membership) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[key]models.Membership, len(memberships))
	r.order = make(map[int64][]int64)
	for _, m := range memberships {
		r.put(m)
	}
}

// Add inserts or overwrites the membership keyed by (circle, user).
func (r *Registry) Add(m models.Membership) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(m)
}

func (r *Registry) put(m models.Membership) {
	k := key{circleID: m.CircleID, userID: m.UserID}
	if _, exists := r.entries[k]; !exists {
		r.order[m.CircleID] = append(r.order[m.CircleID], m.UserID)
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = r.now()
	}
	r.entries[k] = m
}

// Remove deletes the membership; no history is kept.
func (r *Registry) Remove(circleID, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{circleID: circleID, userID: userID}
	if _, exists := r.entries[k]; !exists {
		return
	}
	delete(r.entries, k)

	users := r.order[circleID]
	for i, id := range users {
		if id == userID {
			r.order[circleID] = append(users[:i:i], users[i+1:]...)
			break
		}
	}
	if len(r.order[circleID]) == 0 {
		delete(r.order, circleID)
	}
}

// IsMember returns true if the user holds an active membership in the circle
func (r *Registry) IsMember(circleID, userID int64) bool {
	_, ok := r.RoleOf(circleID, userID)
	return ok
}

// RoleOf returns the user's role in the circle if the membership is active
func (r *Registry) RoleOf(circleID, userID int64) (models.Role, bool) {
	r.mu.RLock()
	m, exists := r.entries[key{circleID: circleID, userID: userID}]
	r.mu.RUnlock()

	if !exists || !m.ActiveAt(r.now()) {
		return "", false
	}
	return m.Role, true
}

// Members returns the active memberships of a circle in join order
func (r *Registry) Members(circleID int64) []models.Membership {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	var out []models.Membership
	for _, userID := range r.order[circleID] {
		m := r.entries[key{circleID: circleID, userID: userID}]
		if m.ActiveAt(now) {
			out = append(out, m)
		}
	}
	return out
}
