// Package fanout delivers notifications to live subscribers and to the
// external channels of a circle.
package fanout

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/carecircle/internal/metrics"
	"github.com/Kerhoff/carecircle/internal/models"
)

const deliveryTimeout = 30 * time.Second

// Subscriber is one live connection. Send must not block for long; a
// returned error is taken as a disconnect.
type Subscriber interface {
	UserID() int64
	Send(event []byte) error
}

// Sink is an external best-effort channel. allow reports whether a given
// user may receive the notification; sinks must skip recipients it rejects.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n models.Notification, allow func(userID int64) bool) error
}

// Visibility decides whether a user may see a notification of a circle.
// *audience.Resolver satisfies it.
type Visibility interface {
	CanView(viewerID, circleID int64, aud *models.Audience) bool
}

type subscription struct {
	id  string
	sub Subscriber
}

type sinkRunner struct {
	sink  Sink
	queue chan models.Notification
}

// Hub routes each notification to every channel independently
type Hub struct {
	logger  *logrus.Logger
	views   Visibility
	metrics *metrics.Metrics

	mu     sync.RWMutex
	subs   map[int64][]subscription
	sinks  []*sinkRunner
	closed bool
	wg     sync.WaitGroup
}

// NewHub creates a hub with no sinks
func NewHub(logger *logrus.Logger, views Visibility, m *metrics.Metrics) *Hub {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Hub{
		logger:  logger,
		views:   views,
		metrics: m,
		subs:    make(map[int64][]subscription),
	}
}

// AddSink registers an external channel served by its own pool of workers
// reading a queue of the given size.
func (h *Hub) AddSink(sink Sink, workers, queue int) {
	if workers < 1 {
		workers = 1
	}
	r := &sinkRunner{sink: sink, queue: make(chan models.Notification, queue)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.sinks = append(h.sinks, r)
	for i := 0; i < workers; i++ {
		h.wg.Add(1)
		go h.work(r)
	}
	h.logger.Infof("Registered %s sink with %d workers", sink.Name(), workers)
}

// Subscribe adds a live subscriber to a circle and returns its handle id
func (h *Hub) Subscribe(circleID int64, sub Subscriber) string {
	id := uuid.NewString()

	h.mu.Lock()
	h.subs[circleID] = append(h.subs[circleID], subscription{id: id, sub: sub})
	h.mu.Unlock()

	h.metrics.LiveSubscribers.Inc()
	h.logger.WithFields(logrus.Fields{
		"circle_id":     circleID,
		"user_id":       sub.UserID(),
		"subscriber_id": id,
	}).Debug("Live subscriber connected")
	return id
}

// Unsubscribe removes a live subscriber. It returns false if id was not
// registered for the circle.
func (h *Hub) Unsubscribe(circleID int64, id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.subs[circleID]
	for i, s := range list {
		if s.id != id {
			continue
		}
		rest := make([]subscription, 0, len(list)-1)
		rest = append(rest, list[:i]...)
		rest = append(rest, list[i+1:]...)
		if len(rest) == 0 {
			delete(h.subs, circleID)
		} else {
			h.subs[circleID] = rest
		}
		h.metrics.LiveSubscribers.Dec()
		return true
	}
	return false
}

// SubscriberCount returns the number of live subscribers of a circle
func (h *Hub) SubscriberCount(circleID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[circleID])
}

// Fanout delivers n to the circle's live subscribers in registration order
// and queues it for every sink. It never blocks on an external channel.
func (h *Hub) Fanout(ctx context.Context, n models.Notification) {
	log := h.logger.WithContext(ctx).WithFields(logrus.Fields{
		"circle_id": n.CircleID,
		"kind":      n.Kind,
	})

	event, err := json.Marshal(n)
	if err != nil {
		log.WithError(err).Error("Failed to encode notification")
		return
	}
	h.metrics.Notifications.WithLabelValues(string(n.Kind)).Inc()

	h.mu.RLock()
	snapshot := append([]subscription(nil), h.subs[n.CircleID]...)
	h.mu.RUnlock()

	for _, s := range snapshot {
		if !h.views.CanView(s.sub.UserID(), n.CircleID, n.Audience) {
			continue
		}
		if err := s.sub.Send(event); err != nil {
			log.WithError(err).WithField("subscriber_id", s.id).Debug("Dropping live subscriber after failed write")
			h.Unsubscribe(n.CircleID, s.id)
		}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, r := range h.sinks {
		select {
		case r.queue <- n:
		default:
			h.metrics.Deliveries.WithLabelValues(r.sink.Name(), metrics.OutcomeDropped).Inc()
			log.WithField("sink", r.sink.Name()).Warn("Sink queue full, dropping delivery")
		}
	}
}

func (h *Hub) work(r *sinkRunner) {
	defer h.wg.Done()
	for n := range r.queue {
		h.deliver(r.sink, n)
	}
}

func (h *Hub) deliver(sink Sink, n models.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	allow := func(userID int64) bool {
		return h.views.CanView(userID, n.CircleID, n.Audience)
	}
	if err := sink.Deliver(ctx, n, allow); err != nil {
		h.metrics.Deliveries.WithLabelValues(sink.Name(), metrics.OutcomeFailed).Inc()
		h.logger.WithFields(logrus.Fields{
			"sink":      sink.Name(),
			"circle_id": n.CircleID,
			"kind":      n.Kind,
		}).WithError(err).Warn("Sink delivery failed")
		return
	}
	h.metrics.Deliveries.WithLabelValues(sink.Name(), metrics.OutcomeDelivered).Inc()
}

// Close stops accepting sink work and waits for queued deliveries to finish
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for _, r := range h.sinks {
		close(r.queue)
	}
	h.mu.Unlock()

	h.wg.Wait()
}
