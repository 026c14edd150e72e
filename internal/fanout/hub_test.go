package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/carecircle/internal/audience"
	"github.com/Kerhoff/carecircle/internal/membership"
	"github.com/Kerhoff/carecircle/internal/metrics"
	"github.com/Kerhoff/carecircle/internal/models"
)

const circleID int64 = 1

type recorder struct {
	mu     sync.Mutex
	userID int64
	events [][]byte
	err    error
	log    *[]int64
}

func (r *recorder) UserID() int64 { return r.userID }

func (r *recorder) Send(event []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	if r.log != nil {
		*r.log = append(*r.log, r.userID)
	}
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type captureSink struct {
	name string
	err  error

	mu       sync.Mutex
	got      []models.Notification
	allowed  []int64
	started  chan struct{}
	gate     chan struct{}
	audience []int64
}

func (s *captureSink) Name() string { return s.name }

func (s *captureSink) Deliver(_ context.Context, n models.Notification, allow func(int64) bool) error {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	for _, id := range s.audience {
		if allow(id) {
			s.allowed = append(s.allowed, id)
		}
	}
	return s.err
}

func (s *captureSink) deliveries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func newTestHub(t *testing.T) (*Hub, *membership.Registry, *metrics.Metrics) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	reg := membership.NewRegistry()
	reg.Add(models.Membership{CircleID: circleID, UserID: 10, Role: models.RoleOwner})
	reg.Add(models.Membership{CircleID: circleID, UserID: 20, Role: models.RoleChild})
	reg.Add(models.Membership{CircleID: circleID, UserID: 30, Role: models.RoleCaregiver})

	m := metrics.New(nil)
	hub := NewHub(log, audience.NewResolver(reg), m)
	t.Cleanup(hub.Close)
	return hub, reg, m
}

func notification(kind models.Kind, aud *models.Audience) models.Notification {
	return models.NewNotification(circleID, kind, "hello", models.ReminderPayload{TaskID: 5, Count: 1}, aud, time.Now())
}

func TestFanoutLiveOrderAndEncoding(t *testing.T) {
	hub, _, _ := newTestHub(t)

	var order []int64
	a := &recorder{userID: 10, log: &order}
	b := &recorder{userID: 20, log: &order}
	c := &recorder{userID: 30, log: &order}
	hub.Subscribe(circleID, a)
	hub.Subscribe(circleID, b)
	hub.Subscribe(circleID, c)
	hub.Subscribe(circleID+1, &recorder{userID: 10, log: &order})

	hub.Fanout(context.Background(), notification(models.KindReminder, nil))

	assert.Equal(t, []int64{10, 20, 30}, order)
	require.Equal(t, 1, a.count())

	var event map[string]any
	require.NoError(t, json.Unmarshal(a.events[0], &event))
	assert.Equal(t, "reminder", event["kind"])
	assert.Equal(t, "hello", event["message"])
	assert.EqualValues(t, 5, event["taskId"])
}

func TestFanoutFailedWriteRemovesSubscriber(t *testing.T) {
	hub, _, m := newTestHub(t)

	broken := &recorder{userID: 10, err: errors.New("connection reset")}
	healthy := &recorder{userID: 20}
	hub.Subscribe(circleID, broken)
	hub.Subscribe(circleID, healthy)
	assert.Equal(t, 2, hub.SubscriberCount(circleID))

	hub.Fanout(context.Background(), notification(models.KindReminder, nil))
	hub.Fanout(context.Background(), notification(models.KindReminder, nil))

	assert.Equal(t, 2, healthy.count())
	assert.Equal(t, 1, hub.SubscriberCount(circleID))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LiveSubscribers))
}

func TestFanoutFiltersByAudience(t *testing.T) {
	hub, _, _ := newTestHub(t)

	owner := &recorder{userID: 10}
	child := &recorder{userID: 20}
	carer := &recorder{userID: 30}
	hub.Subscribe(circleID, owner)
	hub.Subscribe(circleID, child)
	hub.Subscribe(circleID, carer)

	hub.Fanout(context.Background(), notification(models.KindVitalsAlert, &models.Audience{Scope: models.ScopeCaregivers}))

	assert.Equal(t, 1, owner.count())
	assert.Equal(t, 0, child.count())
	assert.Equal(t, 1, carer.count())
}

func TestFanoutSkipsLapsedMembers(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Minute)
	reg := membership.NewRegistry(membership.WithClock(func() time.Time { return now }))
	reg.Add(models.Membership{CircleID: circleID, UserID: 10, Role: models.RoleOwner})
	reg.Add(models.Membership{CircleID: circleID, UserID: 40, Role: models.RoleCaregiver, ExpiresAt: &expired})

	hub := NewHub(log, audience.NewResolver(reg), metrics.New(nil))
	t.Cleanup(hub.Close)

	owner := &recorder{userID: 10}
	lapsed := &recorder{userID: 40}
	stranger := &recorder{userID: 50}
	hub.Subscribe(circleID, owner)
	hub.Subscribe(circleID, lapsed)
	hub.Subscribe(circleID, stranger)

	hub.Fanout(context.Background(), notification(models.KindInactivity, nil))

	assert.Equal(t, 1, owner.count())
	assert.Equal(t, 0, lapsed.count())
	assert.Equal(t, 0, stranger.count())
}

func TestUnsubscribe(t *testing.T) {
	hub, _, _ := newTestHub(t)

	id := hub.Subscribe(circleID, &recorder{userID: 10})
	assert.True(t, hub.Unsubscribe(circleID, id))
	assert.False(t, hub.Unsubscribe(circleID, id))
	assert.Equal(t, 0, hub.SubscriberCount(circleID))
}

func TestFanoutIsolatesFailingSink(t *testing.T) {
	hub, _, m := newTestHub(t)

	push := &captureSink{name: "push", err: errors.New("endpoint gone")}
	sms := &captureSink{name: "sms", audience: []int64{10, 20, 99}}
	hub.AddSink(push, 1, 8)
	hub.AddSink(sms, 1, 8)

	live := &recorder{userID: 20}
	hub.Subscribe(circleID, live)

	hub.Fanout(context.Background(), notification(models.KindDisruptiveAlert, nil))
	hub.Close()

	assert.Equal(t, 1, live.count())
	assert.Equal(t, 1, push.deliveries())
	assert.Equal(t, 1, sms.deliveries())
	assert.Equal(t, []int64{10, 20}, sms.allowed)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Deliveries.WithLabelValues("push", metrics.OutcomeFailed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Deliveries.WithLabelValues("sms", metrics.OutcomeDelivered)))
}

func TestFanoutDropsWhenSinkQueueFull(t *testing.T) {
	hub, _, m := newTestHub(t)

	slow := &captureSink{name: "slow", started: make(chan struct{}, 4), gate: make(chan struct{})}
	hub.AddSink(slow, 1, 1)

	hub.Fanout(context.Background(), notification(models.KindReminder, nil))
	<-slow.started

	live := &recorder{userID: 10}
	hub.Subscribe(circleID, live)
	hub.Fanout(context.Background(), notification(models.KindReminder, nil))
	hub.Fanout(context.Background(), notification(models.KindReminder, nil))

	// the blocked sink never delays live delivery
	assert.Equal(t, 2, live.count())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Deliveries.WithLabelValues("slow", metrics.OutcomeDropped)))

	close(slow.gate)
	hub.Close()
	assert.Equal(t, 2, slow.deliveries())
}

func TestFanoutAfterCloseSkipsSinks(t *testing.T) {
	hub, _, _ := newTestHub(t)

	sink := &captureSink{name: "push"}
	hub.AddSink(sink, 2, 4)
	hub.Close()

	assert.NotPanics(t, func() {
		hub.Fanout(context.Background(), notification(models.KindReminder, nil))
	})
	assert.Equal(t, 0, sink.deliveries())
}
