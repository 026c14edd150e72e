package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/carecircle/internal/membership"
	"github.com/Kerhoff/carecircle/internal/models"
	"github.com/Kerhoff/carecircle/internal/repository"
	"github.com/Kerhoff/carecircle/internal/repository/memory"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type captureNotifier struct {
	mu  sync.Mutex
	got []models.Notification
}

func (c *captureNotifier) Fanout(_ context.Context, n models.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
}

func (c *captureNotifier) kinds() []models.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Kind, 0, len(c.got))
	for _, n := range c.got {
		out = append(out, n.Kind)
	}
	return out
}

func (c *captureNotifier) last() models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.got[len(c.got)-1]
}

func (c *captureNotifier) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = nil
}

type fixture struct {
	svc      *Service
	store    repository.Store
	clock    *testClock
	notes    *captureNotifier
	circleID int64
	owner    *models.User
	child    *models.User
	relative *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.NewStore(memory.Open()))
}

func newFixtureWithStore(t *testing.T, store repository.Store) *fixture {
	t.Helper()
	ctx := context.Background()

	log := logrus.New()
	log.SetOutput(io.Discard)

	clock := &testClock{t: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	notes := &captureNotifier{}
	reg := membership.NewRegistry(membership.WithClock(clock.Now))
	svc := New(log, store, reg, notes, WithClock(clock.Now))

	circle, err := store.Circles.Create(ctx, &models.Circle{Name: "Home"})
	require.NoError(t, err)

	f := &fixture{svc: svc, store: store, clock: clock, notes: notes, circleID: circle.ID}
	f.owner = f.member(t, "Mum", models.RoleOwner, nil)
	f.child = f.member(t, "Sam", models.RoleChild, nil)
	f.relative = f.member(t, "Gran", models.RoleRelative, nil)
	return f
}

func (f *fixture) member(t *testing.T, name string, role models.Role, expires *time.Time) *models.User {
	t.Helper()
	ctx := context.Background()
	circleID := f.circleID
	user, err := f.store.Users.Create(ctx, &models.User{Name: name, CircleID: &circleID})
	require.NoError(t, err)
	require.NoError(t, f.svc.AddMember(ctx, models.Membership{
		CircleID: f.circleID, UserID: user.ID, Role: role, ExpiresAt: expires,
	}))
	return user
}

func (f *fixture) minorTask(t *testing.T, dueIn time.Duration) *models.Task {
	t.Helper()
	due := f.clock.Now().Add(dueIn)
	assignee := f.child.ID
	task, err := f.store.Tasks.Create(context.Background(), &models.Task{
		CircleID:    f.circleID,
		Title:       "Take medicine",
		CreatedByID: f.owner.ID,
		AssigneeID:  &assignee,
		Due:         &due,
		ForMinor:    true,
		AckRequired: true,
	})
	require.NoError(t, err)
	return task
}

func (f *fixture) task(t *testing.T, id int64) *models.Task {
	t.Helper()
	task, err := f.store.Tasks.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, task)
	return task
}

func (f *fixture) tick(t *testing.T) {
	t.Helper()
	require.NoError(t, f.svc.Tick(context.Background()))
}

func TestVisibleTasksFiltersByAudience(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Tasks.Create(ctx, &models.Task{CircleID: f.circleID, Title: "Shared"})
	require.NoError(t, err)
	_, err = f.store.Tasks.Create(ctx, &models.Task{
		CircleID: f.circleID,
		Title:    "Surprise party",
		Audience: &models.Audience{Scope: models.ScopeCustom, UserIDs: []int64{f.child.ID}},
	})
	require.NoError(t, err)

	titles := func(userID int64) []string {
		tasks, err := f.svc.VisibleTasks(ctx, userID, f.circleID)
		require.NoError(t, err)
		var out []string
		for _, task := range tasks {
			out = append(out, task.Title)
		}
		return out
	}

	assert.Equal(t, []string{"Shared", "Surprise party"}, titles(f.child.ID))
	assert.Equal(t, []string{"Shared"}, titles(f.owner.ID))
	assert.Equal(t, []string{"Shared"}, titles(f.relative.ID))

	_, err = f.svc.VisibleTasks(ctx, 9999, f.circleID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRegisterPush(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	circleID := f.circleID
	user, err := f.store.Users.Create(ctx, &models.User{Name: "Dad", TelegramID: 777, CircleID: &circleID})
	require.NoError(t, err)
	require.NoError(t, f.svc.AddMember(ctx, models.Membership{CircleID: f.circleID, UserID: user.ID, Role: models.RoleFamily}))

	got, err := f.svc.RegisterPush(ctx, 777, 555)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	subs, err := f.store.Push.ListByCircle(ctx, f.circleID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, int64(555), subs[0].ChatID)

	_, err = f.svc.RegisterPush(ctx, 888, 556)
	assert.ErrorIs(t, err, ErrUserNotFound)

	lone, err := f.store.Users.Create(ctx, &models.User{Name: "Lone", TelegramID: 999})
	require.NoError(t, err)
	require.NotZero(t, lone.ID)
	_, err = f.svc.RegisterPush(ctx, 999, 557)
	assert.ErrorIs(t, err, ErrNoCircle)
}

func TestLoadMembershipsHydratesRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fresh := New(f.svc.logger, f.store, membership.NewRegistry(), f.notes)
	assert.False(t, fresh.IsMember(f.circleID, f.child.ID))

	require.NoError(t, fresh.LoadMemberships(ctx))
	assert.True(t, fresh.IsMember(f.circleID, f.child.ID))

	require.NoError(t, fresh.RemoveMember(ctx, f.circleID, f.child.ID))
	assert.False(t, fresh.IsMember(f.circleID, f.child.ID))
}

func TestTelemetryValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.RecordLocation(ctx, f.child.ID, 91, 0), ErrInvalidTelemetry)
	assert.ErrorIs(t, f.svc.RecordLocation(ctx, 9999, 10, 10), ErrUserNotFound)
	assert.ErrorIs(t, f.svc.RecordHeartbeat(ctx, 9999), ErrUserNotFound)

	_, err := f.svc.RecordVital(ctx, f.child.ID, "", 1, nil)
	assert.ErrorIs(t, err, ErrInvalidTelemetry)

	lone, err := f.store.Users.Create(ctx, &models.User{Name: "Lone"})
	require.NoError(t, err)
	_, err = f.svc.RecordVital(ctx, lone.ID, "bp", 120, nil)
	assert.ErrorIs(t, err, ErrNoCircle)

	reading, err := f.svc.RecordVital(ctx, f.child.ID, "bp", 120, nil)
	require.NoError(t, err)
	assert.Equal(t, f.circleID, reading.CircleID)
	assert.Equal(t, f.clock.Now(), reading.RecordedAt)
}

func TestRecordVitalInCircleRequiresActiveCircle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.store.Circles.Create(ctx, &models.Circle{Name: "Cottage"})
	require.NoError(t, err)
	require.NoError(t, f.svc.AddMember(ctx, models.Membership{CircleID: other.ID, UserID: f.relative.ID, Role: models.RoleRelative}))

	_, err = f.svc.RecordVitalInCircle(ctx, other.ID, f.relative.ID, "bp", 120, nil)
	assert.ErrorIs(t, err, ErrNotActiveCircle)
	for _, circleID := range []int64{f.circleID, other.ID} {
		readings, err := f.store.Vitals.ListSince(ctx, circleID, time.Time{})
		require.NoError(t, err)
		assert.Empty(t, readings)
	}

	reading, err := f.svc.RecordVitalInCircle(ctx, f.circleID, f.relative.ID, "bp", 120, nil)
	require.NoError(t, err)
	assert.Equal(t, f.circleID, reading.CircleID)
	assert.Equal(t, f.relative.ID, reading.UserID)
}
