package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/carecircle/internal/models"
)

func TestTaskRepositoryCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore(Open())

	due := time.Now().Add(time.Hour)
	created, err := store.Tasks.Create(ctx, &models.Task{CircleID: 1, Title: "Dishes", Due: &due})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.Equal(t, models.TaskRepeatNone, created.Repeat)

	// mutating the returned record must not leak into the store
	created.Stage = models.StageDisruptive
	*created.Due = due.Add(time.Hour)

	got, err := store.Tasks.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageNone, got.Stage)
	assert.Equal(t, due, *got.Due)

	got.Stage = models.StagePreNotice
	_, err = store.Tasks.Update(ctx, got)
	require.NoError(t, err)

	again, err := store.Tasks.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StagePreNotice, again.Stage)
}

func TestTaskRepositoryListOpen(t *testing.T) {
	ctx := context.Background()
	store := NewStore(Open())

	_, _ = store.Tasks.Create(ctx, &models.Task{CircleID: 1, Title: "open"})
	_, _ = store.Tasks.Create(ctx, &models.Task{CircleID: 1, Title: "done", Completed: true})
	_, _ = store.Tasks.Create(ctx, &models.Task{CircleID: 2, Title: "other circle"})

	open, err := store.Tasks.ListOpenByCircle(ctx, 1)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "open", open[0].Title)

	all, err := store.Tasks.ListByCircle(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	missing, err := store.Tasks.GetByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = store.Tasks.Update(ctx, &models.Task{ID: 999})
	assert.Error(t, err)
}

func TestContainmentDefaultsToOutside(t *testing.T) {
	ctx := context.Background()
	store := NewStore(Open())

	inside, err := store.Containment.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, inside)

	require.NoError(t, store.Containment.Set(ctx, 1, 2, true))
	inside, err = store.Containment.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, inside)
}

func TestVitalsListSince(t *testing.T) {
	ctx := context.Background()
	store := NewStore(Open())
	now := time.Now()

	_, _ = store.Vitals.Create(ctx, &models.VitalReading{CircleID: 1, Kind: "bp", Value: 120, RecordedAt: now.Add(-20 * time.Minute)})
	_, _ = store.Vitals.Create(ctx, &models.VitalReading{CircleID: 1, Kind: "bp", Value: 130, RecordedAt: now.Add(-2 * time.Minute)})

	recent, err := store.Vitals.ListSince(ctx, 1, now.Add(-15*time.Minute))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 130.0, recent[0].Value)

	limit := 140.0
	require.NoError(t, store.Vitals.UpsertThreshold(ctx, models.VitalThreshold{CircleID: 1, Kind: "bp", Max: &limit}))
	th, err := store.Vitals.GetThreshold(ctx, 1, "bp")
	require.NoError(t, err)
	require.NotNil(t, th)
	assert.Equal(t, 140.0, *th.Max)

	none, err := store.Vitals.GetThreshold(ctx, 1, "spo2")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestPushUpsertDeduplicates(t *testing.T) {
	ctx := context.Background()
	store := NewStore(Open())

	a, err := store.Push.Upsert(ctx, &models.PushSubscription{CircleID: 1, UserID: 2, ChatID: 300})
	require.NoError(t, err)
	b, err := store.Push.Upsert(ctx, &models.PushSubscription{CircleID: 1, UserID: 2, ChatID: 300})
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	subs, err := store.Push.ListByCircle(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestTaskRepositoryUpdateNeverLowersStage(t *testing.T) {
	ctx := context.Background()
	store := NewStore(Open())

	task, err := store.Tasks.Create(ctx, &models.Task{CircleID: 1, Title: "Homework", Stage: models.StageSecondReminder})
	require.NoError(t, err)

	task.Stage = models.StagePreNotice
	updated, err := store.Tasks.Update(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, models.StageSecondReminder, updated.Stage)
}
