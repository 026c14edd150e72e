package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/carecircle/internal/models"
)

func TestGeofenceFiresOnEdgesOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fence, err := f.store.Geofences.Create(ctx, &models.Geofence{
		CircleID: f.circleID, Name: "School", Lat: 51.5007, Lon: -0.1246, RadiusMeters: 200,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.RecordLocation(ctx, f.child.ID, 51.5008, -0.1245))
	for i := 0; i < 3; i++ {
		f.tick(t)
		f.clock.Advance(time.Minute)
	}
	assert.Equal(t, []models.Kind{models.KindGeofenceEnter}, f.notes.kinds())
	assert.Equal(t, models.GeofencePayload{FenceID: fence.ID, Fence: "School", UserID: f.child.ID}, f.notes.last().Payload)

	require.NoError(t, f.svc.RecordLocation(ctx, f.child.ID, 51.52, -0.1246))
	for i := 0; i < 3; i++ {
		f.tick(t)
		f.clock.Advance(time.Minute)
	}
	assert.Equal(t, []models.Kind{models.KindGeofenceEnter, models.KindGeofenceExit}, f.notes.kinds())

	inside, err := f.store.Containment.Get(ctx, fence.ID, f.child.ID)
	require.NoError(t, err)
	assert.False(t, inside)
}

func TestGeofenceStartingOutsideIsSilent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Geofences.Create(ctx, &models.Geofence{
		CircleID: f.circleID, Name: "Park", Lat: 0, Lon: 0, RadiusMeters: 50,
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.RecordLocation(ctx, f.owner.ID, 10, 10))

	f.tick(t)
	assert.Empty(t, f.notes.kinds())
}

func TestVitalsFreshnessWindow(t *testing.T) {
	limit := 140.0

	t.Run("fresh breach fires every tick", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		require.NoError(t, f.store.Vitals.UpsertThreshold(ctx, models.VitalThreshold{CircleID: f.circleID, Kind: "bp", Max: &limit}))

		reading, err := f.store.Vitals.Create(ctx, &models.VitalReading{
			CircleID: f.circleID, UserID: f.relative.ID, Kind: "bp", Value: 190, RecordedAt: f.clock.Now().Add(-2 * time.Minute),
		})
		require.NoError(t, err)

		f.tick(t)
		require.Equal(t, []models.Kind{models.KindVitalsAlert}, f.notes.kinds())
		assert.Equal(t, models.VitalsPayload{Kind: "bp", Value: 190, UserID: f.relative.ID, VitalID: reading.ID}, f.notes.last().Payload)
		assert.Contains(t, f.notes.last().Message, "Gran")

		f.clock.Advance(time.Minute)
		f.tick(t)
		assert.Len(t, f.notes.kinds(), 2)
	})

	t.Run("stale breach is ignored", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		require.NoError(t, f.store.Vitals.UpsertThreshold(ctx, models.VitalThreshold{CircleID: f.circleID, Kind: "bp", Max: &limit}))

		_, err := f.store.Vitals.Create(ctx, &models.VitalReading{
			CircleID: f.circleID, UserID: f.relative.ID, Kind: "bp", Value: 190, RecordedAt: f.clock.Now().Add(-20 * time.Minute),
		})
		require.NoError(t, err)

		f.tick(t)
		assert.Empty(t, f.notes.kinds())
	})

	t.Run("in range or unconfigured is ignored", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		require.NoError(t, f.store.Vitals.UpsertThreshold(ctx, models.VitalThreshold{CircleID: f.circleID, Kind: "bp", Max: &limit}))

		_, err := f.svc.RecordVital(ctx, f.relative.ID, "bp", 120, nil)
		require.NoError(t, err)
		_, err = f.svc.RecordVital(ctx, f.relative.ID, "spo2", 80, nil)
		require.NoError(t, err)

		f.tick(t)
		assert.Empty(t, f.notes.kinds())
	})
}

func TestHeartbeatInactivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RecordHeartbeat(ctx, f.relative.ID))

	f.clock.Advance(9 * time.Minute)
	f.tick(t)
	assert.Empty(t, f.notes.kinds())

	f.clock.Advance(time.Minute)
	f.tick(t)
	require.Equal(t, []models.Kind{models.KindInactivity}, f.notes.kinds())
	payload := f.notes.last().Payload.(models.InactivityPayload)
	assert.Equal(t, f.relative.ID, payload.UserID)

	f.clock.Advance(time.Minute)
	f.tick(t)
	assert.Len(t, f.notes.kinds(), 2)

	require.NoError(t, f.svc.RecordHeartbeat(ctx, f.relative.ID))
	f.tick(t)
	assert.Len(t, f.notes.kinds(), 2)
}

func TestHeartbeatIgnoresFormerMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RecordHeartbeat(ctx, f.relative.ID))
	require.NoError(t, f.svc.RemoveMember(ctx, f.circleID, f.relative.ID))

	f.clock.Advance(time.Hour)
	f.tick(t)
	assert.Empty(t, f.notes.kinds())
}
