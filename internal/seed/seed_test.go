package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/carecircle/internal/models"
	"github.com/Kerhoff/carecircle/internal/repository/memory"
)

type recordingMembers struct {
	added []models.Membership
}

func (r *recordingMembers) AddMember(_ context.Context, m models.Membership) error {
	r.added = append(r.added, m)
	return nil
}

const fixture = `{
  "circles": [{"key": "home", "name": "Home"}],
  "users": [
    {"key": "mum", "name": "Mum", "phone": "+447700900001", "email": "mum@example.com", "telegram_id": 11, "circle": "home", "role": "owner"},
    {"key": "sam", "name": "Sam", "circle": "home", "role": "child"},
    {"key": "nurse", "name": "Ana", "circle": "home", "role": "caregiver", "expires_in": "72h"},
    {"key": "guest", "name": "Guest"}
  ],
  "tasks": [
    {"circle": "home", "title": "Homework", "created_by": "mum", "assignee": "sam", "due_in": "30m", "for_minor": true, "ack_required": true},
    {"circle": "home", "title": "Bins", "repeat": "weekly", "due_in": "24h", "reminder_every": "10m",
     "audience": {"scope": "custom", "users": ["mum"]}}
  ],
  "geofences": [{"circle": "home", "name": "School", "lat": 51.5, "lon": -0.12, "radius_meters": 200}],
  "thresholds": [{"circle": "home", "kind": "heart_rate", "min": 50, "max": 120}]
}`

func TestLoad(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.Open())
	members := &recordingMembers{}
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	res, err := Load(ctx, strings.NewReader(fixture), store, members, now)
	require.NoError(t, err)
	assert.Len(t, res.Users, 4)
	assert.Equal(t, 2, res.Tasks)

	home := res.Circles["home"]
	require.Len(t, members.added, 3)
	assert.Equal(t, models.RoleOwner, members.added[0].Role)
	require.NotNil(t, members.added[2].ExpiresAt)
	assert.True(t, members.added[2].ExpiresAt.Equal(now.Add(72*time.Hour)))

	tasks, err := store.Tasks.ListByCircle(ctx, home)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.True(t, tasks[0].Escalatable())
	require.NotNil(t, tasks[0].Due)
	assert.True(t, tasks[0].Due.Equal(now.Add(30*time.Minute)))
	assert.Equal(t, res.Users["sam"], *tasks[0].AssigneeID)
	assert.Equal(t, models.TaskRepeatNone, tasks[0].Repeat)
	assert.Equal(t, 10*time.Minute, tasks[1].ReminderEvery)
	assert.Equal(t, []int64{res.Users["mum"]}, tasks[1].Audience.UserIDs)

	fences, err := store.Geofences.ListByCircle(ctx, home)
	require.NoError(t, err)
	require.Len(t, fences, 1)

	th, err := store.Vitals.GetThreshold(ctx, home, "heart_rate")
	require.NoError(t, err)
	require.NotNil(t, th)
	assert.True(t, th.Breached(130))

	mum, err := store.Users.GetByTelegramID(ctx, 11)
	require.NoError(t, err)
	require.NotNil(t, mum)
	assert.Equal(t, res.Users["mum"], mum.ID)
}

func TestLoadRejectsBadFixtures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed", body: `{`},
		{name: "unknown field", body: `{"pets": []}`},
		{name: "unknown circle", body: `{"users": [{"key": "a", "name": "A", "circle": "nope", "role": "owner"}]}`},
		{name: "unknown assignee", body: `{"circles": [{"key": "h", "name": "H"}], "tasks": [{"circle": "h", "title": "T", "assignee": "ghost"}]}`},
		{name: "bad role", body: `{"circles": [{"key": "h", "name": "H"}], "users": [{"key": "a", "name": "A", "circle": "h", "role": "boss"}]}`},
		{name: "missing role", body: `{"circles": [{"key": "h", "name": "H"}], "users": [{"key": "a", "name": "A", "circle": "h"}]}`},
		{name: "bad duration", body: `{"circles": [{"key": "h", "name": "H"}], "tasks": [{"circle": "h", "title": "T", "due_in": "soon"}]}`},
		{name: "zero radius", body: `{"circles": [{"key": "h", "name": "H"}], "geofences": [{"circle": "h", "name": "G", "lat": 1, "lon": 1}]}`},
		{name: "duplicate circle", body: `{"circles": [{"key": "h", "name": "H"}, {"key": "h", "name": "H2"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore(memory.Open())
			_, err := Load(context.Background(), strings.NewReader(tt.body), store, &recordingMembers{}, time.Now())
			assert.Error(t, err)
		})
	}
}
