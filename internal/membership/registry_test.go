package membership

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/carecircle/internal/models"
)

func TestRegistryLazyExpiry(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	reg := NewRegistry(WithClock(func() time.Time { return now }))

	expires := now.Add(time.Hour)
	reg.Add(models.Membership{CircleID: 1, UserID: 10, Role: models.RoleCaregiver, ExpiresAt: &expires})

	role, ok := reg.RoleOf(1, 10)
	require.True(t, ok)
	assert.Equal(t, models.RoleCaregiver, role)

	now = now.Add(2 * time.Hour)
	assert.False(t, reg.IsMember(1, 10))
	assert.Empty(t, reg.Members(1))

	// extending the expiry brings the same row back
	later := now.Add(time.Hour)
	reg.Add(models.Membership{CircleID: 1, UserID: 10, Role: models.RoleCaregiver, ExpiresAt: &later})
	assert.True(t, reg.IsMember(1, 10))
}

func TestRegistryAddIsIdempotent(t *testing.T) {
	reg := NewRegistry()

	reg.Add(models.Membership{CircleID: 1, UserID: 10, Role: models.RoleFamily})
	reg.Add(models.Membership{CircleID: 1, UserID: 11, Role: models.RoleChild})
	reg.Add(models.Membership{CircleID: 1, UserID: 10, Role: models.RoleOwner})

	role, ok := reg.RoleOf(1, 10)
	require.True(t, ok)
	assert.Equal(t, models.RoleOwner, role)

	members := reg.Members(1)
	require.Len(t, members, 2)
	assert.Equal(t, int64(10), members[0].UserID)
	assert.Equal(t, int64(11), members[1].UserID)
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry()
	reg.Load([]models.Membership{
		{CircleID: 1, UserID: 10, Role: models.RoleOwner},
		{CircleID: 1, UserID: 11, Role: models.RoleFamily},
		{CircleID: 2, UserID: 10, Role: models.RoleRelative},
	})

	reg.Remove(1, 10)
	reg.Remove(1, 99) // unknown is a no-op

	assert.False(t, reg.IsMember(1, 10))
	assert.True(t, reg.IsMember(2, 10))
	assert.True(t, reg.IsMember(1, 11))
	assert.Len(t, reg.Members(1), 1)
}

func TestRegistryUnknownCircle(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.RoleOf(5, 5)
	assert.False(t, ok)
	assert.Nil(t, reg.Members(5))
}
