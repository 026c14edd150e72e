package memory

import (
	"time"

	"github.com/Kerhoff/carecircle/internal/models"
)

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneAudience(a *models.Audience) *models.Audience {
	if a == nil {
		return nil
	}
	return &models.Audience{Scope: a.Scope, UserIDs: append([]int64(nil), a.UserIDs...)}
}

func cloneTask(t *models.Task) *models.Task {
	c := *t
	c.AssigneeID = cloneInt64(t.AssigneeID)
	c.Due = cloneTime(t.Due)
	c.Start = cloneTime(t.Start)
	c.Audience = cloneAudience(t.Audience)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.LastPingAt = cloneTime(t.LastPingAt)
	c.AckedBy = cloneInt64(t.AckedBy)
	c.AckedAt = cloneTime(t.AckedAt)
	c.LastReminderAt = cloneTime(t.LastReminderAt)
	return &c
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.CircleID = cloneInt64(u.CircleID)
	c.LastHeartbeatAt = cloneTime(u.LastHeartbeatAt)
	if u.LastLocation != nil {
		loc := *u.LastLocation
		c.LastLocation = &loc
	}
	return &c
}

func cloneVital(v *models.VitalReading) *models.VitalReading {
	c := *v
	c.Audience = cloneAudience(v.Audience)
	return &c
}

func cloneThreshold(t models.VitalThreshold) *models.VitalThreshold {
	t.Min = cloneFloat(t.Min)
	t.Max = cloneFloat(t.Max)
	return &t
}

func cloneGeofence(g *models.Geofence) *models.Geofence {
	c := *g
	c.Audience = cloneAudience(g.Audience)
	return &c
}

func cloneMembership(m models.Membership) models.Membership {
	m.ExpiresAt = cloneTime(m.ExpiresAt)
	return m
}
