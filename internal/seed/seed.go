// Package seed loads a JSON fixture describing circles, members and their
// records into a store. It is how the in-memory store gets data.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Kerhoff/carecircle/internal/models"
	"github.com/Kerhoff/carecircle/internal/repository"
)

// MemberAdder persists a membership and registers it. *service.Service
// satisfies it.
type MemberAdder interface {
	AddMember(ctx context.Context, m models.Membership) error
}

// Duration is a time.Duration written as "15m" in JSON
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// File is the fixture layout. Records refer to circles and users by key.
type File struct {
	Circles    []Circle    `json:"circles" validate:"dive"`
	Users      []User      `json:"users" validate:"dive"`
	Tasks      []Task      `json:"tasks" validate:"dive"`
	Geofences  []Geofence  `json:"geofences" validate:"dive"`
	Thresholds []Threshold `json:"thresholds" validate:"dive"`
}

type Circle struct {
	Key  string `json:"key" validate:"required"`
	Name string `json:"name" validate:"required"`
}

type User struct {
	Key        string      `json:"key" validate:"required"`
	Name       string      `json:"name" validate:"required"`
	Phone      string      `json:"phone" validate:"omitempty,e164"`
	Email      string      `json:"email" validate:"omitempty,email"`
	TelegramID int64       `json:"telegram_id"`
	Circle     string      `json:"circle"`
	Role       models.Role `json:"role" validate:"omitempty,oneof=owner family child relative caregiver"`
	ExpiresIn  *Duration   `json:"expires_in"`
}

type Audience struct {
	Scope models.AudienceScope `json:"scope" validate:"required,oneof=family relatives caregivers custom"`
	Users []string             `json:"users"`
}

type Task struct {
	Circle        string            `json:"circle" validate:"required"`
	Title         string            `json:"title" validate:"required"`
	Description   string            `json:"description"`
	CreatedBy     string            `json:"created_by"`
	Assignee      string            `json:"assignee"`
	DueIn         *Duration         `json:"due_in"`
	Repeat        models.TaskRepeat `json:"repeat" validate:"omitempty,oneof=none daily weekly"`
	ForMinor      bool              `json:"for_minor"`
	AckRequired   bool              `json:"ack_required"`
	ReminderEvery *Duration         `json:"reminder_every"`
	Audience      *Audience         `json:"audience"`
}

type Geofence struct {
	Circle       string    `json:"circle" validate:"required"`
	Name         string    `json:"name" validate:"required"`
	Lat          float64   `json:"lat" validate:"gte=-90,lte=90"`
	Lon          float64   `json:"lon" validate:"gte=-180,lte=180"`
	RadiusMeters float64   `json:"radius_meters" validate:"gt=0"`
	Audience     *Audience `json:"audience"`
}

type Threshold struct {
	Circle string   `json:"circle" validate:"required"`
	Kind   string   `json:"kind" validate:"required"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
}

// Result maps fixture keys to the ids they were stored under
type Result struct {
	Circles map[string]int64
	Users   map[string]int64
	Tasks   int
}

var errUnknownKey = errors.New("unknown key")

// Load decodes a fixture from r and writes it. Relative times are counted
// from now.
func Load(ctx context.Context, r io.Reader, store repository.Store, members MemberAdder, now time.Time) (*Result, error) {
	var f File
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}

	l := &loader{store: store, members: members, now: now, res: &Result{
		Circles: map[string]int64{},
		Users:   map[string]int64{},
	}}
	steps := []func(context.Context, *File) error{l.circles, l.users, l.tasks, l.geofences, l.thresholds}
	for _, step := range steps {
		if err := step(ctx, &f); err != nil {
			return nil, err
		}
	}
	return l.res, nil
}

type loader struct {
	store   repository.Store
	members MemberAdder
	now     time.Time
	res     *Result
}

func (l *loader) circle(key string) (int64, error) {
	id, ok := l.res.Circles[key]
	if !ok {
		return 0, fmt.Errorf("%w: circle %q", errUnknownKey, key)
	}
	return id, nil
}

func (l *loader) user(key string) (int64, error) {
	id, ok := l.res.Users[key]
	if !ok {
		return 0, fmt.Errorf("%w: user %q", errUnknownKey, key)
	}
	return id, nil
}

func (l *loader) optionalUser(key string) (*int64, error) {
	if key == "" {
		return nil, nil
	}
	id, err := l.user(key)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (l *loader) audience(a *Audience) (*models.Audience, error) {
	if a == nil {
		return nil, nil
	}
	out := &models.Audience{Scope: a.Scope}
	for _, key := range a.Users {
		id, err := l.user(key)
		if err != nil {
			return nil, err
		}
		out.UserIDs = append(out.UserIDs, id)
	}
	return out, nil
}

func (l *loader) at(d *Duration) *time.Time {
	if d == nil {
		return nil
	}
	t := l.now.Add(time.Duration(*d))
	return &t
}

func (l *loader) circles(ctx context.Context, f *File) error {
	for _, c := range f.Circles {
		if _, dup := l.res.Circles[c.Key]; dup {
			return fmt.Errorf("duplicate circle key %q", c.Key)
		}
		created, err := l.store.Circles.Create(ctx, &models.Circle{Name: c.Name})
		if err != nil {
			return fmt.Errorf("failed to seed circle %q: %w", c.Key, err)
		}
		l.res.Circles[c.Key] = created.ID
	}
	return nil
}

func (l *loader) users(ctx context.Context, f *File) error {
	for _, u := range f.Users {
		if _, dup := l.res.Users[u.Key]; dup {
			return fmt.Errorf("duplicate user key %q", u.Key)
		}
		if u.Circle != "" && u.Role == "" {
			return fmt.Errorf("user %q joins circle %q without a role", u.Key, u.Circle)
		}
		user := &models.User{Name: u.Name, Phone: u.Phone, Email: u.Email, TelegramID: u.TelegramID}
		var circleID int64
		if u.Circle != "" {
			id, err := l.circle(u.Circle)
			if err != nil {
				return err
			}
			circleID = id
			user.CircleID = &circleID
		}

		created, err := l.store.Users.Create(ctx, user)
		if err != nil {
			return fmt.Errorf("failed to seed user %q: %w", u.Key, err)
		}
		l.res.Users[u.Key] = created.ID

		if u.Circle == "" {
			continue
		}
		m := models.Membership{CircleID: circleID, UserID: created.ID, Role: u.Role, ExpiresAt: l.at(u.ExpiresIn)}
		if err := l.members.AddMember(ctx, m); err != nil {
			return fmt.Errorf("failed to seed membership of %q: %w", u.Key, err)
		}
	}
	return nil
}

func (l *loader) tasks(ctx context.Context, f *File) error {
	for i, t := range f.Tasks {
		circleID, err := l.circle(t.Circle)
		if err != nil {
			return err
		}
		assignee, err := l.optionalUser(t.Assignee)
		if err != nil {
			return err
		}
		var createdBy int64
		if t.CreatedBy != "" {
			if createdBy, err = l.user(t.CreatedBy); err != nil {
				return err
			}
		}
		aud, err := l.audience(t.Audience)
		if err != nil {
			return err
		}

		task := &models.Task{
			CircleID:    circleID,
			Title:       t.Title,
			Description: t.Description,
			CreatedByID: createdBy,
			AssigneeID:  assignee,
			Due:         l.at(t.DueIn),
			Repeat:      t.Repeat,
			ForMinor:    t.ForMinor,
			AckRequired: t.AckRequired,
			Audience:    aud,
		}
		if task.Repeat == "" {
			task.Repeat = models.TaskRepeatNone
		}
		if t.ReminderEvery != nil {
			task.ReminderEvery = time.Duration(*t.ReminderEvery)
		}
		if _, err := l.store.Tasks.Create(ctx, task); err != nil {
			return fmt.Errorf("failed to seed task %d (%q): %w", i, t.Title, err)
		}
		l.res.Tasks++
	}
	return nil
}

func (l *loader) geofences(ctx context.Context, f *File) error {
	for _, g := range f.Geofences {
		circleID, err := l.circle(g.Circle)
		if err != nil {
			return err
		}
		aud, err := l.audience(g.Audience)
		if err != nil {
			return err
		}
		fence := &models.Geofence{
			CircleID:     circleID,
			Name:         g.Name,
			Lat:          g.Lat,
			Lon:          g.Lon,
			RadiusMeters: g.RadiusMeters,
			Audience:     aud,
		}
		if _, err := l.store.Geofences.Create(ctx, fence); err != nil {
			return fmt.Errorf("failed to seed geofence %q: %w", g.Name, err)
		}
	}
	return nil
}

func (l *loader) thresholds(ctx context.Context, f *File) error {
	for _, t := range f.Thresholds {
		circleID, err := l.circle(t.Circle)
		if err != nil {
			return err
		}
		th := models.VitalThreshold{CircleID: circleID, Kind: t.Kind, Min: t.Min, Max: t.Max}
		if err := l.store.Vitals.UpsertThreshold(ctx, th); err != nil {
			return fmt.Errorf("failed to seed %s threshold: %w", t.Kind, err)
		}
	}
	return nil
}
