package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/carecircle/internal/audience"
	"github.com/Kerhoff/carecircle/internal/membership"
	"github.com/Kerhoff/carecircle/internal/metrics"
	"github.com/Kerhoff/carecircle/internal/models"
	"github.com/Kerhoff/carecircle/internal/repository"
)

var (
	// ErrTaskNotFound is returned when a task id does not resolve
	ErrTaskNotFound = errors.New("task not found")
	// ErrUserNotFound is returned when a user id does not resolve
	ErrUserNotFound = errors.New("user not found")
	// ErrForbidden is returned when the actor may not act on the record
	ErrForbidden = errors.New("not allowed")
	// ErrAlreadyCompleted is returned when a completed task is acted on
	ErrAlreadyCompleted = errors.New("task already completed")
	// ErrNoCircle is returned when a user has no active circle
	ErrNoCircle = errors.New("user has no active circle")
	// ErrNotActiveCircle is returned when a reading names a circle other
	// than the user's active one
	ErrNotActiveCircle = errors.New("circle is not the user's active circle")
)

// Notifier delivers a notification on every channel of its circle.
// *fanout.Hub satisfies it.
type Notifier interface {
	Fanout(ctx context.Context, n models.Notification)
}

// Service is the central business logic layer. It owns the scheduler tick
// and every other write to task escalation state.
type Service struct {
	logger   *logrus.Logger
	store    repository.Store
	members  *membership.Registry
	resolver *audience.Resolver
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time

	// writeMu serialises ticks with acknowledgment and completion
	writeMu    sync.Mutex
	stageMarks map[int64]models.EscalationStage
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics sets the collectors the scheduler reports to
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a new Service with all required dependencies.
func New(logger *logrus.Logger, store repository.Store, members *membership.Registry, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		logger:     logger,
		store:      store,
		members:    members,
		resolver:   audience.NewResolver(members),
		notifier:   notifier,
		now:        time.Now,
		stageMarks: make(map[int64]models.EscalationStage),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	return s
}

// Resolver returns the audience resolver backed by the service's registry
func (s *Service) Resolver() *audience.Resolver {
	return s.resolver
}

// IsMember reports whether userID is an active member of circleID
func (s *Service) IsMember(circleID, userID int64) bool {
	return s.members.IsMember(circleID, userID)
}

// LoadMemberships hydrates the registry from persistence
func (s *Service) LoadMemberships(ctx context.Context) error {
	rows, err := s.store.Memberships.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load memberships: %w", err)
	}
	s.members.Load(rows)
	s.logger.Infof("Loaded %d memberships", len(rows))
	return nil
}

// AddMember persists a membership and makes it effective immediately
func (s *Service) AddMember(ctx context.Context, m models.Membership) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = s.now()
	}
	if err := s.store.Memberships.Upsert(ctx, m); err != nil {
		return fmt.Errorf("failed to add user %d to circle %d: %w", m.UserID, m.CircleID, err)
	}
	s.members.Add(m)
	return nil
}

// RemoveMember deletes a membership everywhere
func (s *Service) RemoveMember(ctx context.Context, circleID, userID int64) error {
	if err := s.store.Memberships.Delete(ctx, circleID, userID); err != nil {
		return fmt.Errorf("failed to remove user %d from circle %d: %w", userID, circleID, err)
	}
	s.members.Remove(circleID, userID)
	return nil
}

// UserByTelegramID returns the user linked to a Telegram account, or
// ErrUserNotFound.
func (s *Service) UserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	user, err := s.store.Users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup user (telegram_id=%d): %w", telegramID, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// RegisterPush enrols a Telegram chat as the push endpoint of the user
// linked to telegramID, for the user's active circle.
func (s *Service) RegisterPush(ctx context.Context, telegramID, chatID int64) (*models.User, error) {
	user, err := s.UserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if user.CircleID == nil || !s.members.IsMember(*user.CircleID, user.ID) {
		return nil, ErrNoCircle
	}

	sub := &models.PushSubscription{CircleID: *user.CircleID, UserID: user.ID, ChatID: chatID}
	if _, err := s.store.Push.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to register push for user %d: %w", user.ID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":   user.ID,
		"circle_id": *user.CircleID,
		"chat_id":   chatID,
	}).Info("Registered push endpoint")
	return user, nil
}

// VisibleTasks lists the tasks of a circle the viewer may see
func (s *Service) VisibleTasks(ctx context.Context, viewerID, circleID int64) ([]*models.Task, error) {
	if !s.members.IsMember(circleID, viewerID) {
		return nil, ErrForbidden
	}

	tasks, err := s.store.Tasks.ListByCircle(ctx, circleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks for circle %d: %w", circleID, err)
	}

	visible := make([]*models.Task, 0, len(tasks))
	for _, t := range tasks {
		if s.resolver.CanView(viewerID, circleID, t.Audience) {
			visible = append(visible, t)
		}
	}
	return visible, nil
}

func (s *Service) notify(ctx context.Context, circleID int64, kind models.Kind, message string, payload models.Payload, aud *models.Audience) {
	s.notifier.Fanout(ctx, models.NewNotification(circleID, kind, message, payload, aud, s.now()))
}

func (s *Service) displayName(ctx context.Context, userID int64) string {
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil || user == nil {
		return "someone"
	}
	return user.DisplayName()
}
