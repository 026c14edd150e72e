// Package channels holds the external best-effort notification sinks that
// reach members directly: SMS through Twilio and e-mail through SendGrid.
package channels

import (
	"context"
	"fmt"

	"github.com/Kerhoff/carecircle/internal/models"
	"github.com/Kerhoff/carecircle/internal/repository"
)

// recipients returns the users of a circle that allow accepts and that have
// a contact address picked by contact.
func recipients(ctx context.Context, users repository.UserRepository, circleID int64, allow func(int64) bool, contact func(*models.User) string) ([]*models.User, error) {
	all, err := users.ListByCircle(ctx, circleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users for circle %d: %w", circleID, err)
	}

	out := make([]*models.User, 0, len(all))
	for _, u := range all {
		if contact(u) == "" || !allow(u.ID) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}
