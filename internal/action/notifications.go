package action

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/marketbook/internal/guard"
	"github.com/erazemk/marketbook/internal/model"
	"github.com/erazemk/marketbook/internal/store"
)

// Notifications lets users read and acknowledge their notifications.
type Notifications struct {
	db       *sql.DB
	pipeline *Pipeline
}

// NewNotifications creates the notification service.
func NewNotifications(db *sql.DB, pipeline *Pipeline) *Notifications {
	return &Notifications{db: db, pipeline: pipeline}
}

// List returns the actor's newest notifications.
func (s *Notifications) List(ctx context.Context, actor *model.User) ([]model.Notification, error) {
	return store.ListNotifications(ctx, s.db, actor.ID)
}

// MarkRead marks one of the actor's notifications as read. Repeating the
// call is harmless. A missing notification is reported before ownership.
func (s *Notifications) MarkRead(ctx context.Context, actor *model.User, id int64) (*model.Notification, error) {
	return Run(ctx, s.pipeline, Step[*model.Notification]{
		Operation: "notification.read",
		Actor:     actor,
		Authorize: func(ctx context.Context) (guard.Resource, error) {
			n, err := store.GetNotification(ctx, s.db, id)
			if err != nil {
				return guard.Resource{}, err
			}
			if n == nil {
				return guard.Resource{}, fmt.Errorf("notification %d: %w", id, model.ErrNotFound)
			}
			return guard.Self(n.UserID), nil
		},
		Mutate: func(ctx context.Context) (*model.Notification, error) {
			return store.MarkNotificationRead(ctx, s.db, id)
		},
	})
}
