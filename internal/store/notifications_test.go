package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/marketbook/internal/db"
	"github.com/erazemk/marketbook/internal/model"
)

func TestNotifications(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, database, "alice@x.com", model.RoleUser)
	bob := createTestUser(t, database, "bob@x.com", model.RoleUser)

	n, err := CreateNotification(ctx, database, model.Notification{
		UserID:  alice.ID,
		Title:   "Item Created",
		Message: "created",
	})
	require.NoError(t, err)
	assert.Equal(t, model.SeverityInfo, n.Severity)
	assert.False(t, n.Read)

	require.NoError(t, Notifications{DB: database}.Notify(ctx, model.Notification{
		UserID: bob.ID, Title: "Hi", Message: "m", Severity: model.SeverityWarning,
	}))

	list, err := ListNotifications(ctx, database, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Item Created", list[0].Title)

	missing, err := GetNotification(ctx, database, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMarkNotificationReadIsIdempotent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, database, "alice@x.com", model.RoleUser)

	n, err := CreateNotification(ctx, database, model.Notification{UserID: alice.ID, Title: "t", Message: "m"})
	require.NoError(t, err)

	for range 2 {
		read, err := MarkNotificationRead(ctx, database, n.ID)
		require.NoError(t, err)
		assert.True(t, read.Read)
	}

	_, err = MarkNotificationRead(ctx, database, 999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListNotificationsLimit(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, database, "alice@x.com", model.RoleUser)

	for i := range NotificationListLimit + 5 {
		_, err := CreateNotification(ctx, database, model.Notification{
			UserID: alice.ID, Title: fmt.Sprintf("n%d", i), Message: "m",
		})
		require.NoError(t, err)
	}

	list, err := ListNotifications(ctx, database, alice.ID)
	require.NoError(t, err)
	assert.Len(t, list, NotificationListLimit)
	assert.Equal(t, fmt.Sprintf("n%d", NotificationListLimit+4), list[0].Title)
}
