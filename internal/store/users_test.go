package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/marketbook/internal/db"
	"github.com/erazemk/marketbook/internal/model"
)

func createTestUser(t *testing.T, database *sql.DB, email, role string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, "Test "+email, email, "hash", role)
	require.NoError(t, err)
	return u
}

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "Alice", "alice@x.com", "hash123", model.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.False(t, user.CreatedAt.IsZero())

	got, err := GetUser(ctx, database, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice@x.com", got.Email)
	assert.Equal(t, "hash123", got.PasswordHash)

	missing, err := GetUser(ctx, database, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEmailUniquePerRole(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	createTestUser(t, database, "alice@x.com", model.RoleUser)

	_, err := CreateUser(ctx, database, "Again", "alice@x.com", "hash", model.RoleUser)
	assert.ErrorIs(t, err, model.ErrConflict)

	// The same email may also hold an admin account.
	admin, err := CreateUser(ctx, database, "Admin Alice", "alice@x.com", "hash", model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, admin.Role)

	accounts, err := ListUsersByEmail(ctx, database, "alice@x.com")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, model.RoleUser, accounts[0].Role)

	byRole, err := GetUserByEmail(ctx, database, "alice@x.com", model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, byRole.ID)

	none, err := GetUserByEmail(ctx, database, "bob@x.com", model.RoleUser)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestListUsers(t *testing.T) {
	database := db.NewTestDB(t)

	createTestUser(t, database, "a@x.com", model.RoleUser)
	createTestUser(t, database, "b@x.com", model.RoleAdmin)

	users, err := ListUsers(context.Background(), database)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestUpdateProfile(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, database, "alice@x.com", model.RoleUser)

	updated, err := UpdateProfile(ctx, database, u.ID, model.ProfilePatch{
		Name: model.Some("Alicia"),
		Bio:  model.Some("Seller of chairs"),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", updated.Name)
	assert.Equal(t, "Seller of chairs", updated.Bio)
	assert.Equal(t, "hash", updated.PasswordHash)
	assert.True(t, updated.UpdatedAt.After(u.UpdatedAt))

	cleared, err := UpdateProfile(ctx, database, u.ID, model.ProfilePatch{Bio: model.Some("")}, "newhash")
	require.NoError(t, err)
	assert.Empty(t, cleared.Bio)
	assert.Equal(t, "Alicia", cleared.Name)
	assert.Equal(t, "newhash", cleared.PasswordHash)

	_, err = UpdateProfile(ctx, database, 999, model.ProfilePatch{}, "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateProfileEmailConflict(t *testing.T) {
	database := db.NewTestDB(t)
	alice := createTestUser(t, database, "alice@x.com", model.RoleUser)
	createTestUser(t, database, "bob@x.com", model.RoleUser)

	_, err := UpdateProfile(context.Background(), database, alice.ID, model.ProfilePatch{
		Email: model.Some("Bob@X.com"),
	}, "")
	assert.ErrorIs(t, err, model.ErrConflict)
}
