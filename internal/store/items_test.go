package store

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/marketbook/internal/db"
	"github.com/erazemk/marketbook/internal/model"
)

func chair() model.NewItem {
	return model.NewItem{Name: "Chair", Description: "Wood chair", Category: "Furniture", Price: 5000}
}

func TestCreateAndGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, database, "alice@x.com", model.RoleUser)

	item, err := CreateItem(ctx, database, alice.ID, chair())
	require.NoError(t, err)
	assert.Equal(t, "Chair", item.Name)
	assert.Equal(t, 5000.0, item.Price)
	assert.True(t, item.InStock)
	assert.Equal(t, model.PaymentUnpaid, item.PaymentStatus)
	assert.Regexp(t, regexp.MustCompile(`^INV-\d{6}-\d{3}$`), item.InvoiceNumber)
	assert.Equal(t, alice.ID, item.CreatedBy)
	require.NotNil(t, item.Owner)
	assert.Equal(t, "alice@x.com", item.Owner.Email)
	assert.NotNil(t, item.MediaFiles)
	assert.Empty(t, item.MediaFiles)
	assert.Nil(t, item.DueDate)

	missing, err := GetItem(ctx, database, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateItemWithOptionalFields(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, database, "alice@x.com", model.RoleUser)

	due := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	n := chair()
	n.InStock = model.Some(false)
	n.PaymentStatus = model.PaymentPending
	n.InvoiceNumber = "INV-CUSTOM-1"
	n.DueDate = &due
	n.MediaFiles = []model.MediaFile{
		{URL: "/media/a.jpg", Kind: model.MediaImage, Filename: "a.jpg", Size: 10},
		{URL: "/media/b.mp4", Kind: model.MediaVideo, Filename: "b.mp4", Size: 20},
	}

	item, err := CreateItem(ctx, database, alice.ID, n)
	require.NoError(t, err)
	assert.False(t, item.InStock)
	assert.Equal(t, model.PaymentPending, item.PaymentStatus)
	assert.Equal(t, "INV-CUSTOM-1", item.InvoiceNumber)
	require.NotNil(t, item.DueDate)
	assert.True(t, due.Equal(*item.DueDate))
	require.Len(t, item.MediaFiles, 2)
	assert.Equal(t, "a.jpg", item.MediaFiles[0].Filename)
	assert.Equal(t, model.MediaVideo, item.MediaFiles[1].Kind)

	_, err = CreateItem(ctx, database, alice.ID, n)
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestCreateItemRetriesInvoiceCollision(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, database, "alice@x.com", model.RoleUser)

	original := nextInvoiceNumber
	t.Cleanup(func() { nextInvoiceNumber = original })

	calls := 0
	nextInvoiceNumber = func() string {
		calls++
		if calls <= 2 {
			return "INV-000001-001"
		}
		return "INV-000001-002"
	}

	first, err := CreateItem(ctx, database, alice.ID, chair())
	require.NoError(t, err)
	assert.Equal(t, "INV-000001-001", first.InvoiceNumber)

	second, err := CreateItem(ctx, database, alice.ID, chair())
	require.NoError(t, err)
	assert.Equal(t, "INV-000001-002", second.InvoiceNumber)
	assert.Equal(t, 3, calls)
}

func TestCreateItemInvoiceRetriesExhausted(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, database, "alice@x.com", model.RoleUser)

	original := nextInvoiceNumber
	t.Cleanup(func() { nextInvoiceNumber = original })
	nextInvoiceNumber = func() string { return "INV-123456-789" }

	_, err := CreateItem(ctx, database, alice.ID, chair())
	require.NoError(t, err)

	_, err = CreateItem(ctx, database, alice.ID, chair())
	assert.ErrorIs(t, err, model.ErrConflict)

	items, err := ListAllItems(ctx, database)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestListItems(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, database, "alice@x.com", model.RoleUser)
	bob := createTestUser(t, database, "bob@x.com", model.RoleUser)

	for i := range 3 {
		n := chair()
		n.Name = fmt.Sprintf("Chair %d", i)
		if i == 0 {
			n.PaymentStatus = model.PaymentPaid
		}
		_, err := CreateItem(ctx, database, alice.ID, n)
		require.NoError(t, err)
	}
	_, err := CreateItem(ctx, database, bob.ID, chair())
	require.NoError(t, err)

	own, err := ListItemsByOwner(ctx, database, alice.ID)
	require.NoError(t, err)
	require.Len(t, own, 3)
	assert.Equal(t, "Chair 2", own[0].Name, "newest first")

	all, err := ListAllItems(ctx, database)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	unpaidAll, err := ListItemsByPaymentStatus(ctx, database, model.PaymentUnpaid, 0)
	require.NoError(t, err)
	assert.Len(t, unpaidAll, 3)

	unpaidAlice, err := ListItemsByPaymentStatus(ctx, database, model.PaymentUnpaid, alice.ID)
	require.NoError(t, err)
	assert.Len(t, unpaidAlice, 2)

	none, err := ListItemsByOwner(ctx, database, 999)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestUpdateItemSparseMerge(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, database, "alice@x.com", model.RoleUser)

	n := chair()
	n.Notes = "fragile"
	n.CustomerName = "Carol"
	n.MediaFiles = []model.MediaFile{{URL: "/media/a.jpg", Kind: model.MediaImage, Filename: "a.jpg"}}
	item, err := CreateItem(ctx, database, alice.ID, n)
	require.NoError(t, err)

	updated, err := UpdateItem(ctx, database, item.ID, model.ItemPatch{
		Price:         model.Some(0.0),
		InStock:       model.Some(false),
		Notes:         model.Some(""),
		PaymentStatus: model.Some(model.PaymentPaid),
		MediaFiles:    []model.MediaFile{{URL: "/media/b.jpg", Kind: model.MediaImage, Filename: "b.jpg"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, updated.Price)
	assert.False(t, updated.InStock)
	assert.Empty(t, updated.Notes)
	assert.Equal(t, model.PaymentPaid, updated.PaymentStatus)
	assert.Equal(t, "Carol", updated.CustomerName, "absent fields are untouched")
	assert.Equal(t, "Chair", updated.Name)
	assert.Equal(t, item.InvoiceNumber, updated.InvoiceNumber)
	require.Len(t, updated.MediaFiles, 2)
	assert.Equal(t, "a.jpg", updated.MediaFiles[0].Filename)
	assert.Equal(t, "b.jpg", updated.MediaFiles[1].Filename)
}

func TestUpdateItemEmptyPatch(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, database, "alice@x.com", model.RoleUser)

	item, err := CreateItem(ctx, database, alice.ID, chair())
	require.NoError(t, err)

	updated, err := UpdateItem(ctx, database, item.ID, model.ItemPatch{})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(item.UpdatedAt))
	assert.True(t, updated.CreatedAt.Equal(item.CreatedAt))

	updated.CreatedAt, updated.UpdatedAt = item.CreatedAt, item.UpdatedAt
	assert.Equal(t, item, updated)
}

func TestUpdateItemDueDate(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, database, "alice@x.com", model.RoleUser)
	item, err := CreateItem(ctx, database, alice.ID, chair())
	require.NoError(t, err)

	due := time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)
	withDue, err := UpdateItem(ctx, database, item.ID, model.ItemPatch{DueDate: model.Some(&due)})
	require.NoError(t, err)
	require.NotNil(t, withDue.DueDate)
	assert.True(t, due.Equal(*withDue.DueDate))

	cleared, err := UpdateItem(ctx, database, item.ID, model.ItemPatch{DueDate: model.Some[*time.Time](nil)})
	require.NoError(t, err)
	assert.Nil(t, cleared.DueDate)
}

func TestUpdateAndDeleteMissingItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, err := UpdateItem(ctx, database, 42, model.ItemPatch{Name: model.Some("x")})
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.ErrorIs(t, DeleteItem(ctx, database, 42), model.ErrNotFound)
}

func TestDeleteItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, database, "alice@x.com", model.RoleUser)

	n := chair()
	n.MediaFiles = []model.MediaFile{{URL: "/media/a.jpg", Kind: model.MediaImage}}
	item, err := CreateItem(ctx, database, alice.ID, n)
	require.NoError(t, err)

	require.NoError(t, DeleteItem(ctx, database, item.ID))

	got, err := GetItem(ctx, database, item.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	var media int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM item_media`).Scan(&media))
	assert.Zero(t, media)
}
