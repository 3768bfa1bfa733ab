package action

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/marketbook/internal/guard"
	"github.com/erazemk/marketbook/internal/model"
	"github.com/erazemk/marketbook/internal/store"
)

// Items is the item ledger exposed to the API.
type Items struct {
	db       *sql.DB
	pipeline *Pipeline
	logger   *slog.Logger
	now      func() time.Time
}

// NewItems creates the item service.
func NewItems(db *sql.DB, pipeline *Pipeline, logger *slog.Logger) *Items {
	return &Items{
		db:       db,
		pipeline: pipeline,
		logger:   logger.With("service", "items"),
		now:      time.Now,
	}
}

// Create adds an item owned by the actor.
func (s *Items) Create(ctx context.Context, actor *model.User, client model.ClientInfo, n model.NewItem) (*model.Item, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	return Run(ctx, s.pipeline, Step[*model.Item]{
		Operation: "item.create",
		Actor:     actor,
		Client:    client,
		Mutate: func(ctx context.Context) (*model.Item, error) {
			return store.CreateItem(ctx, s.db, actor.ID, n)
		},
		Audit: func(item *model.Item) *model.AuditEntry {
			return &model.AuditEntry{
				Action:       model.ActionCreate,
				ResourceKind: model.ResourceItem,
				ResourceID:   &item.ID,
				Details:      fmt.Sprintf("Created item: %s (Invoice: %s)", item.Name, item.InvoiceNumber),
			}
		},
		Notify: func(item *model.Item) *model.Notification {
			return &model.Notification{
				UserID:    item.CreatedBy,
				Title:     "Item Created",
				Message:   fmt.Sprintf("Your item %q has been created successfully with invoice number %s.", item.Name, item.InvoiceNumber),
				Severity:  model.SeveritySuccess,
				ActionURL: itemURL(item.ID),
			}
		},
	})
}

// Get returns an item the actor owns, or any item for admins.
func (s *Items) Get(ctx context.Context, actor *model.User, id int64) (*model.Item, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if guard.Decide(actor, guard.Owned(item.CreatedBy)) == guard.Deny {
		return nil, fmt.Errorf("%w: not authorized to view this item", model.ErrForbidden)
	}
	return item, nil
}

// List returns every item for admins and the actor's own items otherwise.
func (s *Items) List(ctx context.Context, actor *model.User) ([]model.Item, error) {
	if actor.IsAdmin() {
		return store.ListAllItems(ctx, s.db)
	}
	return store.ListItemsByOwner(ctx, s.db, actor.ID)
}

// ListAll returns every item. Admin only.
func (s *Items) ListAll(ctx context.Context, actor *model.User) ([]model.Item, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return store.ListAllItems(ctx, s.db)
}

// ByPaymentStatus lists items with the given payment status, limited to the
// actor's own items unless the actor is an admin.
func (s *Items) ByPaymentStatus(ctx context.Context, actor *model.User, status string) ([]model.Item, error) {
	if !model.ValidPaymentStatus(status) {
		return nil, model.NewValidationError("status", "must be paid, unpaid or pending")
	}
	var ownerID int64
	if !actor.IsAdmin() {
		ownerID = actor.ID
	}
	return store.ListItemsByPaymentStatus(ctx, s.db, status, ownerID)
}

// Stats summarises all items. Admin only.
func (s *Items) Stats(ctx context.Context, actor *model.User) (*model.ItemStats, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return store.ItemStats(ctx, s.db, s.now())
}

// FinancialSummary totals the actor's own items by payment status.
func (s *Items) FinancialSummary(ctx context.Context, actor *model.User) (*model.FinancialSummary, error) {
	return store.FinancialSummary(ctx, s.db, actor.ID)
}

// Update applies a sparse patch to an item.
func (s *Items) Update(ctx context.Context, actor *model.User, client model.ClientInfo, id int64, patch model.ItemPatch) (*model.Item, error) {
	var before *model.Item

	return Run(ctx, s.pipeline, Step[*model.Item]{
		Operation: "item.update",
		Actor:     actor,
		Client:    client,
		Authorize: func(ctx context.Context) (guard.Resource, error) {
			item, err := s.load(ctx, id)
			if err != nil {
				return guard.Resource{}, err
			}
			before = item
			return guard.Owned(item.CreatedBy), nil
		},
		Validate: patch.Validate,
		Mutate: func(ctx context.Context) (*model.Item, error) {
			return store.UpdateItem(ctx, s.db, id, patch)
		},
		Audit: func(item *model.Item) *model.AuditEntry {
			details := "Updated item: " + item.Name
			if changes := before.Diff(*item); len(changes) > 0 {
				details += " (" + strings.Join(changes, ", ") + ")"
			}
			return &model.AuditEntry{
				Action:       model.ActionUpdate,
				ResourceKind: model.ResourceItem,
				ResourceID:   &item.ID,
				Details:      details,
			}
		},
		Notify: func(item *model.Item) *model.Notification {
			return &model.Notification{
				UserID:    item.CreatedBy,
				Title:     "Item Updated",
				Message:   fmt.Sprintf("Your item %q has been updated.", item.Name),
				Severity:  model.SeverityInfo,
				ActionURL: itemURL(item.ID),
			}
		},
	})
}

// Delete permanently removes an item. The owner is notified, even when an
// admin deletes it.
func (s *Items) Delete(ctx context.Context, actor *model.User, client model.ClientInfo, id int64) error {
	var before *model.Item

	_, err := Run(ctx, s.pipeline, Step[*model.Item]{
		Operation: "item.delete",
		Actor:     actor,
		Client:    client,
		Authorize: func(ctx context.Context) (guard.Resource, error) {
			item, err := s.load(ctx, id)
			if err != nil {
				return guard.Resource{}, err
			}
			before = item
			return guard.Owned(item.CreatedBy), nil
		},
		Mutate: func(ctx context.Context) (*model.Item, error) {
			if err := store.DeleteItem(ctx, s.db, id); err != nil {
				return nil, err
			}
			return before, nil
		},
		Audit: func(item *model.Item) *model.AuditEntry {
			return &model.AuditEntry{
				Action:       model.ActionDelete,
				ResourceKind: model.ResourceItem,
				ResourceID:   &item.ID,
				Details:      fmt.Sprintf("Deleted item: %s (Invoice: %s)", item.Name, item.InvoiceNumber),
			}
		},
		Notify: func(item *model.Item) *model.Notification {
			return &model.Notification{
				UserID:   item.CreatedBy,
				Title:    "Item Deleted",
				Message:  fmt.Sprintf("Your item %q has been deleted.", item.Name),
				Severity: model.SeverityWarning,
			}
		},
	})
	return err
}

func (s *Items) load(ctx context.Context, id int64) (*model.Item, error) {
	item, err := store.GetItem(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", id, model.ErrNotFound)
	}
	return item, nil
}

func itemURL(id int64) string {
	return fmt.Sprintf("/items/%d", id)
}

func requireAdmin(actor *model.User) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: admin access required", model.ErrForbidden)
	}
	return nil
}
