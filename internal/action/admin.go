package action

import (
	"context"
	"database/sql"
	"time"

	"github.com/erazemk/marketbook/internal/model"
	"github.com/erazemk/marketbook/internal/store"
)

// Admin serves the admin-only reporting views.
type Admin struct {
	db  *sql.DB
	now func() time.Time
}

// NewAdmin creates the admin service.
func NewAdmin(db *sql.DB) *Admin {
	return &Admin{db: db, now: time.Now}
}

// AuditLogs returns one page of the audit log.
func (s *Admin) AuditLogs(ctx context.Context, actor *model.User, page, limit int) (*model.AuditPage, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return store.ListAuditEntries(ctx, s.db, page, limit)
}

// DashboardStats summarises users and recent activity.
func (s *Admin) DashboardStats(ctx context.Context, actor *model.User) (*model.DashboardStats, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return store.DashboardStats(ctx, s.db, s.now())
}
