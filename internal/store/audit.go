package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/erazemk/marketbook/internal/model"
)

// Audit log page size bounds.
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 200
)

// CreateAuditEntry appends an audit entry. Entries are never updated or deleted.
func CreateAuditEntry(ctx context.Context, db *sql.DB, e model.AuditEntry) (*model.AuditEntry, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	var resourceID sql.NullInt64
	if e.ResourceID != nil {
		resourceID = sql.NullInt64{Int64: *e.ResourceID, Valid: true}
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO audit_logs (actor_user_id, action, resource_kind, resource_id, details, ip_address, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ActorUserID, e.Action, e.ResourceKind, resourceID, e.Details, e.IPAddress, e.UserAgent, e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating audit entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting audit entry id: %w", err)
	}
	e.ID = id
	return &e, nil
}

// ListAuditEntries returns one page of audit entries, newest first, joined
// with the acting user. Out-of-range page and limit values are clamped.
func ListAuditEntries(ctx context.Context, db *sql.DB, page, limit int) (*model.AuditPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	query, args, err := sq.Select(
		"a.id", "a.actor_user_id", "a.action", "a.resource_kind", "a.resource_id", "a.details",
		"a.ip_address", "a.user_agent", "a.created_at", "u.id", "u.name", "u.email",
	).
		From("audit_logs a").
		LeftJoin("users u ON u.id = a.actor_user_id").
		OrderBy("a.created_at DESC", "a.id DESC").
		Limit(uint64(limit)).
		Offset(uint64((page - 1) * limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building audit query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	logs := []model.AuditEntry{}
	for rows.Next() {
		var (
			e          model.AuditEntry
			resourceID sql.NullInt64
			actorID    sql.NullInt64
			actorName  sql.NullString
			actorEmail sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ActorUserID, &e.Action, &e.ResourceKind, &resourceID, &e.Details,
			&e.IPAddress, &e.UserAgent, &e.CreatedAt, &actorID, &actorName, &actorEmail); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if resourceID.Valid {
			id := resourceID.Int64
			e.ResourceID = &id
		}
		if actorID.Valid {
			e.Actor = &model.UserRef{ID: actorID.Int64, Name: actorName.String, Email: actorEmail.String}
		}
		logs = append(logs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}

	return &model.AuditPage{
		Logs: logs,
		Pagination: model.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	}, nil
}

// AuditLog records audit entries in the database.
type AuditLog struct {
	DB *sql.DB
}

// Record appends e to the audit log.
func (a AuditLog) Record(ctx context.Context, e model.AuditEntry) error {
	_, err := CreateAuditEntry(ctx, a.DB, e)
	return err
}
