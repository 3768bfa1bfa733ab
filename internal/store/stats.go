package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/erazemk/marketbook/internal/model"
)

// RecentWindow is how far back "recent" items, users and activity reach.
const RecentWindow = 30 * 24 * time.Hour

// ItemStats summarises every item in the store.
func ItemStats(ctx context.Context, db *sql.DB, now time.Time) (*model.ItemStats, error) {
	items, err := ListAllItems(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("loading items for stats: %w", err)
	}
	stats := ComputeItemStats(items, now)
	return &stats, nil
}

// FinancialSummary totals the items owned by ownerID.
func FinancialSummary(ctx context.Context, db *sql.DB, ownerID int64) (*model.FinancialSummary, error) {
	items, err := ListItemsByOwner(ctx, db, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading items for summary: %w", err)
	}
	summary := ComputeFinancialSummary(items)
	return &summary, nil
}

// ComputeItemStats reduces items into counts by stock and payment status,
// per-category counts with average price, and the number created within
// RecentWindow of now.
func ComputeItemStats(items []model.Item, now time.Time) model.ItemStats {
	stats := model.ItemStats{
		TotalItems:      len(items),
		ItemsByCategory: []model.CategoryStats{},
		PaymentStats:    []model.PaymentStats{},
	}

	type categoryAcc struct {
		count int
		sum   float64
	}
	categories := map[string]*categoryAcc{}
	payments := map[string]*model.PaymentStats{}
	cutoff := now.Add(-RecentWindow)

	for _, item := range items {
		if item.InStock {
			stats.InStockItems++
		} else {
			stats.OutOfStockItems++
		}
		switch item.PaymentStatus {
		case model.PaymentPaid:
			stats.PaidItems++
		case model.PaymentUnpaid:
			stats.UnpaidItems++
		case model.PaymentPending:
			stats.PendingItems++
		}
		if !item.CreatedAt.Before(cutoff) {
			stats.RecentItems++
		}

		c, ok := categories[item.Category]
		if !ok {
			c = &categoryAcc{}
			categories[item.Category] = c
		}
		c.count++
		c.sum += item.Price

		p, ok := payments[item.PaymentStatus]
		if !ok {
			p = &model.PaymentStats{Status: item.PaymentStatus}
			payments[item.PaymentStatus] = p
		}
		p.Count++
		p.TotalAmount += item.Price
	}

	for name, c := range categories {
		stats.ItemsByCategory = append(stats.ItemsByCategory, model.CategoryStats{
			Category: name,
			Count:    c.count,
			AvgPrice: c.sum / float64(c.count),
		})
	}
	sort.Slice(stats.ItemsByCategory, func(i, j int) bool {
		a, b := stats.ItemsByCategory[i], stats.ItemsByCategory[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})

	for _, p := range payments {
		stats.PaymentStats = append(stats.PaymentStats, *p)
	}
	sort.Slice(stats.PaymentStats, func(i, j int) bool {
		return stats.PaymentStats[i].Status < stats.PaymentStats[j].Status
	})

	return stats
}

// ComputeFinancialSummary sums prices and counts items by payment status.
func ComputeFinancialSummary(items []model.Item) model.FinancialSummary {
	var s model.FinancialSummary
	for _, item := range items {
		s.TotalItems++
		s.TotalAmount += item.Price
		switch item.PaymentStatus {
		case model.PaymentPaid:
			s.PaidAmount += item.Price
			s.PaidItems++
		case model.PaymentUnpaid:
			s.UnpaidAmount += item.Price
			s.UnpaidItems++
		case model.PaymentPending:
			s.PendingAmount += item.Price
		}
	}
	return s
}

// DashboardStats summarises users and audit activity.
func DashboardStats(ctx context.Context, db *sql.DB, now time.Time) (*model.DashboardStats, error) {
	stats := &model.DashboardStats{
		ActivityByAction: []model.ActionCount{},
	}
	cutoff := now.Add(-RecentWindow).UTC()

	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN role = 'admin' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN role = 'user' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
		 FROM users`, cutoff,
	).Scan(&stats.Stats.TotalUsers, &stats.Stats.TotalAdmins, &stats.Stats.TotalRegularUsers, &stats.Stats.RecentUsers)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}

	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_logs WHERE created_at >= ?`, cutoff,
	).Scan(&stats.Stats.RecentActivity)
	if err != nil {
		return nil, fmt.Errorf("counting recent activity: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT action, COUNT(*) FROM audit_logs
		 WHERE created_at >= ?
		 GROUP BY action ORDER BY COUNT(*) DESC, action`, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("grouping activity: %w", err)
	}
	for rows.Next() {
		var ac model.ActionCount
		if err := rows.Scan(&ac.Action, &ac.Count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		stats.ActivityByAction = append(stats.ActivityByAction, ac)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("grouping activity: %w", err)
	}

	page, err := ListAuditEntries(ctx, db, 1, 10)
	if err != nil {
		return nil, err
	}
	stats.RecentLogs = page.Logs

	return stats, nil
}
