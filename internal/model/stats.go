package model

// ItemStats summarises all items for the admin dashboard.
type ItemStats struct {
	TotalItems      int             `json:"totalItems"`
	InStockItems    int             `json:"inStockItems"`
	OutOfStockItems int             `json:"outOfStockItems"`
	PaidItems       int             `json:"paidItems"`
	UnpaidItems     int             `json:"unpaidItems"`
	PendingItems    int             `json:"pendingItems"`
	RecentItems     int             `json:"recentItems"`
	ItemsByCategory []CategoryStats `json:"itemsByCategory"`
	PaymentStats    []PaymentStats  `json:"paymentStats"`
}

// CategoryStats is the item count and average price of one category.
type CategoryStats struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	AvgPrice float64 `json:"avgPrice"`
}

// PaymentStats is the item count and total price for one payment status.
type PaymentStats struct {
	Status      string  `json:"status"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"totalAmount"`
}

// FinancialSummary totals one owner's items by payment status.
type FinancialSummary struct {
	TotalAmount   float64 `json:"totalAmount"`
	PaidAmount    float64 `json:"paidAmount"`
	UnpaidAmount  float64 `json:"unpaidAmount"`
	PendingAmount float64 `json:"pendingAmount"`
	TotalItems    int     `json:"totalItems"`
	PaidItems     int     `json:"paidItems"`
	UnpaidItems   int     `json:"unpaidItems"`
}

// DashboardStats summarises users and audit activity for admins.
type DashboardStats struct {
	Stats struct {
		TotalUsers        int `json:"totalUsers"`
		TotalAdmins       int `json:"totalAdmins"`
		TotalRegularUsers int `json:"totalRegularUsers"`
		RecentUsers       int `json:"recentUsers"`
		RecentActivity    int `json:"recentActivity"`
	} `json:"stats"`
	ActivityByAction []ActionCount `json:"activityByAction"`
	RecentLogs       []AuditEntry  `json:"recentLogs"`
}

// ActionCount is the number of audit entries for one action.
type ActionCount struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}
