package model

import "time"

// AuditEntry is an immutable record of an action taken by a user.
type AuditEntry struct {
	ID           int64     `json:"id"`
	ActorUserID  int64     `json:"actorUserId"`
	Action       string    `json:"action"`
	ResourceKind string    `json:"resourceKind"`
	ResourceID   *int64    `json:"resourceId,omitempty"`
	Details      string    `json:"details"`
	IPAddress    string    `json:"ipAddress,omitempty"`
	UserAgent    string    `json:"userAgent,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`

	// Joined fields (not always populated).
	Actor *UserRef `json:"actor,omitempty"`
}

// Audit actions.
const (
	ActionCreate   = "CREATE"
	ActionUpdate   = "UPDATE"
	ActionDelete   = "DELETE"
	ActionLogin    = "LOGIN"
	ActionLogout   = "LOGOUT"
	ActionRegister = "REGISTER"
)

// Audited resource kinds.
const (
	ResourceItem    = "ITEM"
	ResourceUser    = "USER"
	ResourceProfile = "PROFILE"
)

// ClientInfo identifies where a request came from, for audit records.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// Pagination describes one page of a longer listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// AuditPage is one page of audit entries, newest first.
type AuditPage struct {
	Logs       []AuditEntry `json:"logs"`
	Pagination Pagination   `json:"pagination"`
}
