package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionLogin      AuditAction = "login"
	ActionLogout     AuditAction = "logout"
	ActionBulkUpdate AuditAction = "bulk_update"
	ActionDispose    AuditAction = "dispose"
	ActionResign     AuditAction = "resign"
	ActionRegister   AuditAction = "register"
	ActionGrantAuth  AuditAction = "grant_auth"
	ActionRevokeAuth AuditAction = "revoke_auth"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID           string         `json:"id"`
	Action       AuditAction    `json:"action"`
	Severity     AuditSeverity  `json:"severity"`
	TableKey     string         `json:"tableKey,omitempty"`
	UserID       string         `json:"userId,omitempty"`
	UserName     string         `json:"userName,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	RowKeys      []string       `json:"rowKeys,omitempty"`
	RowsAffected int            `json:"rowsAffected,omitempty"`
	Detail       map[string]any `json:"detail,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// AuditLogFilter contains filtering options for querying audit logs.
type AuditLogFilter struct {
	TableKey string
	Action   AuditAction
	Limit    int
	Offset   int
}

// DefaultAuditLimit caps audit queries without an explicit limit.
const DefaultAuditLimit = 100

// AuditStore persists audit entries. Implemented by the session stores.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, filter AuditLogFilter) ([]AuditEntry, error)
}

// AuditLogParams contains parameters for creating an audit log entry.
type AuditLogParams struct {
	Action       AuditAction
	TableKey     string
	RowKeys      []string
	RowsAffected int
	Detail       map[string]any
	Reason       string
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionDispose, ActionResign, ActionGrantAuth, ActionRevokeAuth:
		return SeverityHigh
	case ActionLogin, ActionLogout:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// Auditor stamps and stores audit entries. A nil store disables auditing.
type Auditor struct {
	store AuditStore
	now   func() time.Time
}

// NewAuditor creates an auditor writing to store.
func NewAuditor(store AuditStore) *Auditor {
	return &Auditor{store: store, now: time.Now}
}

// Log records an action. The user, IP address and user agent come from ctx.
// Storage failures are logged and swallowed: an audit hiccup never undoes a
// change the backend already accepted.
func (a *Auditor) Log(ctx context.Context, params AuditLogParams) *AuditEntry {
	if a == nil || a.store == nil {
		return nil
	}
	user := UserFromContext(ctx)
	entry := AuditEntry{
		ID:           uuid.NewString(),
		Action:       params.Action,
		Severity:     determineSeverity(params.Action),
		TableKey:     params.TableKey,
		UserID:       user.UserID,
		UserName:     user.Name,
		IPAddress:    GetIPAddressFromContext(ctx),
		UserAgent:    GetUserAgentFromContext(ctx),
		RowKeys:      params.RowKeys,
		RowsAffected: params.RowsAffected,
		Detail:       params.Detail,
		Reason:       params.Reason,
		CreatedAt:    a.now().UTC(),
	}
	if entry.RowsAffected == 0 {
		entry.RowsAffected = len(params.RowKeys)
	}
	if err := a.store.AppendAudit(context.WithoutCancel(ctx), entry); err != nil {
		slog.Error("audit append failed", "action", entry.Action, "table", entry.TableKey, "error", err)
		return nil
	}
	return &entry
}

// List returns audit entries, newest first.
func (a *Auditor) List(ctx context.Context, filter AuditLogFilter) ([]AuditEntry, error) {
	if a == nil || a.store == nil {
		return nil, nil
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultAuditLimit
	}
	return a.store.ListAudit(ctx, filter)
}
