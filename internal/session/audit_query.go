package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/assetconsole/internal/core"
)

// whereBuilder assembles an AND-ed WHERE clause, skipping empty values.
// placeholder renders the n-th (1-based) bind parameter for the dialect.
type whereBuilder struct {
	placeholder func(n int) string
	conds       []string
	args        []any
}

func newWhereBuilder(placeholder func(int) string) *whereBuilder {
	return &whereBuilder{placeholder: placeholder}
}

// Add appends "column = ?" when value is non-empty.
func (w *whereBuilder) Add(column, value string) {
	if value == "" {
		return
	}
	w.args = append(w.args, value)
	w.conds = append(w.conds, column+" = "+w.placeholder(len(w.args)))
}

// Next returns the placeholder for the next argument and records it.
func (w *whereBuilder) Next(arg any) string {
	w.args = append(w.args, arg)
	return w.placeholder(len(w.args))
}

// Build returns the WHERE clause (with a leading space) and its args.
func (w *whereBuilder) Build() (string, []any) {
	if len(w.conds) == 0 {
		return "", w.args
	}
	return " WHERE " + strings.Join(w.conds, " AND "), w.args
}

func questionMark(int) string  { return "?" }
func dollarParam(n int) string { return fmt.Sprintf("$%d", n) }

const auditColumns = `id, action, severity, table_key, user_id, user_name,
	ip_address, user_agent, row_keys, rows_affected, detail, reason, created_at`

// auditListQuery builds the paged audit listing for a dialect.
func auditListQuery(filter core.AuditLogFilter, placeholder func(int) string) (string, []any) {
	if filter.Limit <= 0 {
		filter.Limit = core.DefaultAuditLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	wb := newWhereBuilder(placeholder)
	wb.Add("table_key", filter.TableKey)
	wb.Add("action", string(filter.Action))
	where, _ := wb.Build()
	limit := wb.Next(filter.Limit)
	offset := wb.Next(filter.Offset)

	query := "SELECT " + auditColumns + " FROM audit_log" + where +
		" ORDER BY created_at DESC, id LIMIT " + limit + " OFFSET " + offset
	return query, wb.args
}

// auditRecord is the column form of an AuditEntry shared by both dialects.
type auditRecord struct {
	ID           string
	Action       string
	Severity     string
	TableKey     string
	UserID       string
	UserName     string
	IPAddress    string
	UserAgent    string
	RowKeys      []byte
	RowsAffected int
	Detail       []byte
	Reason       string
	CreatedAt    time.Time
}

func (r *auditRecord) dest() []any {
	return []any{
		&r.ID, &r.Action, &r.Severity, &r.TableKey, &r.UserID, &r.UserName,
		&r.IPAddress, &r.UserAgent, &r.RowKeys, &r.RowsAffected, &r.Detail, &r.Reason, &r.CreatedAt,
	}
}

func newAuditRecord(e core.AuditEntry) (auditRecord, error) {
	rec := auditRecord{
		ID:           e.ID,
		Action:       string(e.Action),
		Severity:     string(e.Severity),
		TableKey:     e.TableKey,
		UserID:       e.UserID,
		UserName:     e.UserName,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		RowsAffected: e.RowsAffected,
		Reason:       e.Reason,
		CreatedAt:    e.CreatedAt.UTC(),
	}
	var err error
	if rec.RowKeys, err = json.Marshal(nonNil(e.RowKeys)); err != nil {
		return rec, fmt.Errorf("encode row keys: %w", err)
	}
	if len(e.Detail) > 0 {
		if rec.Detail, err = json.Marshal(e.Detail); err != nil {
			return rec, fmt.Errorf("encode detail: %w", err)
		}
	} else {
		rec.Detail = []byte("{}")
	}
	return rec, nil
}

func (r *auditRecord) args() []any {
	return []any{
		r.ID, r.Action, r.Severity, r.TableKey, r.UserID, r.UserName,
		r.IPAddress, r.UserAgent, string(r.RowKeys), r.RowsAffected, string(r.Detail), r.Reason, r.CreatedAt,
	}
}

func (r *auditRecord) entry() (core.AuditEntry, error) {
	e := core.AuditEntry{
		ID:           r.ID,
		Action:       core.AuditAction(r.Action),
		Severity:     core.AuditSeverity(r.Severity),
		TableKey:     r.TableKey,
		UserID:       r.UserID,
		UserName:     r.UserName,
		IPAddress:    r.IPAddress,
		UserAgent:    r.UserAgent,
		RowsAffected: r.RowsAffected,
		Reason:       r.Reason,
		CreatedAt:    r.CreatedAt,
	}
	if len(r.RowKeys) > 0 {
		if err := json.Unmarshal(r.RowKeys, &e.RowKeys); err != nil {
			return e, fmt.Errorf("decode row keys: %w", err)
		}
	}
	if len(r.Detail) > 0 {
		if err := json.Unmarshal(r.Detail, &e.Detail); err != nil {
			return e, fmt.Errorf("decode detail: %w", err)
		}
		if len(e.Detail) == 0 {
			e.Detail = nil
		}
	}
	if len(e.RowKeys) == 0 {
		e.RowKeys = nil
	}
	return e, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
