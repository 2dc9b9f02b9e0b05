package core

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// TotalHistory requests the history of every asset.
const TotalHistory = "TOTAL"

// HistoryDateLayout is how history timestamps are shown and searched.
const HistoryDateLayout = "2006-01-02 15:04:05"

const historyDateText = "assetHistoryDateText"

// historySearchFields feed the history search box.
var historySearchFields = []string{
	"displayId", "assetHoldEmp", "assetHoldEmpHis", "assetHistoryDesc", historyDateText,
}

// historyAliases lists the accepted spellings of each history field.
var historyAliases = map[string][]string{
	"assetHistoryId":   {"assetHistoryId", "asset_history_id", "assetHistorySeq", "asset_history_seq"},
	"assetId":          {"assetId", "asset_id"},
	"displayId":        {"displayId", "display_id"},
	"assetHoldEmp":     {"assetHoldEmp", "asset_hold_emp"},
	"assetHoldEmpHis":  {"assetHoldEmpHis", "asset_hold_emp_his"},
	"assetHistoryDesc": {"assetHistoryDesc", "asset_history_desc"},
	"assetHistoryDate": {"assetHistoryDate", "asset_history_date"},
	"isFirst":          {"isFirst", "is_first"},
	"isTransfer":       {"isTransfer", "is_transfer"},
	"isDispose":        {"isDispose", "is_dispose"},
}

// HistoryView holds the change history of one asset, or of all assets.
type HistoryView struct {
	assetID  string
	rows     []Row
	loadedAt time.Time
}

// HistoryResult is the client-facing page of history rows.
type HistoryResult struct {
	AssetID  string    `json:"assetId"`
	Rows     []Row     `json:"rows"`
	Total    int       `json:"total"`
	LoadedAt time.Time `json:"loadedAt"`
}

// LoadHistory fetches history rows. An empty asset id loads TOTAL.
func LoadHistory(ctx context.Context, be Backend, assetID string) (*HistoryView, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		assetID = TotalHistory
	}
	raw, err := be.AssetHistory(ctx, assetID)
	if err != nil {
		slog.Error("history load failed", "asset_id", assetID, "error", err)
		return nil, &RequestError{Op: "history " + assetID, Message: "변동 이력 조회에 실패했습니다.", Err: err}
	}
	rows := make([]Row, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, normalizeHistoryRow(r, assetID))
	}
	return &HistoryView{assetID: assetID, rows: rows, loadedAt: time.Now()}, nil
}

func pick(r Row, keys []string) any {
	for _, k := range keys {
		if v, ok := r[k]; ok && HasText(v) {
			return v
		}
	}
	return nil
}

func normalizeHistoryRow(r Row, assetID string) Row {
	out := make(Row, len(historyAliases)+4)
	for field, keys := range historyAliases {
		v := pick(r, keys)
		if v == nil && field != "assetHistoryDate" {
			v = ""
		}
		out[field] = v
	}
	if !HasText(out["assetId"]) && assetID != TotalHistory {
		out["assetId"] = assetID
	}
	out[historyDateText] = FormatHistoryDate(out["assetHistoryDate"])
	out["first"] = historyFlag(out["isFirst"])
	out["transfer"] = historyFlag(out["isTransfer"])
	out["dispose"] = historyFlag(out["isDispose"])
	return out
}

func historyFlag(v any) bool {
	switch strings.ToUpper(TrimText(v)) {
	case "1", "Y", "TRUE":
		return true
	}
	return false
}

// FormatHistoryDate renders a history timestamp, or "" when unparseable.
func FormatHistoryDate(v any) string {
	s := TrimText(v)
	if s == "" {
		return ""
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(HistoryDateLayout)
		}
	}
	if t, ok := ParseDate(s); ok {
		return t.Format(HistoryDateLayout)
	}
	return ""
}

// AssetID returns the asset the view covers, or TOTAL.
func (h *HistoryView) AssetID() string { return h.assetID }

// Query filters the history. A filter on assetHistoryDate matches the
// formatted timestamp.
func (h *HistoryView) Query(p QueryParams) HistoryResult {
	filters := make(ColumnFilters, len(p.Filters))
	for field, value := range p.Filters {
		if field == "assetHistoryDate" {
			field = historyDateText
		}
		filters[field] = value
	}
	active := filters.Active(nil)
	match := CompileSearch(p.Search, historySearchFields)

	out := make([]Row, 0, len(h.rows))
	for _, r := range h.rows {
		if match(r) && active.Match(r) {
			out = append(out, r.Clone())
		}
	}
	return HistoryResult{AssetID: h.assetID, Rows: out, Total: len(out), LoadedAt: h.loadedAt}
}
