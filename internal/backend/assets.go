package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/JonMunkholm/assetconsole/internal/core"
)

// ListAssets returns the assets with the given status ("" for the
// backend's default).
func (c *Conn) ListAssets(ctx context.Context, status string) ([]core.Row, error) {
	q := pageQuery()
	if status != "" {
		q.Set("assetStatus", status)
	}
	return c.getRows(ctx, "/assets", q)
}

// AssetSerials returns every serial number known to the backend.
func (c *Conn) AssetSerials(ctx context.Context) ([]string, error) {
	return c.getStrings(ctx, "/assets/sn", nil)
}

// NextAssetID returns the next free identifier for an asset type.
func (c *Conn) NextAssetID(ctx context.Context, assetType string) (string, error) {
	return c.getScalar(ctx, "/assets/nextId", url.Values{"assetType": {assetType}})
}

// AssetHistory returns the change history of one asset, or of every asset
// when assetID is core.TotalHistory.
func (c *Conn) AssetHistory(ctx context.Context, assetID string) ([]core.Row, error) {
	if strings.TrimSpace(assetID) == "" {
		assetID = core.TotalHistory
	}
	return c.getRows(ctx, "/assets/history/"+url.PathEscape(assetID), nil)
}

// UpdateAssets sends a bulk update.
func (c *Conn) UpdateAssets(ctx context.Context, payload []core.Row) error {
	return c.do(ctx, http.MethodPatch, "/assets/bulkUpdate", nil, payload, nil)
}

// DisposeAssets marks assets as disposed.
func (c *Conn) DisposeAssets(ctx context.Context, payload []core.Row) error {
	return c.do(ctx, http.MethodPatch, "/assets/dispose", nil, payload, nil)
}

// CreateAssets registers new assets.
func (c *Conn) CreateAssets(ctx context.Context, payload []core.Row) error {
	return c.do(ctx, http.MethodPost, "/assets", nil, payload, nil)
}
