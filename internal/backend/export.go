package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Export is a spreadsheet produced by the backend. The caller must close
// Body.
type Export struct {
	Body          io.ReadCloser
	ContentType   string
	Disposition   string
	ContentLength int64
}

// Close releases the response body.
func (e *Export) Close() error { return e.Body.Close() }

const spreadsheetType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportAssets streams the asset spreadsheet for the given filters.
func (c *Conn) ExportAssets(ctx context.Context, query url.Values) (*Export, error) {
	return c.export(ctx, "/assets/export", query)
}

// ExportEmployees streams the employee spreadsheet for the given filters.
func (c *Conn) ExportEmployees(ctx context.Context, query url.Values) (*Export, error) {
	return c.export(ctx, "/emp/export", query)
}

// ExportHistory streams the history spreadsheet of one asset, or of every
// asset when assetID is empty.
func (c *Conn) ExportHistory(ctx context.Context, assetID string, query url.Values) (*Export, error) {
	path := "/assets/history/export"
	if id := strings.TrimSpace(assetID); id != "" {
		path += "/" + url.PathEscape(id)
	}
	return c.export(ctx, path, query)
}

func (c *Conn) export(ctx context.Context, path string, query url.Values) (*Export, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", spreadsheetType+", application/octet-stream")
	resp, err := c.send(req)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = spreadsheetType
	}
	return &Export{
		Body:          resp.Body,
		ContentType:   ct,
		Disposition:   resp.Header.Get("Content-Disposition"),
		ContentLength: resp.ContentLength,
	}, nil
}
