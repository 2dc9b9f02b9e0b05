package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/assetconsole/internal/core"
)

// ListEmployees returns every employee. Some backend builds reject paging
// parameters on /emp, so a failed paged request is retried bare.
func (c *Conn) ListEmployees(ctx context.Context) ([]core.Row, error) {
	rows, err := c.getRows(ctx, "/emp", pageQuery())
	if err == nil {
		return rows, nil
	}
	if errors.Is(err, core.ErrUnauthorized) || ctx.Err() != nil {
		return nil, err
	}
	return c.getRows(ctx, "/emp", nil)
}

// EmployeeIDs returns every employee id known to the backend.
func (c *Conn) EmployeeIDs(ctx context.Context) ([]string, error) {
	return c.getStrings(ctx, "/emp/ids", nil)
}

// Teams returns the team names.
func (c *Conn) Teams(ctx context.Context) ([]string, error) {
	return c.getStrings(ctx, "/team", nil)
}

// Positions returns the position names.
func (c *Conn) Positions(ctx context.Context) ([]string, error) {
	return c.getStrings(ctx, "/emp/empPos", nil)
}

// NextEmployeeID returns the next free employee id.
func (c *Conn) NextEmployeeID(ctx context.Context) (string, error) {
	return c.getScalar(ctx, "/emp/nextId", nil)
}

// UpdateEmployees sends a bulk update.
func (c *Conn) UpdateEmployees(ctx context.Context, payload []core.Row) error {
	return c.do(ctx, http.MethodPatch, "/emp/bulkUpdate", nil, payload, nil)
}

// ResignEmployees flips employees to resigned.
func (c *Conn) ResignEmployees(ctx context.Context, payload []core.Row) error {
	return c.do(ctx, http.MethodPatch, "/emp/resign", nil, payload, nil)
}

// CreateEmployees registers new employees.
func (c *Conn) CreateEmployees(ctx context.Context, payload []core.Row) error {
	return c.do(ctx, http.MethodPost, "/emp", nil, payload, nil)
}
