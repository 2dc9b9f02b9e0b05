// Package importer turns an uploaded spreadsheet into the rows of a
// registration form. Workbooks (.xlsx) are read from their first sheet;
// anything that is not a zip archive is read as CSV.
//
// Headers are matched against the table's import headers after cleanup, so
// "S/N", " S/N " and a BOM-prefixed "S/N" all land in the same field.
// Several headers may feed one field; the first non-blank cell wins in
// header order. Date
// fields accept every shape core.ParseSpreadsheetDate does and keep the raw
// text with a cell error otherwise.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/assetconsole/internal/core"
)

var (
	// ErrNoDataRows is returned for a file with a header and nothing else.
	ErrNoDataRows = errors.New("import: no data rows")
	// ErrNoHeader is returned when none of the first rows names a known column.
	ErrNoHeader = errors.New("import: invalid csv: no known header row")
	// ErrInvalidWorkbook is returned for a zip upload excelize cannot open.
	ErrInvalidWorkbook = errors.New("import: invalid xlsx")
)

// dateFormatMessage is the cell error of an unparseable date.
const dateFormatMessage = "날짜 형식이 올바르지 않습니다."

// MaxHeaderSearchRows is how many leading rows are scanned for the header.
var MaxHeaderSearchRows = 20

// ContextCheckInterval is how often (in rows) parsing checks for cancellation.
var ContextCheckInterval = 100

// Result is a parsed import. Errors is aligned with Rows; a nil entry means
// the row parsed cleanly.
type Result struct {
	Rows   []core.Row
	Errors []map[string]string
}

// ErrorCount returns how many rows carry at least one cell error.
func (r *Result) ErrorCount() int {
	n := 0
	for _, e := range r.Errors {
		if len(e) > 0 {
			n++
		}
	}
	return n
}

// column binds a field to the sheet columns that may feed it, in header order.
type column struct {
	field string
	date  bool
	cols  []int
}

// Parse reads an xlsx or CSV spreadsheet for def's registration form.
// maxBytes bounds the file size (0 for no limit).
func Parse(ctx context.Context, r io.Reader, def core.TableDefinition, maxBytes int64) (*Result, error) {
	spec := def.Registration
	if spec == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrNoRegistration, def.Info.Key)
	}

	src, err := openSource(r, maxBytes)
	if err != nil {
		return nil, readError(err)
	}
	defer src.Close()

	var columns []column
	for i := 0; columns == nil; i++ {
		if i >= MaxHeaderSearchRows {
			return nil, ErrNoHeader
		}
		record, err := src.Next()
		if err == io.EOF {
			if i == 0 {
				return nil, ErrNoDataRows
			}
			return nil, ErrNoHeader
		}
		if err != nil {
			return nil, readError(err)
		}
		columns = mapColumns(def, spec, record)
	}

	res := &Result{}
	for line := 0; ; line++ {
		if line%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, readError(err)
		}
		if isEmptyRow(record) {
			continue
		}
		row, cellErrs := buildRow(columns, record)
		res.Rows = append(res.Rows, row)
		res.Errors = append(res.Errors, cellErrs)
	}

	if len(res.Rows) == 0 {
		return nil, ErrNoDataRows
	}
	return res, nil
}

func readError(err error) error {
	if errors.Is(err, ErrFileTooLarge) || errors.Is(err, ErrInvalidWorkbook) {
		return err
	}
	return fmt.Errorf("import: invalid csv: %w", err)
}

// mapColumns returns the field bindings of a header row, or nil when the
// row names none of the import headers.
func mapColumns(def core.TableDefinition, spec *core.RegistrationSpec, header []string) []column {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(core.CleanHeader(h))
		if _, dup := index[key]; key != "" && !dup {
			index[key] = i
		}
	}

	var out []column
	pos := make(map[string]int)
	for _, h := range spec.ImportHeaders {
		col, ok := index[strings.ToLower(core.CleanHeader(h.Header))]
		if !ok {
			continue
		}
		j, seen := pos[h.Field]
		if !seen {
			fs, _ := def.Field(h.Field)
			out = append(out, column{field: h.Field, date: fs.Type == core.FieldDate})
			j = len(out) - 1
			pos[h.Field] = j
		}
		out[j].cols = append(out[j].cols, col)
	}
	return out
}

func buildRow(columns []column, record []string) (core.Row, map[string]string) {
	row := make(core.Row, len(columns))
	var cellErrs map[string]string

	for _, c := range columns {
		value := ""
		for _, col := range c.cols {
			if col < len(record) {
				if v := core.CleanCell(record[col]); v != "" {
					value = v
					break
				}
			}
		}
		if !c.date {
			row[c.field] = value
			continue
		}
		if value == "" {
			row[c.field] = nil
			continue
		}
		if t, ok := core.ParseSpreadsheetDate(value); ok {
			row[c.field] = t.Format(core.DateLayout)
			continue
		}
		row[c.field] = value
		if cellErrs == nil {
			cellErrs = make(map[string]string)
		}
		cellErrs[c.field] = dateFormatMessage
	}
	return row, cellErrs
}

func isEmptyRow(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Seeder is the part of a registration session an import fills.
type Seeder interface {
	Table() string
	Seed(ctx context.Context, rows []core.Row, importErrors []map[string]string) error
}

// Importer parses uploads under a concurrency limit and seeds the form.
type Importer struct {
	limiter  *Limiter
	maxBytes int64
}

// New returns an Importer allowing maxConcurrent parallel imports of at
// most maxBytes each.
func New(maxConcurrent int, maxWait time.Duration, maxBytes int64) *Importer {
	return &Importer{
		limiter:  NewLimiter(maxConcurrent, maxWait),
		maxBytes: maxBytes,
	}
}

// Limiter exposes the concurrency limiter for health reporting and drain.
func (im *Importer) Limiter() *Limiter { return im.limiter }

// Import parses r with def's import headers and seeds sess with the rows.
// It returns the parse result so callers can report per-row problems.
func (im *Importer) Import(ctx context.Context, sess Seeder, def core.TableDefinition, r io.Reader) (*Result, error) {
	if err := im.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer im.limiter.Release()

	start := time.Now()
	res, err := Parse(ctx, r, def, im.maxBytes)
	if err != nil {
		slog.Warn("import parse failed", "table", sess.Table(), "error", err)
		return nil, err
	}
	if err := sess.Seed(ctx, res.Rows, res.Errors); err != nil {
		return nil, err
	}
	slog.Info("import applied",
		"table", sess.Table(),
		"rows", len(res.Rows),
		"row_errors", res.ErrorCount(),
		"duration", time.Since(start),
	)
	return res, nil
}
