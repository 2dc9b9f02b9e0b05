package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// zipMagic opens every .xlsx file (a zip archive).
var zipMagic = []byte("PK\x03\x04")

// rowSource yields the raw records of an upload, header rows included.
// Next returns io.EOF after the last record.
type rowSource interface {
	Next() ([]string, error)
	Close() error
}

// openSource sniffs the upload and returns a workbook source for zip
// archives and a CSV source for everything else.
func openSource(r io.Reader, maxBytes int64) (rowSource, error) {
	br := bufio.NewReader(limitReader(r, maxBytes))
	head, _ := br.Peek(len(zipMagic))
	if bytes.Equal(head, zipMagic) {
		return openWorkbook(br)
	}

	cr := csv.NewReader(newCleanReader(br, 0))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return csvSource{cr}, nil
}

type csvSource struct{ r *csv.Reader }

func (s csvSource) Next() ([]string, error) { return s.r.Read() }
func (s csvSource) Close() error { return nil }

// workbookSource streams the first sheet of a workbook. Cells come back
// unformatted, so a date cell reads as its serial number.
type workbookSource struct {
	file *excelize.File
	rows *excelize.Rows
}

var rawCells = excelize.Options{RawCellValue: true}

func openWorkbook(r io.Reader) (rowSource, error) {
	f, err := excelize.OpenReader(r, rawCells)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidWorkbook, err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: no sheets", ErrInvalidWorkbook)
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrInvalidWorkbook, err)
	}
	return &workbookSource{file: f, rows: rows}, nil
}

func (s *workbookSource) Next() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidWorkbook, err)
		}
		return nil, io.EOF
	}
	record, err := s.rows.Columns(rawCells)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWorkbook, err)
	}
	return record, nil
}

func (s *workbookSource) Close() error {
	s.rows.Close()
	return s.file.Close()
}
