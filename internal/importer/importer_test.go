package importer

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/assetconsole/internal/core"
	_ "github.com/JonMunkholm/assetconsole/internal/core/tables"
)

func mustTable(t *testing.T, key string) core.TableDefinition {
	t.Helper()
	def, err := core.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup(%s): %v", key, err)
	}
	return def
}

const assetCSV = "\ufeff품번,종류,제조사,제조년월,모델명,시리얼번호,S/N,사번,설치장소,지급일,비고\n" +
	",노트북,LG,2024-01,LG 그램,,SN1,E001,본사_3F,45296,신규\n" +
	",,,,,,,,,,\n" +
	"N900,모니터,=\"LG\",2024.03.02,울트라,SN-2,SN-X, E002 ,본사,bad,\n"

func TestParse_Assets(t *testing.T) {
	res, err := Parse(context.Background(), strings.NewReader(assetCSV), mustTable(t, "assets"), 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2 (blank row skipped)", len(res.Rows))
	}

	want := core.Row{
		"assetId":             "",
		"assetType":           "노트북",
		"assetManufacturer":   "LG",
		"assetManufacturedAt": "2024-01-01",
		"assetModelName":      "LG 그램",
		"assetSn":             "SN1",
		"empId":               "E001",
		"assetLoc":            "본사_3F",
		"assetIssuanceDate":   "2024-01-05",
		"assetDesc":           "신규",
	}
	if !reflect.DeepEqual(res.Rows[0], want) {
		t.Errorf("row 1 = %v\nwant %v", res.Rows[0], want)
	}
	if res.Errors[0] != nil {
		t.Errorf("row 1 errors = %v, want none", res.Errors[0])
	}

	second := res.Rows[1]
	tests := []struct {
		field string
		want  any
	}{
		{"assetId", "N900"},
		{"assetManufacturer", "LG"},
		{"assetManufacturedAt", "2024-03-02"},
		{"assetSn", "SN-2"}, // 시리얼번호 wins over S/N
		{"empId", "E002"},
		{"assetIssuanceDate", "bad"},
		{"assetDesc", ""},
	}
	for _, tt := range tests {
		if second[tt.field] != tt.want {
			t.Errorf("row 2 %s = %v, want %v", tt.field, second[tt.field], tt.want)
		}
	}
	if res.Errors[1]["assetIssuanceDate"] != "날짜 형식이 올바르지 않습니다." {
		t.Errorf("row 2 errors = %v", res.Errors[1])
	}
	if res.ErrorCount() != 1 {
		t.Errorf("ErrorCount = %d, want 1", res.ErrorCount())
	}
}

func TestParse_Employees(t *testing.T) {
	in := "사번,성명,직위,소속,입사일\nE010,홍길동,사원,개발팀,2026/01/02\n,김영수,대리,영업팀,\n"
	res, err := Parse(context.Background(), strings.NewReader(in), mustTable(t, "employees"), 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := res.Rows[0]["empRegDt"]; got != "2026-01-02" {
		t.Errorf("empRegDt via alias header = %v, want 2026-01-02", got)
	}
	if res.Rows[1]["empRegDt"] != nil {
		t.Errorf("blank date = %v, want nil", res.Rows[1]["empRegDt"])
	}
	if res.Rows[1]["empId"] != "" {
		t.Errorf("blank id = %v", res.Rows[1]["empId"])
	}
}

func TestParse_FindsHeaderBelowTitle(t *testing.T) {
	in := "직원 등록 양식\n\n사번,성명\nE010,홍길동\n"
	res, err := Parse(context.Background(), strings.NewReader(in), mustTable(t, "employees"), 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0]["empName"] != "홍길동" {
		t.Errorf("rows = %v", res.Rows)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		maxBytes int64
		wantErr  error
		wantCode string
	}{
		{"empty file", "", 0, ErrNoDataRows, "IMP002"},
		{"bom only", "\ufeff", 0, ErrNoDataRows, "IMP002"},
		{"header only", "사번,성명\n", 0, ErrNoDataRows, "IMP002"},
		{"blank rows only", "사번,성명\n,\n , \n", 0, ErrNoDataRows, "IMP002"},
		{"unknown header", "id,name\nE1,kim\n", 0, ErrNoHeader, "IMP001"},
		{"too large", "사번,성명\nE010,홍길동\n", 10, ErrFileTooLarge, "IMP003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), strings.NewReader(tt.in), mustTable(t, "employees"), tt.maxBytes)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if code := core.MapError(err).Code; code != tt.wantCode {
				t.Errorf("MapError code = %s, want %s", code, tt.wantCode)
			}
		})
	}
}

func TestParse_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Parse(ctx, strings.NewReader("사번\nE1\n"), mustTable(t, "employees"), 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestParse_NoRegistration(t *testing.T) {
	def := mustTable(t, "employees")
	def.Registration = nil
	if _, err := Parse(context.Background(), strings.NewReader("x"), def, 0); !errors.Is(err, core.ErrNoRegistration) {
		t.Errorf("err = %v, want ErrNoRegistration", err)
	}
}

type fakeSeeder struct {
	rows  []core.Row
	errs  []map[string]string
	fail  error
	calls int
}

func (f *fakeSeeder) Table() string { return "employees" }

func (f *fakeSeeder) Seed(_ context.Context, rows []core.Row, errs []map[string]string) error {
	f.calls++
	if f.fail != nil {
		return f.fail
	}
	f.rows, f.errs = rows, errs
	return nil
}

func TestImporter_Import(t *testing.T) {
	im := New(2, time.Second, 0)
	seeder := &fakeSeeder{}

	res, err := im.Import(context.Background(), seeder, mustTable(t, "employees"), strings.NewReader("사번,성명\nE010,홍길동\nE011,김영수\n"))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(res.Rows) != 2 || len(seeder.rows) != 2 {
		t.Errorf("result rows = %d, seeded = %d, want 2", len(res.Rows), len(seeder.rows))
	}
	if im.Limiter().Active() != 0 {
		t.Error("slot not released after import")
	}
}

func TestImporter_ImportErrors(t *testing.T) {
	def := mustTable(t, "employees")

	t.Run("parse failure skips seeding", func(t *testing.T) {
		seeder := &fakeSeeder{}
		_, err := New(1, time.Second, 0).Import(context.Background(), seeder, def, strings.NewReader("사번\n"))
		if !errors.Is(err, ErrNoDataRows) || seeder.calls != 0 {
			t.Errorf("err = %v, seed calls = %d", err, seeder.calls)
		}
	})

	t.Run("seed failure surfaces", func(t *testing.T) {
		seeder := &fakeSeeder{fail: core.ErrAlreadySeeded}
		_, err := New(1, time.Second, 0).Import(context.Background(), seeder, def, strings.NewReader("사번\nE1\n"))
		if !errors.Is(err, core.ErrAlreadySeeded) {
			t.Errorf("err = %v, want ErrAlreadySeeded", err)
		}
	})

	t.Run("busy limiter", func(t *testing.T) {
		im := New(1, 20*time.Millisecond, 0)
		if !im.Limiter().TryAcquire() {
			t.Fatal("TryAcquire failed")
		}
		defer im.Limiter().Release()
		_, err := im.Import(context.Background(), &fakeSeeder{}, def, strings.NewReader("사번\nE1\n"))
		if !errors.Is(err, ErrTooManyImports) {
			t.Errorf("err = %v, want ErrTooManyImports", err)
		}
		if code := core.MapError(err).Code; code != "RATE001" {
			t.Errorf("MapError code = %s, want RATE001", code)
		}
	})
}

func TestWriteTemplate(t *testing.T) {
	tests := []struct {
		table   string
		sheet   string
		header  []string
		example []string
		file    string
	}{
		{
			table:   "assets",
			sheet:   "자산",
			header:  []string{"종류", "제조사", "제조년월", "모델명", "S/N", "사번", "설치장소", "지급일", "비고"},
			example: []string{"노트북", "LG", "2024-01-30", "LG 그램", "SN1234", "E999", "본사_3F", "2024-02-01", "예시 비고"},
			file:    "자산_등록_양식.xlsx",
		},
		{
			table:   "employees",
			sheet:   "직원",
			header:  []string{"사번", "성명", "직위", "소속", "입사일자"},
			example: []string{"E999", "홍길동", "사원", "개발팀", "2026-01-01"},
			file:    "직원_등록_양식.xlsx",
		},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			def := mustTable(t, tt.table)
			var buf bytes.Buffer
			if err := WriteTemplate(&buf, def); err != nil {
				t.Fatalf("WriteTemplate: %v", err)
			}
			if got := TemplateFileName(def); got != tt.file {
				t.Errorf("TemplateFileName = %q, want %q", got, tt.file)
			}

			f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("OpenReader: %v", err)
			}
			defer f.Close()
			rows, err := f.GetRows(tt.sheet)
			if err != nil {
				t.Fatalf("GetRows(%s): %v", tt.sheet, err)
			}
			want := [][]string{tt.header, tt.example}
			if !reflect.DeepEqual(rows, want) {
				t.Errorf("template rows = %q, want %q", rows, want)
			}

			// the template parses back into its example row
			res, err := Parse(context.Background(), &buf, def, 0)
			if err != nil {
				t.Fatalf("Parse(template): %v", err)
			}
			if len(res.Rows) != 1 || res.ErrorCount() != 0 {
				t.Errorf("parsed template rows = %d errors = %d", len(res.Rows), res.ErrorCount())
			}
		})
	}
}

// workbook builds an xlsx upload whose first sheet holds rows.
func workbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow(%s): %v", cell, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func TestParse_Workbook(t *testing.T) {
	data := workbook(t,
		[]any{"직원 등록 양식"},
		[]any{"사번", "성명", "직위", "소속", "입사일"},
		[]any{"E010", "홍길동", "사원", "개발팀", 46024},
		[]any{},
		[]any{"E011", " 김영수 ", "대리", "영업팀", "2026.01.05"},
		[]any{"E012", "이민호", "과장", "개발팀", "soon"},
	)

	res, err := Parse(context.Background(), bytes.NewReader(data), mustTable(t, "employees"), 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Rows) != 3 {
		t.Fatalf("rows = %d, want 3 (blank row skipped)", len(res.Rows))
	}

	tests := []struct {
		row   int
		field string
		want  any
	}{
		{0, "empId", "E010"},
		{0, "empRegDt", "2026-01-02"}, // date serial
		{1, "empName", "김영수"},
		{1, "empRegDt", "2026-01-05"},
		{2, "empRegDt", "soon"},
	}
	for _, tt := range tests {
		if got := res.Rows[tt.row][tt.field]; got != tt.want {
			t.Errorf("row %d %s = %v, want %v", tt.row+1, tt.field, got, tt.want)
		}
	}
	if res.Errors[2]["empRegDt"] != "날짜 형식이 올바르지 않습니다." {
		t.Errorf("row 3 errors = %v", res.Errors[2])
	}
	if res.ErrorCount() != 1 {
		t.Errorf("ErrorCount = %d, want 1", res.ErrorCount())
	}
}

func TestParse_WorkbookErrors(t *testing.T) {
	def := mustTable(t, "employees")
	tests := []struct {
		name     string
		data     []byte
		maxBytes int64
		wantErr  error
		wantCode string
	}{
		{"header only", workbook(t, []any{"사번", "성명"}), 0, ErrNoDataRows, "IMP002"},
		{"unknown header", workbook(t, []any{"id", "name"}, []any{"E1", "kim"}), 0, ErrNoHeader, "IMP001"},
		{"broken archive", []byte("PK\x03\x04not a zip"), 0, ErrInvalidWorkbook, "IMP001"},
		{"too large", workbook(t, []any{"사번"}, []any{"E010"}), 64, ErrFileTooLarge, "IMP003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), bytes.NewReader(tt.data), def, tt.maxBytes)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if code := core.MapError(err).Code; code != tt.wantCode {
				t.Errorf("MapError code = %s, want %s", code, tt.wantCode)
			}
		})
	}
}
